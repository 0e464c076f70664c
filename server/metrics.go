// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/metrics.go
// Summary: Debug logging, request counters and session statistics hooks.

package server

import (
	"io"
	"log"
	"sync/atomic"
)

var debugLog = log.New(io.Discard, "", log.LstdFlags)

// SetVerboseLogging routes per-request debug messages to the standard logger.
func SetVerboseLogging(on bool) {
	if on {
		debugLog.SetOutput(log.Writer())
		return
	}
	debugLog.SetOutput(io.Discard)
}

// Counters accumulate request traffic over the life of a server.
type Counters struct {
	requests atomic.Uint64
	rejected atomic.Uint64
	draws    atomic.Uint64
	cells    atomic.Uint64
	sessions atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Requests uint64
	Rejected uint64
	Draws    uint64
	Cells    uint64
	Sessions uint64
}

func (c *Counters) request(err error) {
	c.requests.Add(1)
	if err != nil {
		c.rejected.Add(1)
	}
}

func (c *Counters) drew(cells int) {
	c.draws.Add(1)
	c.cells.Add(uint64(cells))
}

func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Requests: c.requests.Load(),
		Rejected: c.rejected.Load(),
		Draws:    c.draws.Load(),
		Cells:    c.cells.Load(),
		Sessions: c.sessions.Load(),
	}
}

// SessionStatsObserver is told the final statistics of every session.
type SessionStatsObserver interface {
	ObserveSessionStats(stats SessionStats)
}

// SessionStatsLogger writes one line per ended session.
type SessionStatsLogger struct {
	logger *log.Logger
}

func NewSessionStatsLogger(l *log.Logger) *SessionStatsLogger {
	if l == nil {
		l = log.Default()
	}
	return &SessionStatsLogger{logger: l}
}

func (s *SessionStatsLogger) ObserveSessionStats(stats SessionStats) {
	s.logger.Printf("server: session %x (%s) ended: sent=%d pending=%d coalesced=%d dropped=%d",
		stats.ID[:4], stats.Name, stats.Sent, stats.Pending, stats.Coalesced, stats.Dropped)
}
