// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/session.go
// Summary: Per-client state and the queue of server pushes.
// Usage: The compositor enqueues clip grants and input; the connection
//        writer drains them with Pending.
// Notes: Enqueueing never blocks so the compositor may push while holding
//        its lock. Clip updates for the same window coalesce.

package server

import (
	"errors"
	"sync"

	"github.com/framegrace/texelgui/protocol"
)

var (
	ErrSessionClosed = errors.New("server: session closed")
)

// Packet holds a serialised push ready to be written.
type Packet struct {
	Sequence uint64
	Payload  []byte
	Message  protocol.Header

	window uint32
}

// SessionStats summarises the push queue of a session.
type SessionStats struct {
	ID        [16]byte
	Name      string
	Pending   int
	Sent      uint64
	Coalesced uint64
	Dropped   uint64
}

// Session tracks one client connection and the pushes queued for it.
type Session struct {
	id   [16]byte
	name string

	mu           sync.Mutex
	nextSequence uint64
	queue        []Packet
	closed       bool
	maxQueue     int
	ready        chan struct{}
	sent         uint64
	coalesced    uint64
	dropped      uint64
}

func NewSession(id [16]byte, maxQueue int) *Session {
	if maxQueue < 0 {
		maxQueue = 0
	}
	return &Session{
		id:       id,
		queue:    make([]Packet, 0, 32),
		maxQueue: maxQueue,
		ready:    make(chan struct{}, 1),
	}
}

func (s *Session) ID() [16]byte { return s.id }

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Ready is signalled whenever new pushes are queued.
func (s *Session) Ready() <-chan struct{} { return s.ready }

func (s *Session) enqueue(typ protocol.MessageType, window uint32, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if typ == protocol.MsgClipUpdate {
		for i := range s.queue {
			p := &s.queue[i]
			if p.Message.Type == protocol.MsgClipUpdate && p.window == window {
				p.Payload = payload
				s.coalesced++
				return nil
			}
		}
	}

	seq := s.nextSequence + 1
	s.queue = append(s.queue, Packet{
		Sequence: seq,
		Payload:  payload,
		Message: protocol.Header{
			Version:   protocol.Version,
			Type:      typ,
			Flags:     protocol.FlagChecksum,
			SessionID: s.id,
			Sequence:  seq,
		},
		window: window,
	})
	s.nextSequence = seq

	if s.maxQueue > 0 && len(s.queue) > s.maxQueue {
		s.dropOldestInput()
	}
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return nil
}

// dropOldestInput discards the oldest input push. Clip updates are never
// dropped, a client would otherwise paint with a stale grant.
func (s *Session) dropOldestInput() {
	for i, p := range s.queue {
		if p.Message.Type == protocol.MsgKeyEvent || p.Message.Type == protocol.MsgMouseEvent {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.dropped++
			return
		}
	}
}

// Pending removes and returns every queued push.
func (s *Session) Pending() []Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = make([]Packet, 0, cap(out))
	s.sent += uint64(len(out))
	return out
}

// ClipChanged queues a clip grant for one of the session's windows.
func (s *Session) ClipChanged(update protocol.ClipUpdate) {
	payload, err := protocol.EncodeClipUpdate(update)
	if err != nil {
		return
	}
	_ = s.enqueue(protocol.MsgClipUpdate, update.WindowID, payload)
}

func (s *Session) Key(ev protocol.KeyEvent) {
	payload, err := protocol.EncodeKeyEvent(ev)
	if err != nil {
		return
	}
	_ = s.enqueue(protocol.MsgKeyEvent, ev.WindowID, payload)
}

func (s *Session) Mouse(ev protocol.MouseEvent) {
	payload, err := protocol.EncodeMouseEvent(ev)
	if err != nil {
		return
	}
	_ = s.enqueue(protocol.MsgMouseEvent, ev.WindowID, payload)
}

func (s *Session) CloseRequested(window uint32) {
	payload, _ := protocol.EncodeWindowRef(protocol.WindowRef{WindowID: window})
	_ = s.enqueue(protocol.MsgCloseRequest, window, payload)
}

func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		ID:        s.id,
		Name:      s.name,
		Pending:   len(s.queue),
		Sent:      s.sent,
		Coalesced: s.coalesced,
		Dropped:   s.dropped,
	}
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
}
