// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/manager.go
// Summary: Registry of attached client sessions.
// Notes: Session ids are random so a client can only resume its own
//        session.

package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
)

var ErrSessionNotFound = errors.New("server: session not found")

// DefaultMaxQueue bounds the pushes waiting for a slow client.
const DefaultMaxQueue = 1024

// Manager owns the sessions of one server.
type Manager struct {
	mu       sync.Mutex
	sessions map[[16]byte]*Session
	maxQueue int
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[[16]byte]*Session), maxQueue: DefaultMaxQueue}
}

// SetMaxQueue changes the queue bound of sessions created afterwards.
// Values below one fall back to DefaultMaxQueue.
func (m *Manager) SetMaxQueue(n int) {
	if n < 1 {
		n = DefaultMaxQueue
	}
	m.mu.Lock()
	m.maxQueue = n
	m.mu.Unlock()
}

// Attach creates a session, or resumes id when it is non-zero.
func (m *Manager) Attach(id [16]byte, name string) (*Session, error) {
	if id != ([16]byte{}) {
		m.mu.Lock()
		s, ok := m.sessions[id]
		m.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%w: %x", ErrSessionNotFound, id[:4])
		}
		s.setName(name)
		return s, nil
	}

	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("server: session id: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := NewSession(id, m.maxQueue)
	s.setName(name)
	m.sessions[id] = s
	return s, nil
}

// Get returns an attached session.
func (m *Manager) Get(id [16]byte) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Detach closes a session and returns its final statistics.
func (m *Manager) Detach(id [16]byte) (SessionStats, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return SessionStats{}, false
	}
	stats := s.Stats()
	s.Close()
	return stats, true
}

// ActiveSessions returns the number of attached sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stats returns a snapshot of every attached session.
func (m *Manager) Stats() []SessionStats {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()
	out := make([]SessionStats, len(sessions))
	for i, s := range sessions {
		out[i] = s.Stats()
	}
	return out
}
