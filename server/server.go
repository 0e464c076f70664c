// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/server.go
// Summary: Display server: Unix socket listener plus the screen loop.
// Usage: srv := NewServer(path, nil, comp); srv.Start(); srv.Run(ctx, events)

package server

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"sync"

	"github.com/framegrace/texelgui/protocol"
	"github.com/gdamore/tcell/v2"
)

// Server listens on a Unix domain socket and serves window clients.
type Server struct {
	addr     string
	manager  *Manager
	comp     *Compositor
	listener net.Listener
	quit     chan struct{}
	damage   chan struct{}
	wg       sync.WaitGroup

	counters Counters

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	stats SessionStatsObserver
}

func NewServer(addr string, manager *Manager, comp *Compositor) *Server {
	if manager == nil {
		manager = NewManager()
	}
	if comp == nil {
		comp = NewCompositor(nil, nil)
	}
	return &Server{
		addr:    addr,
		manager: manager,
		comp:    comp,
		quit:    make(chan struct{}),
		damage:  make(chan struct{}, 1),
		conns:   make(map[net.Conn]struct{}),
	}
}

func (s *Server) Manager() *Manager         { return s.manager }
func (s *Server) Compositor() *Compositor   { return s.comp }
func (s *Server) Counters() CounterSnapshot { return s.counters.Snapshot() }

// SetStatsObserver receives the statistics of every session that ends.
func (s *Server) SetStatsObserver(o SessionStatsObserver) {
	s.mu.Lock()
	s.stats = o
	s.mu.Unlock()
}

func (s *Server) Start() error {
	if err := os.RemoveAll(s.addr); err != nil {
		return err
	}
	l, err := net.Listen("unix", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.wg.Add(1)
	go s.acceptLoop()
	log.Printf("server: listening on %s", s.addr)
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			if err := s.Serve(c); err != nil {
				log.Printf("server: connection ended: %v", err)
			}
		}(conn)
	}
}

// Serve runs the handshake and request loop on conn and closes it when the
// client goes away.
func (s *Server) Serve(conn net.Conn) error {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	session, err := handleHandshake(conn, s.manager, s.comp.Size())
	if err != nil {
		return err
	}
	id := session.ID()
	s.counters.sessions.Add(1)
	debugLog.Printf("server: client %q attached as %x", session.Name(), id[:4])
	defer func() {
		stats, ok := s.manager.Detach(id)
		s.mu.Lock()
		obs := s.stats
		s.mu.Unlock()
		if ok && obs != nil {
			obs.ObserveSessionStats(stats)
		}
	}()
	return newConnection(conn, session, s.comp, &s.counters, s.markDamage).serve()
}

func (s *Server) markDamage() {
	select {
	case s.damage <- struct{}{}:
	default:
	}
}

// Run applies screen events and repaints after damage until ctx ends or
// events is closed.
func (s *Server) Run(ctx context.Context, events <-chan tcell.Event) error {
	s.comp.Render()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.quit:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if s.comp.HandleEvent(ev) {
				s.comp.Render()
			}
		case <-s.damage:
			s.comp.Render()
		}
	}
}

// Stop closes the listener, tells every client the server is going away and
// waits for the connections to end.
func (s *Server) Stop(ctx context.Context) error {
	close(s.quit)
	if s.listener != nil {
		_ = s.listener.Close()
	}

	notice, _ := protocol.EncodeDisconnectNotice(protocol.DisconnectNotice{
		ReasonCode: protocol.DisconnectShutdown,
		Message:    "server shutting down",
	})
	s.mu.Lock()
	for conn := range s.conns {
		// Best effort; the close below ends the connection either way.
		go func(c net.Conn) {
			_ = protocol.WriteMessage(c, protocol.Header{Version: protocol.Version, Type: protocol.MsgDisconnectNotice, Flags: protocol.FlagChecksum}, notice)
			c.Close()
		}(conn)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.addr != "" {
		_ = os.Remove(s.addr)
	}
	return nil
}
