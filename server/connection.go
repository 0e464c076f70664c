// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/connection.go
// Summary: Per-client request loop and push writer.
// Notes: Every request frame is answered with an Ack or an ErrorFrame that
//        echoes its sequence. Pushes queued on the session are written by a
//        separate goroutine; both share writeMu.

package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/framegrace/texelgui/protocol"
)

var errBadRequest = errors.New("server: malformed request")

type connection struct {
	conn     net.Conn
	session  *Session
	comp     *Compositor
	counters *Counters
	damage   func()
	writeMu  sync.Mutex
	done     chan struct{}
}

func newConnection(conn net.Conn, session *Session, comp *Compositor, counters *Counters, damage func()) *connection {
	if damage == nil {
		damage = func() {}
	}
	if counters == nil {
		counters = &Counters{}
	}
	return &connection{
		conn:     conn,
		session:  session,
		comp:     comp,
		counters: counters,
		damage:   damage,
		done:     make(chan struct{}),
	}
}

func (c *connection) serve() error {
	go c.writeLoop()
	defer func() {
		close(c.done)
		c.comp.RemoveOwner(c.session)
		c.damage()
	}()
	for {
		header, payload, err := protocol.ReadMessage(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if err := c.dispatch(header, payload); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// writeLoop drains session pushes until the connection ends.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.session.Ready():
		}
		for _, p := range c.session.Pending() {
			if err := c.writeMessage(p.Message, p.Payload); err != nil {
				debugLog.Printf("server: push to %x failed: %v", p.Message.SessionID[:4], err)
				return
			}
		}
	}
}

func (c *connection) dispatch(header protocol.Header, payload []byte) error {
	seq := header.Sequence
	switch header.Type {
	case protocol.MsgPing:
		ping, err := protocol.DecodePing(payload)
		if err != nil {
			return err
		}
		pongPayload, err := protocol.EncodePong(protocol.Pong{Timestamp: ping.Timestamp})
		if err != nil {
			return err
		}
		return c.writeControlMessage(protocol.MsgPong, seq, pongPayload)
	case protocol.MsgDisconnectNotice:
		notice, _ := protocol.DecodeDisconnectNotice(payload)
		debugLog.Printf("server: client %q disconnecting: %s", c.session.Name(), notice.Message)
		return io.EOF
	case protocol.MsgWindowCreate:
		req, err := protocol.DecodeWindowCreate(payload)
		if err != nil {
			return c.reply(seq, 0, badRequest(err))
		}
		id, err := c.comp.Create(c.session, req)
		return c.reply(seq, id, err)
	case protocol.MsgWindowShow, protocol.MsgWindowHide, protocol.MsgWindowDestroy, protocol.MsgWindowRaise:
		ref, err := protocol.DecodeWindowRef(payload)
		if err != nil {
			return c.reply(seq, 0, badRequest(err))
		}
		op := c.comp.Raise
		switch header.Type {
		case protocol.MsgWindowShow:
			op = c.comp.Show
		case protocol.MsgWindowHide:
			op = c.comp.Hide
		case protocol.MsgWindowDestroy:
			op = c.comp.Destroy
		}
		return c.reply(seq, ref.WindowID, op(c.session, ref.WindowID))
	case protocol.MsgWindowMove:
		move, err := protocol.DecodeWindowMove(payload)
		if err != nil {
			return c.reply(seq, 0, badRequest(err))
		}
		return c.reply(seq, move.WindowID, c.comp.Move(c.session, move.WindowID, move.Rect))
	case protocol.MsgDrawCells:
		draw, err := protocol.DecodeDrawCells(payload)
		if err != nil {
			return c.reply(seq, 0, badRequest(err))
		}
		err = c.comp.Draw(c.session, draw)
		if err == nil {
			c.counters.drew(draw.CellCount())
		}
		return c.reply(seq, draw.WindowID, err)
	default:
		log.Printf("server: client %q sent unexpected %v", c.session.Name(), header.Type)
		return c.reply(seq, 0, errUnexpectedMessage)
	}
}

// reply answers a request. A nil err acknowledges it; anything else becomes
// an ErrorFrame. Only write failures end the connection.
func (c *connection) reply(seq uint64, window uint32, err error) error {
	c.counters.request(err)
	if err == nil {
		c.damage()
		payload, _ := protocol.EncodeAck(protocol.Ack{Sequence: seq, WindowID: window})
		return c.writeControlMessage(protocol.MsgAck, seq, payload)
	}
	debugLog.Printf("server: request %d from %q rejected: %v", seq, c.session.Name(), err)
	payload, encErr := protocol.EncodeErrorFrame(protocol.ErrorFrame{
		Sequence: seq,
		Code:     errorCode(err),
		Message:  err.Error(),
	})
	if encErr != nil {
		return encErr
	}
	return c.writeControlMessage(protocol.MsgError, seq, payload)
}

func errorCode(err error) uint16 {
	switch {
	case errors.Is(err, ErrUnknownWindow), errors.Is(err, ErrNotOwner):
		return protocol.ErrCodeUnknownWindow
	case errors.Is(err, ErrBadGeometry):
		return protocol.ErrCodeRejected
	case errors.Is(err, errBadRequest), errors.Is(err, errUnexpectedMessage):
		return protocol.ErrCodeBadRequest
	}
	return protocol.ErrCodeInternal
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func (c *connection) writeControlMessage(msgType protocol.MessageType, seq uint64, payload []byte) error {
	header := protocol.Header{
		Version:   protocol.Version,
		Type:      msgType,
		Flags:     protocol.FlagChecksum,
		SessionID: c.session.ID(),
		Sequence:  seq,
	}
	return c.writeMessage(header, payload)
}

func (c *connection) writeMessage(header protocol.Header, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteMessage(c.conn, header, payload)
}
