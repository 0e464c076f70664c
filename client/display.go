// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/display.go
// Summary: widget.Display implementation speaking the wire protocol.
// Usage: d, err := client.Dial(ctx, socketPath, "my-app"); app := widget.NewApp(d, nil)
// Notes: One reader goroutine resolves pending requests by sequence and
//        queues server pushes; a pump goroutine feeds them to Events so the
//        reader never blocks on a busy application.

package client

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/framegrace/texelgui/protocol"
	"github.com/framegrace/texelgui/widget"
	"github.com/gdamore/tcell/v2"
)

var (
	ErrClosed = errors.New("client: connection closed")

	debugLog = log.New(io.Discard, "", log.LstdFlags)
)

// SetVerboseLogging routes request tracing to the standard logger.
func SetVerboseLogging(on bool) {
	if on {
		debugLog.SetOutput(log.Writer())
		return
	}
	debugLog.SetOutput(io.Discard)
}

// RequestError is a request the server rejected with an ErrorFrame.
type RequestError struct {
	Op      string
	Code    uint16
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("client: %s rejected (code %d): %s", e.Op, e.Code, e.Message)
}

// DisconnectError reports that the server ended the session.
type DisconnectError struct {
	Reason  uint16
	Message string
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("client: server disconnected (%d): %s", e.Reason, e.Message)
}

type result struct {
	ack protocol.Ack
	err error
}

type call struct {
	op string
	ch chan result
}

// Display is a connection to a texelgui display server.
type Display struct {
	conn      net.Conn
	sessionID [16]byte
	screen    image.Point
	writeMu   sync.Mutex

	mu       sync.Mutex
	cond     *sync.Cond
	seq      uint64
	pending  map[uint64]*call
	surfaces map[widget.WindowID]*surface
	queue    []widget.Input
	eof      bool
	err      error

	events    chan widget.Input
	abandon   chan struct{}
	closeOnce sync.Once
}

// Dial connects to the server socket at path.
func Dial(ctx context.Context, path, clientName string) (*Display, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", path, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	d, err := NewDisplay(conn, clientName)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return d, nil
}

// NewDisplay performs the handshake on conn and starts serving it. conn is
// closed on failure.
func NewDisplay(conn net.Conn, clientName string) (*Display, error) {
	welcome, accept, err := handshake(conn, clientName)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: handshake: %w", err)
	}
	d := &Display{
		conn:      conn,
		sessionID: accept.SessionID,
		screen:    image.Pt(int(welcome.Width), int(welcome.Height)),
		pending:   make(map[uint64]*call),
		surfaces:  make(map[widget.WindowID]*surface),
		events:    make(chan widget.Input, 16),
		abandon:   make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.readLoop()
	go d.pump()
	return d, nil
}

func handshake(conn net.Conn, clientName string) (protocol.Welcome, protocol.ConnectAccept, error) {
	var (
		welcome protocol.Welcome
		accept  protocol.ConnectAccept
	)
	helloPayload, err := protocol.EncodeHello(protocol.Hello{ClientName: clientName})
	if err != nil {
		return welcome, accept, err
	}
	if err := protocol.WriteMessage(conn, protocol.Header{Version: protocol.Version, Type: protocol.MsgHello, Flags: protocol.FlagChecksum}, helloPayload); err != nil {
		return welcome, accept, err
	}
	hdr, payload, err := protocol.ReadMessage(conn)
	if err != nil {
		return welcome, accept, err
	}
	if hdr.Type != protocol.MsgWelcome {
		return welcome, accept, fmt.Errorf("unexpected message %v", hdr.Type)
	}
	if welcome, err = protocol.DecodeWelcome(payload); err != nil {
		return welcome, accept, err
	}

	connectPayload, err := protocol.EncodeConnectRequest(protocol.ConnectRequest{})
	if err != nil {
		return welcome, accept, err
	}
	if err := protocol.WriteMessage(conn, protocol.Header{Version: protocol.Version, Type: protocol.MsgConnectRequest, Flags: protocol.FlagChecksum}, connectPayload); err != nil {
		return welcome, accept, err
	}
	hdr, payload, err = protocol.ReadMessage(conn)
	if err != nil {
		return welcome, accept, err
	}
	if hdr.Type != protocol.MsgConnectAccept {
		return welcome, accept, fmt.Errorf("unexpected message %v", hdr.Type)
	}
	accept, err = protocol.DecodeConnectAccept(payload)
	return welcome, accept, err
}

// SessionID returns the id the server assigned to this connection.
func (d *Display) SessionID() [16]byte { return d.sessionID }

// ScreenSize returns the server screen size announced at handshake.
func (d *Display) ScreenSize() image.Point { return d.screen }

// Events implements widget.Display.
func (d *Display) Events() <-chan widget.Input { return d.events }

// Err returns the error that ended the connection, if any.
func (d *Display) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Display) CreateWindow(ctx context.Context, spec widget.WindowSpec) (widget.WindowID, error) {
	payload, err := protocol.EncodeWindowCreate(protocol.WindowCreate{
		Title: spec.Title,
		Rect:  spec.Rect,
		Style: uint8(spec.Style),
	})
	if err != nil {
		return 0, err
	}
	ack, err := d.request(ctx, protocol.MsgWindowCreate, "create window", payload)
	if err != nil {
		return 0, err
	}
	id := widget.WindowID(ack.WindowID)
	d.mu.Lock()
	d.surfaces[id] = newSurface(spec.Rect.Min)
	d.mu.Unlock()
	return id, nil
}

func (d *Display) windowRequest(ctx context.Context, typ protocol.MessageType, op string, id widget.WindowID) error {
	payload, _ := protocol.EncodeWindowRef(protocol.WindowRef{WindowID: uint32(id)})
	_, err := d.request(ctx, typ, op, payload)
	return err
}

func (d *Display) ShowWindow(ctx context.Context, id widget.WindowID) error {
	return d.windowRequest(ctx, protocol.MsgWindowShow, "show window", id)
}

func (d *Display) HideWindow(ctx context.Context, id widget.WindowID) error {
	return d.windowRequest(ctx, protocol.MsgWindowHide, "hide window", id)
}

// RaiseWindow puts the window on top of the server stack.
func (d *Display) RaiseWindow(ctx context.Context, id widget.WindowID) error {
	return d.windowRequest(ctx, protocol.MsgWindowRaise, "raise window", id)
}

func (d *Display) MoveWindow(ctx context.Context, id widget.WindowID, r image.Rectangle) error {
	payload, err := protocol.EncodeWindowMove(protocol.WindowMove{WindowID: uint32(id), Rect: r})
	if err != nil {
		return err
	}
	if _, err := d.request(ctx, protocol.MsgWindowMove, "move window", payload); err != nil {
		return err
	}
	if s := d.surface(id); s != nil {
		s.setOrigin(r.Canon().Min)
	}
	return nil
}

func (d *Display) DestroyWindow(ctx context.Context, id widget.WindowID) error {
	if err := d.windowRequest(ctx, protocol.MsgWindowDestroy, "destroy window", id); err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.surfaces, id)
	d.mu.Unlock()
	return nil
}

func (d *Display) surface(id widget.WindowID) *surface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaces[id]
}

// Surface implements widget.Display.
func (d *Display) Surface(id widget.WindowID) widget.Surface {
	if s := d.surface(id); s != nil {
		return s
	}
	return nil
}

// Flush sends the cells painted since the last flush.
func (d *Display) Flush(ctx context.Context, id widget.WindowID) error {
	s := d.surface(id)
	if s == nil {
		return fmt.Errorf("client: flush: unknown window %d", id)
	}
	draw, ok := s.take(uint32(id))
	if !ok {
		return nil
	}
	payload, err := protocol.EncodeDrawCells(draw)
	if err != nil {
		return err
	}
	_, err = d.request(ctx, protocol.MsgDrawCells, "draw", payload)
	return err
}

// Ping measures one round trip to the server.
func (d *Display) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	payload, err := protocol.EncodePing(protocol.Ping{Timestamp: start.UnixNano()})
	if err != nil {
		return 0, err
	}
	if _, err := d.request(ctx, protocol.MsgPing, "ping", payload); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// KeepAlive pings the server every interval until ctx ends or a ping gets
// no answer within timeout.
func (d *Display) KeepAlive(ctx context.Context, interval, timeout time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		rtt, err := d.Ping(pctx)
		cancel()
		if err != nil {
			return err
		}
		debugLog.Printf("client: ping %v", rtt)
	}
}

// request sends one request frame and waits for the matching answer.
func (d *Display) request(ctx context.Context, typ protocol.MessageType, op string, payload []byte) (protocol.Ack, error) {
	c := &call{op: op, ch: make(chan result, 1)}
	d.mu.Lock()
	if d.eof {
		d.mu.Unlock()
		return protocol.Ack{}, ErrClosed
	}
	d.seq++
	seq := d.seq
	d.pending[seq] = c
	d.mu.Unlock()

	forget := func() {
		d.mu.Lock()
		delete(d.pending, seq)
		d.mu.Unlock()
	}

	hdr := protocol.Header{
		Version:   protocol.Version,
		Type:      typ,
		Flags:     protocol.FlagChecksum,
		SessionID: d.sessionID,
		Sequence:  seq,
	}
	if err := d.write(hdr, payload); err != nil {
		forget()
		return protocol.Ack{}, fmt.Errorf("client: %s: %w", op, err)
	}

	select {
	case r := <-c.ch:
		return r.ack, r.err
	case <-ctx.Done():
		forget()
		return protocol.Ack{}, fmt.Errorf("client: %s: %w", op, ctx.Err())
	}
}

func (d *Display) write(hdr protocol.Header, payload []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return protocol.WriteMessage(d.conn, hdr, payload)
}

func (d *Display) resolve(seq uint64, r result) {
	d.mu.Lock()
	c, ok := d.pending[seq]
	delete(d.pending, seq)
	d.mu.Unlock()
	if !ok {
		debugLog.Printf("client: answer for unknown request %d", seq)
		return
	}
	if re, ok := r.err.(*RequestError); ok {
		re.Op = c.op
	}
	c.ch <- r
}

func (d *Display) push(in widget.Input) {
	d.mu.Lock()
	d.queue = append(d.queue, in)
	d.mu.Unlock()
	d.cond.Signal()
}

func (d *Display) readLoop() {
	for {
		hdr, payload, err := protocol.ReadMessage(d.conn)
		if err != nil {
			d.shutdown(err)
			return
		}
		if err := d.handle(hdr, payload); err != nil {
			d.shutdown(err)
			return
		}
	}
}

func (d *Display) handle(hdr protocol.Header, payload []byte) error {
	switch hdr.Type {
	case protocol.MsgAck:
		ack, err := protocol.DecodeAck(payload)
		if err != nil {
			return err
		}
		d.resolve(ack.Sequence, result{ack: ack})
	case protocol.MsgError:
		e, err := protocol.DecodeErrorFrame(payload)
		if err != nil {
			return err
		}
		d.resolve(e.Sequence, result{err: &RequestError{Code: e.Code, Message: e.Message}})
	case protocol.MsgClipUpdate:
		u, err := protocol.DecodeClipUpdate(payload)
		if err != nil {
			return err
		}
		id := widget.WindowID(u.WindowID)
		if s := d.surface(id); s != nil {
			s.setOrigin(u.Outer.Min)
		}
		d.push(widget.Input{Kind: widget.InputClip, Window: id, Outer: u.Outer, Clip: u.Rects})
	case protocol.MsgKeyEvent:
		ev, err := protocol.DecodeKeyEvent(payload)
		if err != nil {
			return err
		}
		d.push(widget.Input{
			Kind:   widget.InputKey,
			Window: widget.WindowID(ev.WindowID),
			Key:    tcell.Key(ev.KeyCode),
			Rune:   ev.RuneValue,
			Mod:    tcell.ModMask(ev.Modifiers),
		})
	case protocol.MsgMouseEvent:
		ev, err := protocol.DecodeMouseEvent(payload)
		if err != nil {
			return err
		}
		d.push(widget.Input{
			Kind:    widget.InputMouse,
			Window:  widget.WindowID(ev.WindowID),
			Point:   image.Pt(int(ev.X), int(ev.Y)),
			Buttons: tcell.ButtonMask(ev.ButtonMask),
			Mod:     tcell.ModMask(ev.Modifiers),
		})
	case protocol.MsgCloseRequest:
		ref, err := protocol.DecodeWindowRef(payload)
		if err != nil {
			return err
		}
		d.push(widget.Input{Kind: widget.InputClose, Window: widget.WindowID(ref.WindowID)})
	case protocol.MsgDisconnectNotice:
		notice, _ := protocol.DecodeDisconnectNotice(payload)
		return &DisconnectError{Reason: notice.ReasonCode, Message: notice.Message}
	case protocol.MsgPong:
		if _, err := protocol.DecodePong(payload); err != nil {
			return err
		}
		d.resolve(hdr.Sequence, result{})
	default:
		log.Printf("client: ignoring %v from server", hdr.Type)
	}
	return nil
}

// shutdown fails every pending request and lets the pump close Events once
// the queue drains.
func (d *Display) shutdown(err error) {
	d.mu.Lock()
	if d.eof {
		d.mu.Unlock()
		return
	}
	d.eof = true
	if !errors.Is(err, net.ErrClosed) {
		d.err = err
		d.queue = append(d.queue, widget.Input{Kind: widget.InputError, Err: err})
	}
	pending := d.pending
	d.pending = make(map[uint64]*call)
	d.mu.Unlock()
	d.cond.Broadcast()

	for _, c := range pending {
		c.ch <- result{err: fmt.Errorf("client: %s: %w", c.op, ErrClosed)}
	}
	d.conn.Close()
}

func (d *Display) pump() {
	defer close(d.events)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.eof {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		in := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		select {
		case d.events <- in:
		case <-d.abandon:
			return
		}
	}
}

// Close says goodbye to the server and drops the connection. Events is
// closed without delivering what is still queued.
func (d *Display) Close() error {
	d.closeOnce.Do(func() {
		close(d.abandon)
		notice, _ := protocol.EncodeDisconnectNotice(protocol.DisconnectNotice{
			ReasonCode: protocol.DisconnectNormal,
			Message:    "client closing",
		})
		_ = d.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = d.write(protocol.Header{Version: protocol.Version, Type: protocol.MsgDisconnectNotice, Flags: protocol.FlagChecksum, SessionID: d.sessionID}, notice)
		d.shutdown(net.ErrClosed)
	})
	return nil
}

var _ widget.Display = (*Display)(nil)
