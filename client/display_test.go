// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"image"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/framegrace/texelgui/protocol"
	"github.com/framegrace/texelgui/server"
	"github.com/framegrace/texelgui/widget"
	"github.com/gdamore/tcell/v2"
)

type harness struct {
	sim  tcell.SimulationScreen
	comp *server.Compositor
	d    *Display
}

func startServer(t *testing.T) *harness {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	sim.SetSize(40, 12)
	comp := server.NewCompositor(server.NewTcellScreenDriver(sim), nil)
	srv := server.NewServer("", nil, comp)

	clientConn, serverConn := net.Pipe()
	go srv.Serve(serverConn)
	d, err := NewDisplay(clientConn, "test")
	if err != nil {
		t.Fatalf("NewDisplay: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
		sim.Fini()
	})
	return &harness{sim: sim, comp: comp, d: d}
}

// fakeServer completes the handshake on conn and hands it back to the test.
func fakeServer(t *testing.T) (*Display, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	go func() {
		if _, _, err := protocol.ReadMessage(serverConn); err != nil {
			return
		}
		welcome, _ := protocol.EncodeWelcome(protocol.Welcome{ServerName: "fake", Width: 80, Height: 24})
		protocol.WriteMessage(serverConn, protocol.Header{Version: protocol.Version, Type: protocol.MsgWelcome}, welcome)
		if _, _, err := protocol.ReadMessage(serverConn); err != nil {
			return
		}
		accept, _ := protocol.EncodeConnectAccept(protocol.ConnectAccept{SessionID: [16]byte{1}})
		protocol.WriteMessage(serverConn, protocol.Header{Version: protocol.Version, Type: protocol.MsgConnectAccept}, accept)
	}()
	d, err := NewDisplay(clientConn, "test")
	if err != nil {
		t.Fatalf("NewDisplay: %v", err)
	}
	t.Cleanup(func() {
		serverConn.Close()
		d.Close()
	})
	return d, serverConn
}

func nextInput(t *testing.T, d *Display, kind widget.InputKind) widget.Input {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case in, ok := <-d.Events():
			if !ok {
				t.Fatalf("events closed while waiting for kind %d", kind)
			}
			if in.Kind == kind {
				return in
			}
		case <-timeout:
			t.Fatalf("timed out waiting for input kind %d", kind)
		}
	}
}

func TestHandshakeReportsScreen(t *testing.T) {
	d, _ := fakeServer(t)
	if got := d.ScreenSize(); got != image.Pt(80, 24) {
		t.Fatalf("screen = %v", got)
	}
	if d.SessionID() != [16]byte{1} {
		t.Fatalf("session id = %x", d.SessionID())
	}
}

func TestShowGrantsClip(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()
	r := image.Rect(2, 1, 12, 4)
	id, err := h.d.CreateWindow(ctx, widget.WindowSpec{Title: "a", Rect: r})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := h.d.ShowWindow(ctx, id); err != nil {
		t.Fatalf("show: %v", err)
	}
	in := nextInput(t, h.d, widget.InputClip)
	if in.Window != id || in.Outer != r {
		t.Fatalf("clip input = %+v", in)
	}
	area := 0
	for _, c := range in.Clip {
		area += c.Dx() * c.Dy()
	}
	if area != 30 {
		t.Fatalf("clip area = %d, want 30", area)
	}
}

func TestRejectedRequestIsRequestError(t *testing.T) {
	h := startServer(t)
	err := h.d.ShowWindow(context.Background(), 99)
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if re.Code != protocol.ErrCodeUnknownWindow || re.Op != "show window" {
		t.Fatalf("request error = %+v", re)
	}
}

func TestFlushDrawsWindowLocalCells(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()
	id, err := h.d.CreateWindow(ctx, widget.WindowSpec{Title: "a", Rect: image.Rect(2, 1, 12, 4)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := h.d.ShowWindow(ctx, id); err != nil {
		t.Fatalf("show: %v", err)
	}
	s := h.d.Surface(id)
	s.SetContent(3, 1, 'h', nil, tcell.StyleDefault)
	s.SetContent(4, 1, 'i', nil, tcell.StyleDefault)
	if err := h.d.Flush(ctx, id); err != nil {
		t.Fatalf("flush: %v", err)
	}
	h.comp.Render()
	for x, want := range map[int]rune{3: 'h', 4: 'i'} {
		if r, _, _, _ := h.sim.GetContent(x, 1); r != want {
			t.Fatalf("cell (%d,1) = %q, want %q", x, r, want)
		}
	}
	if err := h.d.Flush(ctx, id); err != nil {
		t.Fatalf("empty flush: %v", err)
	}
}

func TestServerInputReachesEvents(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()
	id, _ := h.d.CreateWindow(ctx, widget.WindowSpec{Title: "a", Rect: image.Rect(0, 0, 10, 5)})
	if err := h.d.ShowWindow(ctx, id); err != nil {
		t.Fatalf("show: %v", err)
	}
	nextInput(t, h.d, widget.InputClip)

	h.comp.HandleEvent(tcell.NewEventMouse(5, 2, tcell.Button1, tcell.ModNone))
	in := nextInput(t, h.d, widget.InputMouse)
	if in.Window != id || in.Point != image.Pt(5, 2) || in.Buttons != tcell.Button1 {
		t.Fatalf("mouse input = %+v", in)
	}

	h.comp.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	in = nextInput(t, h.d, widget.InputKey)
	if in.Key != tcell.KeyRune || in.Rune != 'q' {
		t.Fatalf("key input = %+v", in)
	}

	h.comp.HandleEvent(tcell.NewEventKey(tcell.KeyCtrlW, 0, tcell.ModCtrl))
	if in = nextInput(t, h.d, widget.InputClose); in.Window != id {
		t.Fatalf("close input = %+v", in)
	}
}

func TestRequestHonoursContext(t *testing.T) {
	d, conn := fakeServer(t)
	go func() {
		for {
			if _, _, err := protocol.ReadMessage(conn); err != nil {
				return
			}
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.ShowWindow(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	d.mu.Lock()
	n := len(d.pending)
	d.mu.Unlock()
	if n != 0 {
		t.Fatalf("abandoned request still pending")
	}
}

func TestConnectionLossFailsPending(t *testing.T) {
	d, conn := fakeServer(t)
	go func() {
		protocol.ReadMessage(conn)
		conn.Close()
	}()
	if err := d.ShowWindow(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	in := nextInput(t, d, widget.InputError)
	if in.Err == nil {
		t.Fatalf("error input without error")
	}
	if _, ok := <-d.Events(); ok {
		t.Fatalf("events not closed after connection loss")
	}
}

func TestDisconnectNoticeEndsSession(t *testing.T) {
	d, conn := fakeServer(t)
	notice, _ := protocol.EncodeDisconnectNotice(protocol.DisconnectNotice{ReasonCode: protocol.DisconnectShutdown, Message: "bye"})
	go protocol.WriteMessage(conn, protocol.Header{Version: protocol.Version, Type: protocol.MsgDisconnectNotice}, notice)

	in := nextInput(t, d, widget.InputError)
	var de *DisconnectError
	if !errors.As(in.Err, &de) || de.Reason != protocol.DisconnectShutdown || de.Message != "bye" {
		t.Fatalf("error input = %v", in.Err)
	}
	if _, ok := <-d.Events(); ok {
		t.Fatalf("events not closed")
	}
	if err := d.HideWindow(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("request after disconnect = %v", err)
	}
	if !errors.As(d.Err(), &de) {
		t.Fatalf("Err() = %v", d.Err())
	}
}

func TestAppPaintsThroughServer(t *testing.T) {
	h := startServer(t)
	app := widget.NewApp(h.d, nil)
	win, err := widget.NewWindow(app, 1, "demo", image.Rect(0, 0, 20, 5), 0)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	lbl, _ := widget.NewLabel(&win.Container, 2, "hello")
	lbl.SetRect(image.Rect(0, 0, 5, 1))
	if err := win.Show(context.Background()); err != nil {
		t.Fatalf("show: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		h.comp.Render()
		var sb strings.Builder
		for x := 0; x < 5; x++ {
			r, _, _, _ := h.sim.GetContent(x, 0)
			sb.WriteRune(r)
		}
		if sb.String() == "hello" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("screen row 0 = %q", sb.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPingRoundTrip(t *testing.T) {
	h := startServer(t)
	if _, err := h.d.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(60*time.Millisecond, cancel)
	if err := h.d.KeepAlive(ctx, 10*time.Millisecond, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("keepalive ended with %v, want context.Canceled", err)
	}
}

func TestKeepAliveFailsOnSilentServer(t *testing.T) {
	d, serverConn := fakeServer(t)
	go func() {
		for {
			if _, _, err := protocol.ReadMessage(serverConn); err != nil {
				return
			}
		}
	}()
	err := d.KeepAlive(context.Background(), 10*time.Millisecond, 50*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("keepalive error = %v, want deadline exceeded", err)
	}
}
