// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"image"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/framegrace/texelgui/protocol"
	"github.com/gdamore/tcell/v2"
)

// recordingOwner captures compositor pushes.
type recordingOwner struct {
	mu     sync.Mutex
	clips  []protocol.ClipUpdate
	keys   []protocol.KeyEvent
	mice   []protocol.MouseEvent
	closes []uint32
}

func (o *recordingOwner) ClipChanged(u protocol.ClipUpdate) {
	o.mu.Lock()
	o.clips = append(o.clips, u)
	o.mu.Unlock()
}

func (o *recordingOwner) Key(ev protocol.KeyEvent) {
	o.mu.Lock()
	o.keys = append(o.keys, ev)
	o.mu.Unlock()
}

func (o *recordingOwner) Mouse(ev protocol.MouseEvent) {
	o.mu.Lock()
	o.mice = append(o.mice, ev)
	o.mu.Unlock()
}

func (o *recordingOwner) CloseRequested(id uint32) {
	o.mu.Lock()
	o.closes = append(o.closes, id)
	o.mu.Unlock()
}

// lastClip returns the latest clip pushed for window id.
func (o *recordingOwner) lastClip(id uint32) (protocol.ClipUpdate, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.clips) - 1; i >= 0; i-- {
		if o.clips[i].WindowID == id {
			return o.clips[i], true
		}
	}
	return protocol.ClipUpdate{}, false
}

func (o *recordingOwner) reset() {
	o.mu.Lock()
	o.clips, o.keys, o.mice, o.closes = nil, nil, nil, nil
	o.mu.Unlock()
}

func area(rects []image.Rectangle) int {
	n := 0
	for _, r := range rects {
		n += r.Dx() * r.Dy()
	}
	return n
}

type frame struct {
	hdr     protocol.Header
	payload []byte
}

// pipeClient speaks the wire protocol to a server over net.Pipe.
type pipeClient struct {
	t      *testing.T
	conn   net.Conn
	seq    uint64
	frames chan frame
	pushes []frame
	done   chan error
}

func dialPipe(t *testing.T, srv *Server) (*pipeClient, protocol.Welcome) {
	t.Helper()
	client, serverConn := net.Pipe()
	pc := &pipeClient{t: t, conn: client, frames: make(chan frame, 64), done: make(chan error, 1)}
	go func() { pc.done <- srv.Serve(serverConn) }()
	t.Cleanup(func() { client.Close() })

	helloPayload, _ := protocol.EncodeHello(protocol.Hello{ClientName: "pipe-client"})
	if err := protocol.WriteMessage(client, protocol.Header{Version: protocol.Version, Type: protocol.MsgHello, Flags: protocol.FlagChecksum}, helloPayload); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	hdr, payload, err := protocol.ReadMessage(client)
	if err != nil || hdr.Type != protocol.MsgWelcome {
		t.Fatalf("read welcome: %v %v", hdr.Type, err)
	}
	welcome, err := protocol.DecodeWelcome(payload)
	if err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	connectPayload, _ := protocol.EncodeConnectRequest(protocol.ConnectRequest{})
	if err := protocol.WriteMessage(client, protocol.Header{Version: protocol.Version, Type: protocol.MsgConnectRequest, Flags: protocol.FlagChecksum}, connectPayload); err != nil {
		t.Fatalf("write connect: %v", err)
	}
	if hdr, _, err = protocol.ReadMessage(client); err != nil || hdr.Type != protocol.MsgConnectAccept {
		t.Fatalf("read connect accept: %v %v", hdr.Type, err)
	}

	go func() {
		defer close(pc.frames)
		for {
			hdr, payload, err := protocol.ReadMessage(client)
			if err != nil {
				return
			}
			pc.frames <- frame{hdr: hdr, payload: payload}
		}
	}()
	return pc, welcome
}

func (pc *pipeClient) next() (frame, bool) {
	pc.t.Helper()
	select {
	case f, ok := <-pc.frames:
		return f, ok
	case <-time.After(2 * time.Second):
		pc.t.Fatalf("timed out waiting for a frame")
		return frame{}, false
	}
}

// request sends a frame and returns the Ack or ErrorFrame answering it.
// Pushes read meanwhile are kept in pc.pushes.
func (pc *pipeClient) request(typ protocol.MessageType, payload []byte) frame {
	pc.t.Helper()
	pc.seq++
	hdr := protocol.Header{Version: protocol.Version, Type: typ, Flags: protocol.FlagChecksum, Sequence: pc.seq}
	if err := protocol.WriteMessage(pc.conn, hdr, payload); err != nil {
		pc.t.Fatalf("write %v: %v", typ, err)
	}
	for {
		f, ok := pc.next()
		if !ok {
			pc.t.Fatalf("connection closed waiting for answer to %v", typ)
		}
		if (f.hdr.Type == protocol.MsgAck || f.hdr.Type == protocol.MsgError) && f.hdr.Sequence == pc.seq {
			return f
		}
		pc.pushes = append(pc.pushes, f)
	}
}

func (pc *pipeClient) ack(typ protocol.MessageType, payload []byte) protocol.Ack {
	pc.t.Helper()
	f := pc.request(typ, payload)
	if f.hdr.Type != protocol.MsgAck {
		e, _ := protocol.DecodeErrorFrame(f.payload)
		pc.t.Fatalf("%v rejected: %+v", typ, e)
	}
	a, err := protocol.DecodeAck(f.payload)
	if err != nil {
		pc.t.Fatalf("decode ack: %v", err)
	}
	return a
}

// clip returns the next clip update for window id, looking at buffered
// pushes first.
func (pc *pipeClient) clip(id uint32) protocol.ClipUpdate {
	pc.t.Helper()
	for i, f := range pc.pushes {
		if f.hdr.Type != protocol.MsgClipUpdate {
			continue
		}
		u, err := protocol.DecodeClipUpdate(f.payload)
		if err == nil && u.WindowID == id {
			pc.pushes = append(pc.pushes[:i], pc.pushes[i+1:]...)
			return u
		}
	}
	for {
		f, ok := pc.next()
		if !ok {
			pc.t.Fatalf("connection closed waiting for clip of %d", id)
		}
		if f.hdr.Type == protocol.MsgClipUpdate {
			if u, err := protocol.DecodeClipUpdate(f.payload); err == nil && u.WindowID == id {
				return u
			}
		}
		pc.pushes = append(pc.pushes, f)
	}
}

func tcellKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}
