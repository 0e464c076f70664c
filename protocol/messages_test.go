// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/messages_test.go
// Summary: Payload codec behaviour.

package protocol

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHelloRoundTrip(t *testing.T) {
	var id [16]byte
	copy(id[:], []byte("client-abcdefghi"))
	hello := Hello{ClientID: id, ClientName: "texelgui-demo", Capabilities: 0xdeadbeef}
	payload, err := EncodeHello(hello)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeHello(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != hello {
		t.Fatalf("mismatch: %#v vs %#v", decoded, hello)
	}
}

func TestWelcomeCarriesScreenSize(t *testing.T) {
	w := Welcome{ServerName: "texelgui", Width: 132, Height: 43}
	payload, err := EncodeWelcome(w)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeWelcome(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != w {
		t.Fatalf("mismatch: %#v vs %#v", decoded, w)
	}
}

func TestErrorFrameEchoesSequence(t *testing.T) {
	frame := ErrorFrame{Sequence: 77, Code: ErrCodeUnknownWindow, Message: "no window 4"}
	payload, err := EncodeErrorFrame(frame)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeErrorFrame(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != frame {
		t.Fatalf("mismatch: %#v vs %#v", decoded, frame)
	}
}

func TestWindowCreateNegativeOrigin(t *testing.T) {
	c := WindowCreate{Title: "editor", Rect: image.Rect(-4, -2, 40, 12), Style: 3}
	payload, err := EncodeWindowCreate(c)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeWindowCreate(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != c {
		t.Fatalf("mismatch: %#v vs %#v", decoded, c)
	}
}

func TestWindowMoveAndRef(t *testing.T) {
	m := WindowMove{WindowID: 9, Rect: image.Rect(1, 2, 3, 4)}
	payload, _ := EncodeWindowMove(m)
	got, err := DecodeWindowMove(payload)
	if err != nil || got != m {
		t.Fatalf("move round trip: %#v, %v", got, err)
	}

	payload, _ = EncodeWindowRef(WindowRef{WindowID: 12})
	ref, err := DecodeWindowRef(payload)
	if err != nil || ref.WindowID != 12 {
		t.Fatalf("ref round trip: %#v, %v", ref, err)
	}
}

func TestClipUpdateRects(t *testing.T) {
	u := ClipUpdate{
		WindowID: 3,
		Outer:    image.Rect(0, 0, 20, 10),
		Rects:    []image.Rectangle{image.Rect(0, 0, 20, 5), image.Rect(0, 5, 8, 10)},
	}
	payload, err := EncodeClipUpdate(u)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeClipUpdate(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.WindowID != 3 || decoded.Outer != u.Outer || len(decoded.Rects) != 2 || decoded.Rects[1] != u.Rects[1] {
		t.Fatalf("mismatch: %#v", decoded)
	}

	if _, err := DecodeClipUpdate(payload[:len(payload)-4]); err == nil {
		t.Fatalf("truncated clip update should fail")
	}
}

func TestInputEventsCarryWindow(t *testing.T) {
	key := KeyEvent{WindowID: 5, KeyCode: uint32(tcell.KeyRune), RuneValue: 'é', Modifiers: uint16(tcell.ModAlt)}
	payload, _ := EncodeKeyEvent(key)
	gotKey, err := DecodeKeyEvent(payload)
	if err != nil || gotKey != key {
		t.Fatalf("key round trip: %#v, %v", gotKey, err)
	}

	mouse := MouseEvent{WindowID: 5, X: -1, Y: 7, ButtonMask: uint32(tcell.Button1)}
	payload, _ = EncodeMouseEvent(mouse)
	gotMouse, err := DecodeMouseEvent(payload)
	if err != nil || gotMouse != mouse {
		t.Fatalf("mouse round trip: %#v, %v", gotMouse, err)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	payload, _ := EncodeAck(Ack{Sequence: 1, WindowID: 2})
	payload = append(payload, 0)
	if _, err := DecodeAck(payload); !errors.Is(err, errExtraBytes) {
		t.Fatalf("expected errExtraBytes, got %v", err)
	}
}

func TestEncodeStringTooLong(t *testing.T) {
	if _, err := EncodeWindowCreate(WindowCreate{Title: strings.Repeat("x", 0x10000)}); !errors.Is(err, errStringTooLong) {
		t.Fatalf("expected errStringTooLong, got %v", err)
	}
}

func TestDrawCellsRoundTrip(t *testing.T) {
	d := DrawCells{
		WindowID: 4,
		Styles: []StyleEntry{
			{AttrFlags: AttrBold, FgModel: ColorModelRGB, FgValue: 0x112233},
			{FgModel: ColorModelANSI256, FgValue: 6, BgModel: ColorModelRGB, BgValue: 0x445566},
		},
		Runs: []CellRun{
			{X: 0, Y: 0, Text: "hello", StyleIndex: 0},
			{X: 2, Y: 1, Text: "世界", StyleIndex: 1},
		},
	}
	payload, err := EncodeDrawCells(d)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeDrawCells(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.WindowID != 4 || len(decoded.Styles) != 2 || len(decoded.Runs) != 2 {
		t.Fatalf("mismatch: %#v", decoded)
	}
	if decoded.Styles[1] != d.Styles[1] || decoded.Runs[1] != d.Runs[1] {
		t.Fatalf("entries differ: %#v", decoded)
	}
}

func TestDrawCellsRejectsDanglingStyle(t *testing.T) {
	d := DrawCells{Runs: []CellRun{{Text: "x", StyleIndex: 2}}}
	if _, err := EncodeDrawCells(d); !errors.Is(err, ErrDrawTooLarge) {
		t.Fatalf("expected ErrDrawTooLarge, got %v", err)
	}
}

func TestStyleConversion(t *testing.T) {
	style := tcell.StyleDefault.
		Foreground(tcell.NewRGBColor(10, 20, 30)).
		Background(tcell.PaletteColor(4)).
		Bold(true).
		Reverse(true)
	entry := StyleFromTcell(style)
	if entry.AttrFlags != AttrBold|AttrReverse {
		t.Fatalf("attr flags = %b", entry.AttrFlags)
	}
	if entry.FgModel != ColorModelRGB || entry.FgValue != 0x0a141e {
		t.Fatalf("fg = %v %x", entry.FgModel, entry.FgValue)
	}
	if entry.BgModel != ColorModelANSI256 || entry.BgValue != 4 {
		t.Fatalf("bg = %v %d", entry.BgModel, entry.BgValue)
	}
	if back := entry.Tcell(); back != style {
		t.Fatalf("style did not survive conversion")
	}
	if StyleFromTcell(tcell.StyleDefault) != (StyleEntry{}) {
		t.Fatalf("default style should encode as zero entry")
	}
}
