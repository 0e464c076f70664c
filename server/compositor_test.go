// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/framegrace/texelgui/protocol"
	"github.com/gdamore/tcell/v2"
)

func newTestCompositor(t *testing.T) (*Compositor, *recordingOwner) {
	t.Helper()
	c := NewCompositor(nil, nil)
	c.Resize(80, 24)
	return c, &recordingOwner{}
}

func mustShow(t *testing.T, c *Compositor, o Owner, title string, r image.Rectangle) uint32 {
	t.Helper()
	id, err := c.Create(o, protocol.WindowCreate{Title: title, Rect: r})
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	if err := c.Show(o, id); err != nil {
		t.Fatalf("show %q: %v", title, err)
	}
	return id
}

func clipArea(t *testing.T, o *recordingOwner, id uint32) int {
	t.Helper()
	u, ok := o.lastClip(id)
	if !ok {
		t.Fatalf("no clip pushed for window %d", id)
	}
	return area(u.Rects)
}

func TestOuterClipExcludesWindowsAbove(t *testing.T) {
	c, o := newTestCompositor(t)
	a := mustShow(t, c, o, "a", image.Rect(0, 0, 20, 10))
	b := mustShow(t, c, o, "b", image.Rect(10, 5, 30, 15))

	if got := clipArea(t, o, a); got != 150 {
		t.Fatalf("a clip area = %d, want 150", got)
	}
	if got := clipArea(t, o, b); got != 200 {
		t.Fatalf("b clip area = %d, want 200", got)
	}
	if u, _ := o.lastClip(a); u.Outer != image.Rect(0, 0, 20, 10) {
		t.Fatalf("outer extent = %v", u.Outer)
	}

	o.reset()
	if err := c.Raise(o, a); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if got := clipArea(t, o, a); got != 200 {
		t.Fatalf("raised a clip area = %d, want 200", got)
	}
	if got := clipArea(t, o, b); got != 150 {
		t.Fatalf("lowered b clip area = %d, want 150", got)
	}

	o.reset()
	if err := c.Hide(o, a); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if got := clipArea(t, o, b); got != 200 {
		t.Fatalf("b clip after hiding a = %d, want 200", got)
	}
	if _, ok := o.lastClip(a); ok {
		t.Fatalf("hidden window should not get a clip grant")
	}
	if info, _ := c.Window(a); !info.Clip.Empty() {
		t.Fatalf("hidden window keeps clip %v", info.Clip)
	}
}

func TestOuterClipStaysOnScreen(t *testing.T) {
	c, o := newTestCompositor(t)
	id := mustShow(t, c, o, "edge", image.Rect(70, 20, 90, 30))
	if got := clipArea(t, o, id); got != 40 {
		t.Fatalf("clip area = %d, want 40", got)
	}

	o.reset()
	c.Resize(100, 40)
	if got := clipArea(t, o, id); got != 200 {
		t.Fatalf("clip area after growing the screen = %d, want 200", got)
	}
}

func TestUnchangedClipIsNotPushedAgain(t *testing.T) {
	c, o := newTestCompositor(t)
	a := mustShow(t, c, o, "a", image.Rect(0, 0, 20, 10))
	b := mustShow(t, c, o, "b", image.Rect(10, 5, 30, 15))

	o.reset()
	if err := c.Move(o, b, image.Rect(40, 0, 60, 10)); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := clipArea(t, o, a); got != 200 {
		t.Fatalf("a clip after b moved away = %d, want 200", got)
	}
	if u, _ := o.lastClip(b); u.Outer != image.Rect(40, 0, 60, 10) {
		t.Fatalf("b outer = %v", u.Outer)
	}

	o.reset()
	if err := c.Move(o, b, image.Rect(40, 0, 60, 10)); err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(o.clips) != 0 {
		t.Fatalf("same geometry pushed %d clips", len(o.clips))
	}
}

func TestRequestsCheckOwnership(t *testing.T) {
	c, o := newTestCompositor(t)
	id, _ := c.Create(o, protocol.WindowCreate{Title: "mine", Rect: image.Rect(0, 0, 5, 5)})
	other := &recordingOwner{}

	if err := c.Show(other, id); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := c.Destroy(o, 99); !errors.Is(err, ErrUnknownWindow) {
		t.Fatalf("expected ErrUnknownWindow, got %v", err)
	}
	if err := c.Move(o, id, image.Rectangle{}); !errors.Is(err, ErrBadGeometry) {
		t.Fatalf("expected ErrBadGeometry, got %v", err)
	}
	if info, _ := c.Window(id); info.Shown {
		t.Fatalf("rejected show changed the window")
	}
}

func TestRemoveOwnerRegrantsClips(t *testing.T) {
	c, o := newTestCompositor(t)
	other := &recordingOwner{}
	below := mustShow(t, c, other, "below", image.Rect(0, 0, 10, 10))
	mustShow(t, c, o, "above", image.Rect(0, 0, 10, 5))
	if got := clipArea(t, other, below); got != 50 {
		t.Fatalf("covered clip = %d, want 50", got)
	}

	c.RemoveOwner(o)
	if got := clipArea(t, other, below); got != 100 {
		t.Fatalf("clip after owner left = %d, want 100", got)
	}
	if n := len(c.Windows()); n != 1 {
		t.Fatalf("windows left = %d, want 1", n)
	}
}

func TestMouseRoutingRaisesAndGrabs(t *testing.T) {
	c, o := newTestCompositor(t)
	a := mustShow(t, c, o, "a", image.Rect(0, 0, 20, 10))
	b := mustShow(t, c, o, "b", image.Rect(10, 5, 30, 15))

	mouse := func(x, y int, btn tcell.ButtonMask) bool {
		return c.HandleEvent(tcell.NewEventMouse(x, y, btn, tcell.ModNone))
	}
	if mouse(12, 6, tcell.Button1) {
		t.Fatalf("press on the top window must not restack")
	}
	mouse(12, 6, tcell.ButtonNone)
	if !mouse(2, 2, tcell.Button1) {
		t.Fatalf("press on a covered window should raise it")
	}
	mouse(50, 20, tcell.ButtonNone)
	mouse(25, 12, tcell.ButtonNone)

	want := []uint32{b, b, a, a, b}
	if len(o.mice) != len(want) {
		t.Fatalf("mouse events = %+v", o.mice)
	}
	for i, id := range want {
		if o.mice[i].WindowID != id {
			t.Fatalf("event %d went to %d, want %d", i, o.mice[i].WindowID, id)
		}
	}
	if o.mice[3].X != 50 || o.mice[3].ButtonMask != 0 {
		t.Fatalf("grabbed release = %+v", o.mice[3])
	}
	if got := clipArea(t, o, a); got != 200 {
		t.Fatalf("raised window clip = %d, want 200", got)
	}
}

func TestKeysGoToTopWindow(t *testing.T) {
	c, o := newTestCompositor(t)
	mustShow(t, c, o, "a", image.Rect(0, 0, 5, 5))
	b := mustShow(t, c, o, "b", image.Rect(10, 0, 15, 5))

	c.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	if len(o.keys) != 1 || o.keys[0].WindowID != b || o.keys[0].RuneValue != 'x' {
		t.Fatalf("keys = %+v", o.keys)
	}

	c.HandleEvent(tcell.NewEventKey(tcell.KeyCtrlW, 0, tcell.ModCtrl))
	if len(o.closes) != 1 || o.closes[0] != b {
		t.Fatalf("close requests = %v", o.closes)
	}
	if len(o.keys) != 1 {
		t.Fatalf("close key leaked to the client")
	}
}

func TestRenderComposesByStackingOrder(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer sim.Fini()
	sim.SetSize(30, 10)

	c := NewCompositor(NewTcellScreenDriver(sim), nil)
	o := &recordingOwner{}
	a := mustShow(t, c, o, "a", image.Rect(0, 0, 10, 3))
	b := mustShow(t, c, o, "b", image.Rect(5, 0, 15, 3))

	plain := []protocol.StyleEntry{{}}
	if err := c.Draw(o, protocol.DrawCells{WindowID: a, Styles: plain, Runs: []protocol.CellRun{
		{Text: "aaaaaaaaaa"},
		{Y: 1, Text: "世x"},
	}}); err != nil {
		t.Fatalf("draw a: %v", err)
	}
	if err := c.Draw(o, protocol.DrawCells{WindowID: b, Styles: plain, Runs: []protocol.CellRun{{Text: "bbbbbbbbbbbbbb"}}}); err != nil {
		t.Fatalf("draw b: %v", err)
	}
	c.Render()

	row := make([]rune, 0, 16)
	for x := 0; x < 16; x++ {
		r, _, _, _ := sim.GetContent(x, 0)
		row = append(row, r)
	}
	if got := string(row); got != "aaaaabbbbbbbbbb " {
		t.Fatalf("row 0 = %q", got)
	}
	if r, _, _, _ := sim.GetContent(0, 1); r != '世' {
		t.Fatalf("wide rune = %q", r)
	}
	if r, _, _, _ := sim.GetContent(2, 1); r != 'x' {
		t.Fatalf("after wide rune = %q", r)
	}
}

func TestCreateRestoresPlacement(t *testing.T) {
	store, err := OpenPlacementStore(filepath.Join(t.TempDir(), "placements.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	c := NewCompositor(nil, store)
	c.Resize(80, 24)
	o := &recordingOwner{}

	id := mustShow(t, c, o, "editor", image.Rect(3, 4, 33, 14))
	if err := c.Destroy(o, id); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	id, err = c.Create(o, protocol.WindowCreate{Title: "editor"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if info, _ := c.Window(id); info.Rect != image.Rect(3, 4, 33, 14) {
		t.Fatalf("restored rect = %v", info.Rect)
	}

	id, _ = c.Create(o, protocol.WindowCreate{Title: "fresh"})
	if info, _ := c.Window(id); info.Rect != image.Rect(4, 2, 44, 14) {
		t.Fatalf("cascaded rect = %v", info.Rect)
	}
}

func TestApplySettings(t *testing.T) {
	c, o := newTestCompositor(t)
	c.Apply(Settings{DefaultSize: image.Pt(10, 4), CloseKey: tcell.KeyCtrlX})
	id, err := c.Create(o, protocol.WindowCreate{Title: "fresh"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	info, _ := c.Window(id)
	if info.Rect.Size() != image.Pt(10, 4) {
		t.Fatalf("default size = %v", info.Rect.Size())
	}
	if err := c.Show(o, id); err != nil {
		t.Fatalf("show: %v", err)
	}
	c.HandleEvent(tcell.NewEventKey(tcell.KeyCtrlW, 0, tcell.ModCtrl))
	if len(o.closes) != 0 {
		t.Fatalf("old close key still active")
	}
	c.HandleEvent(tcell.NewEventKey(tcell.KeyCtrlX, 0, tcell.ModCtrl))
	if len(o.closes) != 1 || o.closes[0] != id {
		t.Fatalf("closes = %v", o.closes)
	}
}
