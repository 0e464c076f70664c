// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/framegrace/texelgui/region"
	"github.com/gdamore/tcell/v2"
)

type cellSurface struct {
	cells map[image.Point]rune
}

func newCellSurface() *cellSurface {
	return &cellSurface{cells: make(map[image.Point]rune)}
}

func (s *cellSurface) SetContent(x, y int, mainc rune, combc []rune, style tcell.Style) {
	s.cells[image.Pt(x, y)] = mainc
}

func (s *cellSurface) row(y, x0, x1 int) string {
	out := make([]rune, 0, x1-x0)
	for x := x0; x < x1; x++ {
		r, ok := s.cells[image.Pt(x, y)]
		if !ok {
			r = '.'
		}
		out = append(out, r)
	}
	return string(out)
}

type stubDisplay struct {
	mu         sync.Mutex
	next       WindowID
	created    []WindowSpec
	shown      map[WindowID]bool
	moves      []image.Rectangle
	destroyed  []WindowID
	flushes    int
	failCreate error
	failShow   error
	surfaces   map[WindowID]*cellSurface
	events     chan Input
}

func newStubDisplay() *stubDisplay {
	return &stubDisplay{
		shown:    make(map[WindowID]bool),
		surfaces: make(map[WindowID]*cellSurface),
		events:   make(chan Input, 16),
	}
}

func (d *stubDisplay) CreateWindow(ctx context.Context, spec WindowSpec) (WindowID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failCreate != nil {
		return 0, d.failCreate
	}
	d.next++
	d.created = append(d.created, spec)
	d.surfaces[d.next] = newCellSurface()
	return d.next, nil
}

func (d *stubDisplay) ShowWindow(ctx context.Context, id WindowID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failShow != nil {
		return d.failShow
	}
	d.shown[id] = true
	return nil
}

func (d *stubDisplay) HideWindow(ctx context.Context, id WindowID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown[id] = false
	return nil
}

func (d *stubDisplay) MoveWindow(ctx context.Context, id WindowID, r image.Rectangle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moves = append(d.moves, r)
	return nil
}

func (d *stubDisplay) DestroyWindow(ctx context.Context, id WindowID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = append(d.destroyed, id)
	delete(d.shown, id)
	return nil
}

func (d *stubDisplay) Surface(id WindowID) Surface {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.surfaces[id]; ok {
		return s
	}
	return nil
}

func (d *stubDisplay) Flush(ctx context.Context, id WindowID) error {
	d.mu.Lock()
	d.flushes++
	d.mu.Unlock()
	return nil
}

func (d *stubDisplay) Events() <-chan Input { return d.events }

// shownWindow returns a shown window without decorations covering r.
func shownWindow(t *testing.T, r image.Rectangle) (*App, *stubDisplay, *Window) {
	t.Helper()
	d := newStubDisplay()
	app := NewApp(d, nil)
	win, err := NewWindow(app, 1, "test", r, 0)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if err := win.Show(context.Background()); err != nil {
		t.Fatalf("Show: %v", err)
	}
	return app, d, win
}

func mustWidget(t *testing.T, parent *Container, id int, r image.Rectangle) *Widget {
	t.Helper()
	w, err := NewWidget(parent, id)
	if err != nil {
		t.Fatalf("NewWidget: %v", err)
	}
	if !r.Empty() {
		w.SetRect(r)
	}
	return w
}

// subsetOf reports whether every cell of rg lies inside r.
func subsetOf(rg *region.Region, r image.Rectangle) bool {
	c := rg.Clone()
	c.IntersectRect(r)
	return c.Equal(rg)
}
