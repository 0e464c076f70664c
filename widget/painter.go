// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/painter.go
// Summary: Clipped cell painting for widgets.
// Usage: Handlers call w.Painter(ev.Surface) while handling EventPaint.

package widget

import (
	"image"

	"github.com/framegrace/texelgui/font"
	"github.com/framegrace/texelgui/region"
	"github.com/gdamore/tcell/v2"
)

// Painter writes cells to a surface, dropping everything outside the widget
// clip and the window outer clip.
type Painter struct {
	surface Surface
	clip    *region.Region
	font    font.Font
}

// Painter returns a painter bound to the current clip of w.
func (w *Widget) Painter(s Surface) *Painter {
	clip := w.clip.Clone()
	if top := w.toplevel; top != nil {
		clip.Intersect(&top.outerClip)
	}
	return &Painter{surface: s, clip: clip, font: w.Font()}
}

// Clip is the area the painter may touch.
func (p *Painter) Clip() *region.Region { return p.clip }

// SetCell writes one cell and reports whether it was inside the clip.
func (p *Painter) SetCell(x, y int, ch rune, style tcell.Style) bool {
	if p.surface == nil || !p.clip.Contains(image.Pt(x, y)) {
		return false
	}
	p.surface.SetContent(x, y, ch, nil, style)
	return true
}

// Fill paints r with ch.
func (p *Painter) Fill(r image.Rectangle, ch rune, style tcell.Style) {
	if p.surface == nil {
		return
	}
	for _, m := range p.clip.Rects() {
		m = m.Intersect(r)
		for y := m.Min.Y; y < m.Max.Y; y++ {
			for x := m.Min.X; x < m.Max.X; x++ {
				p.surface.SetContent(x, y, ch, nil, style)
			}
		}
	}
}

// Text draws s starting at pt and returns the number of cells advanced.
// Wide runes take two cells; zero-width runes are dropped.
func (p *Painter) Text(pt image.Point, s string, style tcell.Style) int {
	x := pt.X
	for _, r := range s {
		w := p.font.RuneWidth(r)
		if w <= 0 {
			continue
		}
		p.SetCell(x, pt.Y, r, style)
		for i := 1; i < w; i++ {
			// Continuation cells of a wide rune stay untouched by later text.
			if p.clip.Contains(image.Pt(x+i, pt.Y)) && p.surface != nil {
				p.surface.SetContent(x+i, pt.Y, 0, nil, style)
			}
		}
		x += w
	}
	return x - pt.X
}

// Frame draws a single-line box along the border of r.
func (p *Painter) Frame(r image.Rectangle, style tcell.Style) {
	if r.Dx() < 2 || r.Dy() < 2 {
		return
	}
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	for x := x0 + 1; x < x1; x++ {
		p.SetCell(x, y0, tcell.RuneHLine, style)
		p.SetCell(x, y1, tcell.RuneHLine, style)
	}
	for y := y0 + 1; y < y1; y++ {
		p.SetCell(x0, y, tcell.RuneVLine, style)
		p.SetCell(x1, y, tcell.RuneVLine, style)
	}
	p.SetCell(x0, y0, tcell.RuneULCorner, style)
	p.SetCell(x1, y0, tcell.RuneURCorner, style)
	p.SetCell(x0, y1, tcell.RuneLLCorner, style)
	p.SetCell(x1, y1, tcell.RuneLRCorner, style)
}
