// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: x11/grid.go
// Summary: Per-window cell backing store used for flushes and exposures.

package x11

import (
	"image"

	"github.com/gdamore/tcell/v2"
)

type cell struct {
	ch    rune
	style tcell.Style
}

// run is a horizontal stretch of cells sharing a style, in window-local cells.
type run struct {
	at    image.Point
	text  []rune
	style tcell.Style
}

type grid struct {
	size  image.Point
	cells []cell
	dirty []bool
}

func newGrid(size image.Point) *grid {
	g := &grid{}
	g.resize(size)
	return g
}

// resize keeps the overlapping content and marks everything dirty.
func (g *grid) resize(size image.Point) {
	if size.X < 0 {
		size.X = 0
	}
	if size.Y < 0 {
		size.Y = 0
	}
	cells := make([]cell, size.X*size.Y)
	dirty := make([]bool, len(cells))
	for y := 0; y < size.Y && y < g.size.Y; y++ {
		for x := 0; x < size.X && x < g.size.X; x++ {
			cells[y*size.X+x] = g.cells[y*g.size.X+x]
		}
	}
	for i := range dirty {
		dirty[i] = true
	}
	g.size, g.cells, g.dirty = size, cells, dirty
}

func (g *grid) set(pt image.Point, ch rune, style tcell.Style) {
	if pt.X < 0 || pt.Y < 0 || pt.X >= g.size.X || pt.Y >= g.size.Y {
		return
	}
	i := pt.Y*g.size.X + pt.X
	c := cell{ch: ch, style: style}
	if g.cells[i] != c {
		g.cells[i] = c
		g.dirty[i] = true
	}
}

// takeDirty returns the runs covering every dirty cell and clears the marks.
func (g *grid) takeDirty() []run {
	var out []run
	for y := 0; y < g.size.Y; y++ {
		out = g.rowRuns(out, y, 0, g.size.X, func(i int) bool { return g.dirty[i] })
	}
	for i := range g.dirty {
		g.dirty[i] = false
	}
	return out
}

// runsIn returns the runs covering r, clipped to the grid.
func (g *grid) runsIn(r image.Rectangle) []run {
	r = r.Intersect(image.Rectangle{Max: g.size})
	var out []run
	for y := r.Min.Y; y < r.Max.Y; y++ {
		out = g.rowRuns(out, y, r.Min.X, r.Max.X, func(int) bool { return true })
	}
	return out
}

func (g *grid) rowRuns(out []run, y, x0, x1 int, include func(i int) bool) []run {
	cur := -1
	for x := x0; x < x1; x++ {
		i := y*g.size.X + x
		if !include(i) {
			cur = -1
			continue
		}
		c := g.cells[i]
		if cur < 0 || c.style != out[cur].style {
			out = append(out, run{at: image.Pt(x, y), style: c.style})
			cur = len(out) - 1
		}
		out[cur].text = append(out[cur].text, c.ch)
	}
	return out
}
