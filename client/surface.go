// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/surface.go
// Summary: Per-window paint buffer turned into DrawCells runs on flush.
// Notes: Widgets paint in screen coordinates; runs are sent relative to the
//        window's outer extent as last granted by the server.

package client

import (
	"image"
	"sort"
	"sync"

	"github.com/framegrace/texelgui/protocol"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

type paintedCell struct {
	ch    rune
	style tcell.Style
}

type surface struct {
	mu     sync.Mutex
	origin image.Point
	cells  map[image.Point]paintedCell
}

func newSurface(origin image.Point) *surface {
	return &surface{origin: origin, cells: make(map[image.Point]paintedCell)}
}

func (s *surface) setOrigin(pt image.Point) {
	s.mu.Lock()
	s.origin = pt
	s.mu.Unlock()
}

// SetContent records one cell. A zero rune marks the tail of a wide rune and
// is left to the server.
func (s *surface) SetContent(x, y int, mainc rune, combc []rune, style tcell.Style) {
	if mainc == 0 {
		return
	}
	s.mu.Lock()
	s.cells[image.Pt(x, y)] = paintedCell{ch: mainc, style: style}
	s.mu.Unlock()
}

// take drains the buffer into a DrawCells message. It reports false when
// nothing was painted.
func (s *surface) take(window uint32) (protocol.DrawCells, bool) {
	s.mu.Lock()
	cells := s.cells
	origin := s.origin
	s.cells = make(map[image.Point]paintedCell)
	s.mu.Unlock()

	draw := protocol.DrawCells{WindowID: window}
	if len(cells) == 0 {
		return draw, false
	}

	points := make([]image.Point, 0, len(cells))
	for pt := range cells {
		local := pt.Sub(origin)
		if local.X < 0 || local.Y < 0 || local.X > 0xFFFF || local.Y > 0xFFFF {
			continue
		}
		points = append(points, pt)
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Y != points[j].Y {
			return points[i].Y < points[j].Y
		}
		return points[i].X < points[j].X
	})

	styleIndex := make(map[tcell.Style]uint16)
	var (
		run    []rune
		runAt  image.Point
		runSty tcell.Style
		nextX  int
	)
	flushRun := func() {
		if len(run) == 0 {
			return
		}
		idx, ok := styleIndex[runSty]
		if !ok {
			idx = uint16(len(draw.Styles))
			styleIndex[runSty] = idx
			draw.Styles = append(draw.Styles, protocol.StyleFromTcell(runSty))
		}
		local := runAt.Sub(origin)
		draw.Runs = append(draw.Runs, protocol.CellRun{
			X:          uint16(local.X),
			Y:          uint16(local.Y),
			Text:       string(run),
			StyleIndex: idx,
		})
		run = run[:0]
	}
	for _, pt := range points {
		c := cells[pt]
		if len(run) == 0 || pt.Y != runAt.Y || pt.X != nextX || c.style != runSty {
			flushRun()
			runAt, runSty = pt, c.style
		}
		run = append(run, c.ch)
		w := runewidth.RuneWidth(c.ch)
		if w < 1 {
			w = 1
		}
		nextX = pt.X + w
	}
	flushRun()
	return draw, len(draw.Runs) > 0
}
