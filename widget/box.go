// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/box.go
// Summary: Box layout: packs container children along one axis.
// Usage: c.SetBox(NewBox(Vertical, 1)); the layout runs on c.SetRect.

package widget

import "image"

// Orientation selects the main axis of a Box.
type Orientation uint8

const (
	Horizontal Orientation = iota
	Vertical
	// Both overlays every shown child on the whole inner area.
	Both
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case Both:
		return "both"
	}
	return "unknown"
}

// Box computes child rectangles for the one container it is attached to.
type Box struct {
	orientation Orientation
	border      int
	container   *Container
}

// NewBox returns a detached box. border is the gap kept around and between
// children.
func NewBox(o Orientation, border int) *Box {
	if border < 0 {
		border = 0
	}
	return &Box{orientation: o, border: border}
}

func (b *Box) Orientation() Orientation { return b.orientation }
func (b *Box) Border() int              { return b.border }
func (b *Box) Container() *Container    { return b.container }

// Layout places every shown child of the container. Rectangles reach the
// children as resize events, so nested boxes lay out depth first. Children
// do not push clip changes while they are placed; the clip of the whole
// subtree is recomputed once at the end by the outermost running layout.
func (b *Box) Layout() {
	c := b.container
	if c == nil {
		return
	}
	c.layingOut = true
	b.placeAll(c)
	c.layingOut = false
	if c.IsShown() && !c.inLayout() {
		c.refreshClip()
	}
}

func (b *Box) placeAll(c *Container) {
	area := c.extent
	switch b.orientation {
	case Both:
		inner := image.Rect(area.Min.X+b.border, area.Min.Y+b.border,
			area.Max.X-b.border, area.Max.Y-b.border)
		if inner.Dx() < 0 || inner.Dy() < 0 {
			inner = image.Rectangle{Min: inner.Min, Max: inner.Min}
		}
		for _, child := range c.children {
			if child.Base().IsShown() {
				b.place(c, child, inner)
			}
		}
	case Vertical:
		b.pack(c, area.Dy(), area.Dx(), func(main, cross, mainSize, crossSize int) image.Rectangle {
			return image.Rect(area.Min.X+cross, area.Min.Y+main,
				area.Min.X+cross+crossSize, area.Min.Y+main+mainSize)
		}, func(w *Widget) (int, int) { return w.minHeight, w.minWidth })
	default:
		b.pack(c, area.Dx(), area.Dy(), func(main, cross, mainSize, crossSize int) image.Rectangle {
			return image.Rect(area.Min.X+main, area.Min.Y+cross,
				area.Min.X+main+mainSize, area.Min.Y+cross+crossSize)
		}, func(w *Widget) (int, int) { return w.minWidth, w.minHeight })
	}
}

// pack runs the two passes along the main axis. rect maps main/cross offsets
// and sizes back to a rectangle; mins returns a child's main and cross
// minimum sizes.
func (b *Box) pack(c *Container, mainLen, crossLen int,
	rect func(main, cross, mainSize, crossSize int) image.Rectangle,
	mins func(w *Widget) (int, int)) {

	total := b.border
	stretch := 0
	for _, child := range c.children {
		cw := child.Base()
		if !cw.IsShown() {
			continue
		}
		if cw.align&AlignStretch != 0 {
			stretch++
		} else {
			m, _ := mins(cw)
			total += m
		}
		total += b.border
	}
	space := 0
	if stretch > 0 && mainLen > total {
		space = (mainLen - total) / stretch
	}

	crossAvail := crossLen - 2*b.border
	if crossAvail < 0 {
		crossAvail = 0
	}
	pos := b.border
	for _, child := range c.children {
		cw := child.Base()
		if !cw.IsShown() {
			continue
		}
		mainSize, crossSize := mins(cw)
		if cw.align&AlignStretch != 0 {
			mainSize = space
		}
		cross := b.border
		switch {
		case cw.align&AlignExpand != 0:
			crossSize = crossAvail
		case cw.align&AlignCenter != 0:
			if d := (crossAvail - crossSize) / 2; d > 0 {
				cross += d
			}
		case cw.align&AlignRight != 0:
			if d := crossAvail - crossSize; d > 0 {
				cross += d
			}
		}
		b.place(c, child, rect(pos, cross, mainSize, crossSize))
		pos += mainSize + b.border
	}
}

func (b *Box) place(c *Container, child Element, r image.Rectangle) {
	ev := NewEvent(EventResize, c.self)
	ev.Rect = r
	child.Base().Send(ev)
	ev.Release()
}
