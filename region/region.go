// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: region/region.go
// Summary: Arbitrary 2D areas stored as sets of disjoint rectangles.
// Usage: Clip bookkeeping for widgets and outer clips for toplevel windows.
// Notes: Rectangles are half-open image.Rectangle values; the member list is
//        kept sorted top-to-bottom, left-to-right and never overlaps.

package region

import (
	"fmt"
	"image"
	"sort"
	"strings"
)

// Region is a set of non-overlapping rectangles. The zero value is an empty
// region ready to use.
type Region struct {
	rects   []image.Rectangle
	extents image.Rectangle
}

// New returns a region covering r.
func New(r image.Rectangle) *Region {
	rg := &Region{}
	rg.Reset(r)
	return rg
}

// FromRects returns the union of rects.
func FromRects(rects ...image.Rectangle) *Region {
	rg := &Region{}
	for _, r := range rects {
		rg.UnionRect(r)
	}
	return rg
}

// Reset replaces the region content with r.
func (rg *Region) Reset(r image.Rectangle) {
	rg.rects = rg.rects[:0]
	if !r.Empty() {
		rg.rects = append(rg.rects, r.Canon())
	}
	rg.refresh()
}

// Clear empties the region.
func (rg *Region) Clear() {
	rg.rects = rg.rects[:0]
	rg.extents = image.Rectangle{}
}

// Set copies other into rg.
func (rg *Region) Set(other *Region) {
	if other == nil {
		rg.Clear()
		return
	}
	rg.rects = append(rg.rects[:0], other.rects...)
	rg.extents = other.extents
}

// Clone returns an independent copy.
func (rg *Region) Clone() *Region {
	c := &Region{extents: rg.extents}
	if len(rg.rects) > 0 {
		c.rects = append([]image.Rectangle(nil), rg.rects...)
	}
	return c
}

// Empty reports whether the region covers no area.
func (rg *Region) Empty() bool {
	return rg == nil || len(rg.rects) == 0
}

// Extents returns the bounding box of the region.
func (rg *Region) Extents() image.Rectangle {
	return rg.extents
}

// Rects returns the member rectangles. The slice must not be modified.
func (rg *Region) Rects() []image.Rectangle {
	return rg.rects
}

// Area returns the number of unit cells covered.
func (rg *Region) Area() int {
	n := 0
	for _, r := range rg.rects {
		n += r.Dx() * r.Dy()
	}
	return n
}

// Contains reports whether p lies inside the region.
func (rg *Region) Contains(p image.Point) bool {
	if !p.In(rg.extents) {
		return false
	}
	for _, r := range rg.rects {
		if p.In(r) {
			return true
		}
	}
	return false
}

// Overlaps reports whether r intersects any part of the region.
func (rg *Region) Overlaps(r image.Rectangle) bool {
	if !r.Overlaps(rg.extents) {
		return false
	}
	for _, m := range rg.rects {
		if m.Overlaps(r) {
			return true
		}
	}
	return false
}

// UnionRect adds r to the region.
func (rg *Region) UnionRect(r image.Rectangle) {
	r = r.Canon()
	if r.Empty() {
		return
	}
	pieces := []image.Rectangle{r}
	for _, m := range rg.rects {
		if !m.Overlaps(r) {
			continue
		}
		var next []image.Rectangle
		for _, p := range pieces {
			next = appendDiff(next, p, m)
		}
		pieces = next
		if len(pieces) == 0 {
			return
		}
	}
	rg.rects = append(rg.rects, pieces...)
	rg.normalize()
}

// Union adds other to the region.
func (rg *Region) Union(other *Region) {
	if other.Empty() {
		return
	}
	for _, r := range other.rects {
		rg.UnionRect(r)
	}
}

// SubtractRect removes r from the region.
func (rg *Region) SubtractRect(r image.Rectangle) {
	if r.Empty() || !r.Overlaps(rg.extents) {
		return
	}
	out := make([]image.Rectangle, 0, len(rg.rects)+2)
	for _, m := range rg.rects {
		out = appendDiff(out, m, r)
	}
	rg.rects = out
	rg.normalize()
}

// Subtract removes other from the region.
func (rg *Region) Subtract(other *Region) {
	if other.Empty() {
		return
	}
	for _, r := range other.rects {
		if rg.Empty() {
			return
		}
		rg.SubtractRect(r)
	}
}

// IntersectRect keeps only the part of the region inside r.
func (rg *Region) IntersectRect(r image.Rectangle) {
	out := rg.rects[:0]
	for _, m := range rg.rects {
		if i := m.Intersect(r); !i.Empty() {
			out = append(out, i)
		}
	}
	rg.rects = out
	rg.normalize()
}

// Intersect keeps only the part of the region also covered by other.
func (rg *Region) Intersect(other *Region) {
	if other.Empty() {
		rg.Clear()
		return
	}
	var out []image.Rectangle
	for _, m := range rg.rects {
		for _, o := range other.rects {
			if i := m.Intersect(o); !i.Empty() {
				out = append(out, i)
			}
		}
	}
	rg.rects = out
	rg.normalize()
}

// Translate moves the whole region by d.
func (rg *Region) Translate(d image.Point) {
	for i := range rg.rects {
		rg.rects[i] = rg.rects[i].Add(d)
	}
	if !rg.extents.Empty() {
		rg.extents = rg.extents.Add(d)
	}
}

// Equal reports whether both regions cover the same area, regardless of how
// that area is split into rectangles.
func (rg *Region) Equal(other *Region) bool {
	if rg.Empty() || other.Empty() {
		return rg.Empty() == other.Empty()
	}
	if rg.extents != other.extents || rg.Area() != other.Area() {
		return false
	}
	d := rg.Clone()
	d.Subtract(other)
	return d.Empty()
}

func (rg *Region) String() string {
	if rg.Empty() {
		return "region{}"
	}
	parts := make([]string, len(rg.rects))
	for i, r := range rg.rects {
		parts[i] = r.String()
	}
	return fmt.Sprintf("region{%s}", strings.Join(parts, " "))
}

// appendDiff appends a minus b (up to four rectangles) to out.
func appendDiff(out []image.Rectangle, a, b image.Rectangle) []image.Rectangle {
	i := a.Intersect(b)
	if i.Empty() {
		return append(out, a)
	}
	if a.Min.Y < i.Min.Y {
		out = append(out, image.Rect(a.Min.X, a.Min.Y, a.Max.X, i.Min.Y))
	}
	if a.Min.X < i.Min.X {
		out = append(out, image.Rect(a.Min.X, i.Min.Y, i.Min.X, i.Max.Y))
	}
	if i.Max.X < a.Max.X {
		out = append(out, image.Rect(i.Max.X, i.Min.Y, a.Max.X, i.Max.Y))
	}
	if i.Max.Y < a.Max.Y {
		out = append(out, image.Rect(a.Min.X, i.Max.Y, a.Max.X, a.Max.Y))
	}
	return out
}

// normalize sorts the rectangles, coalesces horizontal neighbours sharing a
// row span and recomputes the extents.
func (rg *Region) normalize() {
	if len(rg.rects) > 1 {
		sort.Slice(rg.rects, func(i, j int) bool {
			a, b := rg.rects[i], rg.rects[j]
			if a.Min.Y != b.Min.Y {
				return a.Min.Y < b.Min.Y
			}
			return a.Min.X < b.Min.X
		})
		out := rg.rects[:1]
		for _, r := range rg.rects[1:] {
			last := &out[len(out)-1]
			if last.Min.Y == r.Min.Y && last.Max.Y == r.Max.Y && last.Max.X == r.Min.X {
				last.Max.X = r.Max.X
				continue
			}
			out = append(out, r)
		}
		rg.rects = out
	}
	rg.refresh()
}

func (rg *Region) refresh() {
	if len(rg.rects) == 0 {
		rg.extents = image.Rectangle{}
		return
	}
	e := rg.rects[0]
	for _, r := range rg.rects[1:] {
		e = e.Union(r)
	}
	rg.extents = e
}
