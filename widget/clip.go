// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/clip.go
// Summary: Clip region bookkeeping across the widget tree.
// Usage: Called by SetRect, MoveToLogic, Show/Hide and Box layout.
// Notes: Later children paint over earlier ones. A widget's clip is its
//        extent inside the parent's visible extent, minus whatever shown
//        later siblings (at every level up to the window) claim. Opaque
//        widgets claim their visible extent from the nearest opaque ancestor;
//        transparent widgets claim nothing of their own but pass the claims
//        of their children through.

package widget

import (
	"image"

	"github.com/framegrace/texelgui/region"
)

// opaqueAncestor returns the first non-transparent container above w.
func (w *Widget) opaqueAncestor() *Container {
	p := w.parent
	for p != nil && p.IsTransparent() && p.parent != nil {
		p = p.parent
	}
	return p
}

// inactive reports whether w sits in a hidden or animating subtree.
func (w *Widget) inactive() bool {
	for n := w; n != nil; {
		if !n.IsShown() || n.IsAnimating() {
			return true
		}
		if n.parent == nil {
			return false
		}
		n = &n.parent.Widget
	}
	return false
}

// inLayout reports whether a Box above w is placing children.
func (w *Widget) inLayout() bool {
	for p := w.parent; p != nil; p = p.parent {
		if p.layingOut {
			return true
		}
	}
	return false
}

// claimedInto adds the area w takes from its opaque ancestor to dst. The
// subtree rooted at skip contributes nothing.
func (w *Widget) claimedInto(dst *region.Region, skip *Widget) {
	if w == skip || !w.IsShown() || w.IsAnimating() {
		return
	}
	if !w.IsTransparent() {
		dst.UnionRect(w.extentVisible)
		return
	}
	if c := w.asContainer(); c != nil {
		for _, child := range c.children {
			child.Base().claimedInto(dst, skip)
		}
	}
}

// claimedChildren is the area the children of c currently take from it.
func (c *Container) claimedChildren(skip *Widget) *region.Region {
	rg := &region.Region{}
	for _, child := range c.children {
		child.Base().claimedInto(rg, skip)
	}
	return rg
}

// occluders collects what later shown siblings claim, at every level from w
// up to the root.
func (w *Widget) occluders() *region.Region {
	rg := &region.Region{}
	for n := w; n.parent != nil; n = &n.parent.Widget {
		after := false
		for _, child := range n.parent.children {
			cw := child.Base()
			if after {
				cw.claimedInto(rg, nil)
			} else if cw == n {
				after = true
			}
		}
	}
	return rg
}

// baseClip is the clip c has before any child claims area from it.
func (c *Container) baseClip() *region.Region {
	if win := AsWindow(c.self); win != nil && c.parent == nil {
		rg := region.New(win.extent)
		rg.Intersect(&win.outerClip)
		return rg
	}
	rg := region.New(c.extentVisible)
	if c.parent != nil {
		rg.Subtract(c.occluders())
	}
	return rg
}

// settleVisible recomputes the visible extents of w's subtree top down.
// Clip subtraction reads the visible extents of siblings, so they must all
// be current before any clip is computed.
func (w *Widget) settleVisible() {
	if w.IsAnimating() {
		return
	}
	if w.parent != nil {
		w.extentVisible = w.extent.Intersect(w.parent.extentVisible)
	}
	if c := w.asContainer(); c != nil {
		for _, child := range c.children {
			child.Base().settleVisible()
		}
	}
}

// UpdateClip recomputes the visible extent and clip of w and its subtree and
// settles what w takes from its opaque ancestor. It does nothing for
// detached or hidden widgets, or while an animation owns the subtree.
func (w *Widget) UpdateClip() {
	if w.parent == nil || w.inactive() {
		return
	}
	w.settleVisible()
	w.updateClip()
}

func (w *Widget) updateClip() {
	if w.inactive() {
		return
	}
	p := w.parent
	w.clip.Reset(w.extent)
	w.clip.IntersectRect(p.extentVisible)
	w.clip.Subtract(w.occluders())

	if anc := w.opaqueAncestor(); anc != nil {
		if w.IsTransparent() {
			give := w.clip.Clone()
			give.Intersect(anc.baseClip())
			give.Subtract(anc.claimedChildren(nil))
			anc.clip.Union(give)
		} else {
			anc.clip.SubtractRect(w.extentVisible)
		}
	}

	if c := w.asContainer(); c != nil {
		for _, child := range c.children {
			child.Base().updateClip()
		}
	}
}

// clipParent hands the area w claims back to its opaque ancestor.
func (w *Widget) clipParent() {
	if w.parent == nil || w.inactive() {
		return
	}
	anc := w.opaqueAncestor()
	if anc == nil {
		return
	}
	give := &region.Region{}
	w.claimedInto(give, nil)
	if give.Empty() {
		return
	}
	give.Intersect(anc.baseClip())
	give.Subtract(anc.claimedChildren(w))
	anc.clip.Union(give)
}

// clipReturn takes the area w claims back from its opaque ancestor.
func (w *Widget) clipReturn() {
	if w.parent == nil || w.inactive() {
		return
	}
	anc := w.opaqueAncestor()
	if anc == nil {
		return
	}
	take := &region.Region{}
	w.claimedInto(take, nil)
	anc.clip.Subtract(take)
}

// refreshEarlierSiblings recomputes the shown siblings painted below w that
// overlap area, walking up while the parent passes its children's claims
// through.
func (w *Widget) refreshEarlierSiblings(area image.Rectangle) {
	if area.Empty() {
		return
	}
	for n := w; n.parent != nil; n = &n.parent.Widget {
		for _, child := range n.parent.children {
			cw := child.Base()
			if cw == n {
				break
			}
			if cw.IsShown() && cw.extent.Overlaps(area) {
				cw.UpdateClip()
			}
		}
		if !n.parent.IsTransparent() {
			break
		}
	}
}

// refreshAfterVisibility settles the tree after w started or stopped
// claiming area.
func (w *Widget) refreshAfterVisibility() {
	if w.parent == nil {
		return
	}
	w.refreshEarlierSiblings(w.extentVisible)
}

// refreshClip recomputes the clip of c and all of its descendants.
func (c *Container) refreshClip() {
	if win := AsWindow(c.self); win != nil && c.parent == nil {
		win.UpdateWinClip()
		return
	}
	if c.parent != nil {
		c.UpdateClip()
		return
	}
	if !c.IsShown() {
		return
	}
	c.extentVisible = c.extent
	c.clip.Reset(c.extent)
	for _, child := range c.children {
		child.Base().settleVisible()
	}
	for _, child := range c.children {
		child.Base().updateClip()
	}
}
