// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/widget.go
// Summary: Base widget: geometry, visibility and focus state machine.
// Usage: Embedded by every widget kind; clip bookkeeping lives in clip.go.

package widget

import (
	"image"

	"github.com/framegrace/texelgui/font"
	"github.com/framegrace/texelgui/region"
	"github.com/gdamore/tcell/v2"
)

// Widget is the base visual entity. Its parent and toplevel are non-owning
// references that are cleared when the widget leaves its container.
type Widget struct {
	self Element
	id   int

	extent        image.Rectangle
	extentVisible image.Rectangle
	clip          region.Region

	flags Flags
	align Align

	parent   *Container
	toplevel *Window

	minWidth, minHeight int

	handler HandlerFunc

	// Style is used for the background fill of opaque widgets.
	Style tcell.Style

	OnFocus   func()
	OnUnfocus func()
}

// init wires the element and installs the default handler.
func (w *Widget) init(self Element, id int) {
	w.self = self
	w.id = id
	w.flags = FlagShown
	w.Style = tcell.StyleDefault
	w.handler = w.handleEvent
}

// NewWidget returns a bare widget added to parent. A nil parent leaves it
// detached.
func NewWidget(parent *Container, id int) (*Widget, error) {
	w := &Widget{}
	w.init(w, id)
	if parent != nil {
		if err := parent.AddChild(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *Widget) Base() *Widget { return w }

// Self returns the most derived element embedding w.
func (w *Widget) Self() Element { return w.self }

func (w *Widget) ID() int { return w.id }

// Extent is the full logical rectangle.
func (w *Widget) Extent() image.Rectangle { return w.extent }

// VisibleExtent is the extent clipped by the visible extents of the ancestors.
func (w *Widget) VisibleExtent() image.Rectangle { return w.extentVisible }

// Clip returns the paintable area. The region is owned by the widget and must
// not be modified.
func (w *Widget) Clip() *region.Region { return &w.clip }

func (w *Widget) Parent() *Container { return w.parent }
func (w *Widget) Toplevel() *Window  { return w.toplevel }
func (w *Widget) Flags() Flags       { return w.flags }
func (w *Widget) Align() Align       { return w.align }

func (w *Widget) SetAlign(a Align) { w.align = a }

func (w *Widget) MinSize() (int, int) { return w.minWidth, w.minHeight }

// SetMinSize sets the layout hint read by Box.
func (w *Widget) SetMinSize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	w.minWidth, w.minHeight = width, height
}

func (w *Widget) IsShown() bool       { return w.flags&FlagShown != 0 }
func (w *Widget) IsFocused() bool     { return w.flags&FlagFocused != 0 }
func (w *Widget) IsTransparent() bool { return w.flags&FlagTransparent != 0 }
func (w *Widget) IsFocusable() bool   { return w.flags&FlagFocusable != 0 }
func (w *Widget) IsDisabled() bool    { return w.flags&FlagDisabled != 0 }
func (w *Widget) IsAnimating() bool   { return w.flags&FlagAnimating != 0 }

// IsDCVisible reports whether w is shown in a window the display currently
// lets draw.
func (w *Widget) IsDCVisible() bool {
	top := w.toplevel
	return top != nil && top.flags&FlagDCVisible != 0 && !w.inactive()
}

func (w *Widget) setFlag(f Flags, on bool) {
	if on {
		w.flags |= f
	} else {
		w.flags &^= f
	}
}

// SetTransparent marks the widget as not occluding anything on its own behalf.
func (w *Widget) SetTransparent(on bool) {
	if w.IsTransparent() == on {
		return
	}
	if w.toplevel == nil || !w.IsShown() {
		w.setFlag(FlagTransparent, on)
		return
	}
	w.clipParent()
	w.setFlag(FlagTransparent, on)
	w.UpdateClip()
	w.refreshAfterVisibility()
	w.invalidate()
}

func (w *Widget) SetFocusable(on bool) {
	w.setFlag(FlagFocusable, on)
	if !on {
		w.Unfocus()
	}
}

// SetDisabled disables input; a disabled widget drops focus.
func (w *Widget) SetDisabled(on bool) {
	w.setFlag(FlagDisabled, on)
	if on {
		w.Unfocus()
	}
	w.invalidate()
}

// Handler returns the current handler so an override can delegate to it.
func (w *Widget) Handler() HandlerFunc { return w.handler }

// SetHandler replaces the event handler. Wrap the value of Handler to keep the
// base behaviour:
//
//	base := w.Handler()
//	w.SetHandler(func(ev *Event) bool {
//		if ev.Type == EventKey { ... }
//		return base(ev)
//	})
func (w *Widget) SetHandler(h HandlerFunc) { w.handler = h }

// Send delivers ev to the widget's handler.
func (w *Widget) Send(ev *Event) bool {
	if w.handler == nil {
		return false
	}
	return w.handler(ev)
}

func (w *Widget) sendSimple(typ EventType) {
	if w.handler == nil {
		return
	}
	ev := NewEvent(typ, w.self)
	w.handler(ev)
	ev.Release()
}

// Font returns the default font of the owning application.
func (w *Widget) Font() font.Font {
	if w.toplevel != nil && w.toplevel.app != nil {
		return w.toplevel.app.fonts.Default()
	}
	return font.Fallback
}

func (w *Widget) asContainer() *Container { return AsContainer(w.self) }

func (w *Widget) invalidate() {
	if w.toplevel != nil {
		w.toplevel.dirty = true
	}
}

// handleEvent is the base handler every kind falls back to.
func (w *Widget) handleEvent(ev *Event) bool {
	switch ev.Type {
	case EventResize:
		w.SetRect(ev.Rect)
		return true
	case EventUpdateToplevel:
		w.toplevel = ev.Toplevel
		return false
	case EventShow:
		w.clipReturn()
		return true
	case EventHide:
		w.clipParent()
		return true
	case EventPaint:
		if ev.Surface != nil && w.IsShown() && !w.IsTransparent() {
			w.Painter(ev.Surface).Fill(w.extent, ' ', w.Style)
		}
		return false
	}
	return false
}

// SetRect places the widget at r. Containers lay their children out before
// the clip is finalised; attached widgets push the change to their ancestors
// unless a Box above them is still placing children and settles clips once
// it is done.
func (w *Widget) SetRect(r image.Rectangle) {
	r = r.Canon()
	attached := w.parent != nil && w.toplevel != nil
	deferred := attached && w.inLayout()
	if attached && !deferred {
		w.clipParent()
	}
	delta := r.Min.Sub(w.extent.Min)

	w.extent = r
	if w.parent != nil {
		w.extentVisible = r.Intersect(w.parent.extentVisible)
	} else {
		w.extentVisible = r
	}
	w.minWidth, w.minHeight = r.Dx(), r.Dy()
	w.clip.Reset(r)
	c := w.asContainer()
	if c != nil {
		if c.box != nil {
			c.box.Layout()
		} else if delta != (image.Point{}) {
			for _, child := range c.children {
				child.Base().moveLogic(delta)
			}
		}
	}

	if win := AsWindow(w.self); win != nil && w.parent == nil {
		win.UpdateWinClip()
		return
	}
	if deferred {
		w.invalidate()
		return
	}
	if !attached {
		if c != nil && w.parent == nil && w.IsShown() {
			c.refreshClip()
		}
		return
	}
	top := w.toplevel
	if w.parent == &top.Container {
		top.UpdateWinClip()
	} else {
		anc := w.opaqueAncestor()
		switch {
		case anc == nil:
		case anc == &top.Container:
			top.UpdateWinClip()
		default:
			anc.UpdateClip()
		}
	}
	w.invalidate()
}

// MoveToLogic translates the widget and its subtree by (dx, dy).
func (w *Widget) MoveToLogic(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	oldVisible := w.extentVisible
	w.clipParent()
	w.moveLogic(image.Pt(dx, dy))
	w.UpdateClip()
	w.refreshEarlierSiblings(oldVisible)
	w.refreshEarlierSiblings(w.extentVisible)
	w.invalidate()
}

func (w *Widget) moveLogic(d image.Point) {
	w.extent = w.extent.Add(d)
	if w.parent != nil {
		w.extentVisible = w.extent.Intersect(w.parent.extentVisible)
	} else {
		w.extentVisible = w.extent
	}
	w.clip.Reset(w.extent)
	if c := w.asContainer(); c != nil {
		for _, child := range c.children {
			child.Base().moveLogic(d)
		}
	}
}

// Show makes the widget visible. Showing a shown widget does nothing.
func (w *Widget) Show() {
	if w.IsShown() {
		return
	}
	w.flags |= FlagShown
	if w.toplevel != nil {
		w.UpdateClip()
		w.refreshAfterVisibility()
	}
	if w.handler != nil {
		ev := NewEvent(EventShow, w.self)
		w.handler(ev)
		ev.Release()
	}
	w.invalidate()
}

// Hide makes the widget invisible. Handlers see EventHide while the widget
// is still shown.
func (w *Widget) Hide() {
	if !w.IsShown() {
		return
	}
	w.Unfocus()
	if top := w.toplevel; top != nil && top.lastMouse != nil && w.contains(top.lastMouse) {
		top.lastMouse = nil
	}
	if w.handler != nil {
		ev := NewEvent(EventHide, w.self)
		w.handler(ev)
		ev.Release()
	}
	w.flags &^= FlagShown
	if w.toplevel != nil {
		w.refreshAfterVisibility()
	}
	w.invalidate()
}

// Focus makes the widget the focus owner of its window.
func (w *Widget) Focus() {
	if !w.IsFocusable() || w.IsDisabled() || w.inactive() {
		return
	}
	top := w.toplevel
	if top == nil || top.focused == w {
		return
	}
	if prev := top.focused; prev != nil {
		prev.Unfocus()
	}
	w.flags |= FlagFocused
	top.focused = w
	if w.OnFocus != nil {
		w.OnFocus()
	}
	w.sendSimple(EventFocus)
	w.invalidate()
}

// Unfocus drops focus. On a container it also drops focus held anywhere in
// the subtree.
func (w *Widget) Unfocus() {
	if w.IsFocused() {
		w.flags &^= FlagFocused
		if w.OnUnfocus != nil {
			w.OnUnfocus()
		}
		w.sendSimple(EventUnfocus)
		if w.toplevel != nil && w.toplevel.focused == w {
			w.toplevel.focused = nil
		}
		w.invalidate()
	}
	if c := w.asContainer(); c != nil {
		for _, child := range c.children {
			cw := child.Base()
			if cw.IsShown() && !cw.IsAnimating() {
				cw.Unfocus()
			}
		}
	}
}

// BeginAnimation excludes the subtree from clip bookkeeping until
// EndAnimation.
func (w *Widget) BeginAnimation() {
	w.flags |= FlagAnimating
}

// EndAnimation clears the animation flag and restores the clip.
func (w *Widget) EndAnimation() {
	if !w.IsAnimating() {
		return
	}
	w.flags &^= FlagAnimating
	w.UpdateClip()
	w.refreshAfterVisibility()
	w.invalidate()
}

// Destroy unlinks the widget from its parent, destroys its children and
// releases its clip.
func (w *Widget) Destroy() {
	if w.parent != nil {
		if err := w.parent.RemoveChild(w.self); err != nil {
			debugLog.Printf("widget: destroy %d: %v", w.id, err)
		}
	}
	if c := w.asContainer(); c != nil {
		kids := append([]Element(nil), c.children...)
		for _, child := range kids {
			child.Base().Destroy()
		}
		c.box = nil
	}
	w.clip.Clear()
	w.toplevel = nil
}

// contains reports whether o is w or one of its descendants.
func (w *Widget) contains(o *Widget) bool {
	for n := o; n != nil; {
		if n == w {
			return true
		}
		if n.parent == nil {
			return false
		}
		n = &n.parent.Widget
	}
	return false
}

func (w *Widget) setToplevel(top *Window) {
	w.toplevel = top
	if c := w.asContainer(); c != nil {
		for _, child := range c.children {
			child.Base().setToplevel(top)
		}
	}
}
