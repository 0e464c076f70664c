// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/container.go
// Summary: Container widget: owned child list and event fan-out.
// Usage: Embedded by Window; used directly for grouping and Box layouts.

package widget

// Container is a widget that owns an ordered list of children. Children later
// in the list paint on top of earlier ones.
type Container struct {
	Widget
	children []Element
	box      *Box
	// layingOut is set while box places the children.
	layingOut bool
}

func (c *Container) container() *Container { return c }

// NewContainer returns an empty container added to parent. A nil parent
// leaves it detached.
func NewContainer(parent *Container, id int) (*Container, error) {
	c := &Container{}
	c.initContainer(c, id)
	if parent != nil {
		if err := parent.AddChild(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) initContainer(self Element, id int) {
	c.Widget.init(self, id)
	c.handler = c.handleEvent
}

// Children returns the child list in paint order. The slice must not be
// modified.
func (c *Container) Children() []Element { return c.children }

func (c *Container) Box() *Box { return c.box }

// SetBox attaches b as the layout of c, detaching any previous box. A box
// lays out a single container. The layout runs on the next SetRect or Layout.
func (c *Container) SetBox(b *Box) error {
	if b != nil && b.container != nil && b.container != c {
		return ErrBoxInUse
	}
	if c.box != nil && c.box != b {
		c.box.container = nil
	}
	c.box = b
	if b != nil {
		b.container = c
	}
	return nil
}

// AddChild appends e to the child list. e must not belong to another
// container.
func (c *Container) AddChild(e Element) error {
	cw := e.Base()
	if cw.parent != nil {
		return ErrHasParent
	}
	if cw == &c.Widget || cw.contains(&c.Widget) {
		return ErrCycle
	}
	if AsWindow(e) != nil {
		return ErrIsWindow
	}
	c.children = append(c.children, e)
	cw.parent = c

	top := c.toplevel
	if top == nil {
		return nil
	}
	ev := NewEvent(EventUpdateToplevel, c.self)
	ev.Toplevel = top
	c.Send(ev)
	ev.Release()
	if top.state&StateConnected != 0 && top.IsShown() {
		top.UpdateWinClip()
	}
	cw.invalidate()
	return nil
}

// RemoveChild unlinks e. The removed subtree loses focus, its parent and its
// toplevel.
func (c *Container) RemoveChild(e Element) error {
	cw := e.Base()
	idx := -1
	for i, child := range c.children {
		if child.Base() == cw {
			idx = i
			break
		}
	}
	if idx < 0 || cw.parent != c {
		return ErrNotChild
	}
	cw.Unfocus()
	top := c.toplevel
	if top != nil {
		if top.lastMouse != nil && cw.contains(top.lastMouse) {
			top.lastMouse = nil
		}
		cw.clipParent()
	}
	c.children = append(c.children[:idx], c.children[idx+1:]...)
	cw.parent = nil
	cw.setToplevel(nil)
	if top != nil && top.IsShown() {
		top.UpdateWinClip()
	}
	return nil
}

// GetObject finds the first descendant with the given id, depth first in
// child-list order.
func (c *Container) GetObject(id int) Element {
	for _, child := range c.children {
		if child.Base().id == id {
			return child
		}
		if sub := AsContainer(child); sub != nil {
			if found := sub.GetObject(id); found != nil {
				return found
			}
		}
	}
	return nil
}

// Dispatch delivers ev to the children. Input stops at the first child that
// handles it; paint and broadcast events reach every child. A hidden
// container swallows the event.
func (c *Container) Dispatch(ev *Event) bool {
	if !c.IsShown() {
		return true
	}
	broadcast := ev.isBroadcast()
	handled := false
	for _, child := range c.children {
		cw := child.Base()
		if ev.Type == EventPaint && !cw.extent.Overlaps(c.extent) {
			continue
		}
		if !broadcast && !cw.IsShown() {
			continue
		}
		if cw.Send(ev) {
			handled = true
			if !broadcast {
				return true
			}
		}
	}
	return handled
}

// DispatchMouse hit-tests the children. A mouse-down on a focusable child
// moves focus there before the child sees the event.
func (c *Container) DispatchMouse(ev *Event) bool {
	if !c.IsShown() {
		return true
	}
	for _, child := range c.children {
		cw := child.Base()
		if !cw.IsShown() || !ev.Point.In(cw.extent) {
			continue
		}
		if ev.Type == EventMouseDown && cw.IsFocusable() &&
			(cw.toplevel == nil || cw.toplevel.focused != cw) {
			cw.Focus()
		}
		if cw.Send(ev) {
			if ev.Hit == nil {
				ev.Hit = child
			}
			return true
		}
	}
	return false
}

func (c *Container) handleEvent(ev *Event) bool {
	switch ev.Type {
	case EventUpdateToplevel:
		c.toplevel = ev.Toplevel
		for _, child := range c.children {
			child.Base().Send(ev)
		}
		return false
	case EventPaint:
		if !c.IsShown() {
			return false
		}
		c.Widget.handleEvent(ev)
		c.Dispatch(ev)
		return false
	case EventMouseDown, EventMouseUp, EventMouseMove:
		return c.DispatchMouse(ev)
	case EventKey:
		return c.Dispatch(ev)
	}
	return c.Widget.handleEvent(ev)
}

// walk visits c's descendants depth first in paint order.
func (c *Container) walk(fn func(w *Widget) bool) bool {
	for _, child := range c.children {
		cw := child.Base()
		if !fn(cw) {
			return false
		}
		if sub := AsContainer(child); sub != nil {
			if !sub.walk(fn) {
				return false
			}
		}
	}
	return true
}
