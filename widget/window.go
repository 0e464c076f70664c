// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/window.go
// Summary: Toplevel window: outer clip, focus owner, mouse capture, title bar.
// Usage: NewWindow(app, id, title, rect, style) then Show(ctx).
// Notes: The outer extent and outer clip are granted by the display server;
//        the widget extent is derived from them.

package widget

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/framegrace/texelgui/region"
	"github.com/gdamore/tcell/v2"
)

// WindowStyle selects window decorations and behaviour.
type WindowStyle uint8

const (
	StyleTitleBar WindowStyle = 1 << iota
	StyleBorder
	StyleModal
)

// WindowState tracks the window lifecycle.
type WindowState uint8

const (
	StateConnected WindowState = 1 << iota
	StateClosed
	StatePressed
	StateModalDone
)

// Window is a toplevel container bound to a display server window.
type Window struct {
	Container

	app   *App
	title string
	style WindowStyle
	state WindowState

	displayID WindowID
	titleBar  *Label

	outerExtent image.Rectangle
	outerClip   region.Region

	focused   *Widget
	lastMouse *Widget
	dirty     bool

	// OnClose runs on a close request; returning false keeps the window.
	OnClose func() bool
}

func (win *Window) window() *Window { return win }

// NewWindow creates a hidden window with the given outer rectangle. The
// window is registered with the display on the first Show.
func NewWindow(app *App, id int, title string, outer image.Rectangle, style WindowStyle) (*Window, error) {
	if app == nil {
		return nil, ErrNoDisplay
	}
	win := &Window{app: app, title: title, style: style}
	win.initContainer(win, id)
	win.handler = win.handleEvent
	win.flags &^= FlagShown
	win.flags |= FlagFocusable
	win.toplevel = win
	if style&StyleTitleBar != 0 {
		lbl := &Label{}
		lbl.initLabel(lbl, 0, title)
		lbl.toplevel = win
		lbl.Style = tcell.StyleDefault.Reverse(true)
		win.titleBar = lbl
	}
	win.outerExtent = outer.Canon()
	win.outerClip.Reset(win.outerExtent)
	win.SetRect(win.innerRect())
	app.addWindow(win)
	return win, nil
}

func (win *Window) Title() string                { return win.title }
func (win *Window) Style() WindowStyle           { return win.style }
func (win *Window) State() WindowState           { return win.state }
func (win *Window) DisplayID() WindowID          { return win.displayID }
func (win *Window) App() *App                    { return win.app }
func (win *Window) OuterExtent() image.Rectangle { return win.outerExtent }

// OuterClip returns the screen area granted by the server. It must not be
// modified.
func (win *Window) OuterClip() *region.Region { return &win.outerClip }

// Focused returns the focus owner, or nil.
func (win *Window) Focused() *Widget { return win.focused }

// IsDirty reports whether the window needs a repaint.
func (win *Window) IsDirty() bool { return win.dirty }

// SetTitle changes the title bar text.
func (win *Window) SetTitle(title string) {
	win.title = title
	if win.titleBar != nil {
		win.titleBar.SetText(title)
	}
	win.dirty = true
}

// SetTitleStyle changes the title bar colours. Windows without a title bar
// ignore it.
func (win *Window) SetTitleStyle(style tcell.Style) {
	if win.titleBar == nil {
		return
	}
	win.titleBar.Style = style
	win.dirty = true
}

func (win *Window) titleRect() image.Rectangle {
	r := win.outerExtent
	if win.style&StyleBorder != 0 {
		r = r.Inset(1)
	}
	r.Max.Y = r.Min.Y + win.Font().Height()
	return r.Intersect(win.outerExtent)
}

// innerRect is the widget extent: the outer extent without border and title.
func (win *Window) innerRect() image.Rectangle {
	r := win.outerExtent
	if win.style&StyleBorder != 0 {
		r = r.Inset(1)
	}
	if win.style&StyleTitleBar != 0 {
		r.Min.Y += win.Font().Height()
		if r.Min.Y > r.Max.Y {
			r.Min.Y = r.Max.Y
		}
	}
	return r
}

// UpdateWinClip recomputes the window clip from its extent and the outer
// clip, then the clips of the whole tree.
func (win *Window) UpdateWinClip() {
	win.extentVisible = win.extent
	win.clip.Reset(win.extent)
	win.clip.Intersect(&win.outerClip)
	if tb := win.titleBar; tb != nil {
		tb.extent = win.titleRect()
		tb.extentVisible = tb.extent
		tb.clip.Reset(tb.extent)
		tb.clip.Intersect(&win.outerClip)
	}
	for _, child := range win.children {
		child.Base().settleVisible()
	}
	for _, child := range win.children {
		child.Base().updateClip()
	}
	win.setFlag(FlagDCVisible, win.state&StateConnected != 0 && !win.outerClip.Empty())
	win.dirty = true
}

// SetOuter applies a new outer extent and clip granted by the server. A nil
// clip grants the whole extent.
func (win *Window) SetOuter(extent image.Rectangle, clip *region.Region) {
	win.outerExtent = extent.Canon()
	if clip == nil {
		win.outerClip.Reset(win.outerExtent)
	} else {
		win.outerClip.Set(clip)
		win.outerClip.IntersectRect(win.outerExtent)
	}
	if inner := win.innerRect(); inner != win.extent {
		win.SetRect(inner)
		return
	}
	win.UpdateWinClip()
}

// Show registers the window with the display if needed and maps it. On
// failure the window stays hidden. Modal windows return once EndModal is
// called.
func (win *Window) Show(ctx context.Context) error {
	if win.IsShown() {
		return nil
	}
	win.state &^= StateClosed | StatePressed
	d := win.app.display
	if d == nil {
		return ErrNoDisplay
	}
	if win.state&StateConnected == 0 {
		rctx, cancel := win.app.requestContext(ctx)
		id, err := d.CreateWindow(rctx, WindowSpec{Title: win.title, Rect: win.outerExtent, Style: win.style})
		cancel()
		if err != nil {
			return fmt.Errorf("widget: create window %q: %w", win.title, err)
		}
		win.displayID = id
		win.state |= StateConnected
		win.app.bind(id, win)
	}

	win.flags |= FlagShown
	win.UpdateWinClip()
	rctx, cancel := win.app.requestContext(ctx)
	err := d.ShowWindow(rctx, win.displayID)
	cancel()
	if err != nil {
		win.flags &^= FlagShown
		return fmt.Errorf("widget: show window %q: %w", win.title, err)
	}

	if win.focused == nil {
		win.Widget.Focus()
	}
	if win.app.main == nil {
		win.app.main = win
	}
	win.sendSimple(EventShow)
	win.dirty = true
	debugLog.Printf("widget: show window %q (%d)", win.title, win.displayID)

	if win.style&StyleModal != 0 {
		if err := win.app.RunModal(ctx, win); err != nil && !errors.Is(err, errQuit) {
			return err
		}
	}
	return nil
}

// Hide unmaps the window. The local state only changes once the server
// agreed.
func (win *Window) Hide(ctx context.Context) error {
	if !win.IsShown() {
		return nil
	}
	if win.state&StateConnected != 0 && win.app.display != nil {
		rctx, cancel := win.app.requestContext(ctx)
		err := win.app.display.HideWindow(rctx, win.displayID)
		cancel()
		if err != nil {
			return fmt.Errorf("widget: hide window %q: %w", win.title, err)
		}
	}
	win.Widget.Hide()
	win.setFlag(FlagDCVisible, false)
	win.state &^= StatePressed
	return nil
}

// Move asks the server to place the window at r (outer coordinates).
func (win *Window) Move(ctx context.Context, r image.Rectangle) error {
	r = r.Canon()
	if win.state&StateConnected != 0 && win.app.display != nil {
		rctx, cancel := win.app.requestContext(ctx)
		err := win.app.display.MoveWindow(rctx, win.displayID, r)
		cancel()
		if err != nil {
			return fmt.Errorf("widget: move window %q: %w", win.title, err)
		}
	}
	// The server follows up with the real grant.
	win.SetOuter(r, nil)
	return nil
}

// EndModal makes a running modal loop for this window return.
func (win *Window) EndModal() {
	win.state |= StateModalDone
}

// Destroy releases the window on the server and tears the tree down.
func (win *Window) Destroy(ctx context.Context) error {
	if win.state&StateClosed != 0 {
		return nil
	}
	if win.state&StateConnected != 0 && win.app.display != nil {
		rctx, cancel := win.app.requestContext(ctx)
		err := win.app.display.DestroyWindow(rctx, win.displayID)
		cancel()
		if err != nil {
			return fmt.Errorf("widget: destroy window %q: %w", win.title, err)
		}
	}
	win.Widget.Hide()
	win.state |= StateClosed | StateModalDone
	win.state &^= StateConnected
	win.setFlag(FlagDCVisible, false)
	kids := append([]Element(nil), win.children...)
	for _, child := range kids {
		child.Base().Destroy()
	}
	win.focused = nil
	win.lastMouse = nil
	win.app.removeWindow(win)
	debugLog.Printf("widget: destroy window %q", win.title)
	return nil
}

// Close asks the window to close, as a server close request would. The
// handler answers through the event's ack channel: ErrCloseRefused when
// OnClose kept the window, or the error of destroying it.
func (win *Window) Close() error {
	ack := make(chan error, 1)
	ev := NewEvent(EventClose, win)
	ev.Ack = ack
	handled := win.Send(ev)
	ev.Release()
	select {
	case err := <-ack:
		return err
	default:
	}
	if !handled {
		return ErrCloseRefused
	}
	return nil
}

// FocusNext moves focus to the next (or previous) focusable widget.
func (win *Window) FocusNext(forward bool) bool {
	var list []*Widget
	win.walk(func(w *Widget) bool {
		if w.IsFocusable() && !w.IsDisabled() && !w.inactive() {
			list = append(list, w)
		}
		return true
	})
	if len(list) == 0 {
		return false
	}
	cur := -1
	for i, w := range list {
		if w == win.focused {
			cur = i
			break
		}
	}
	var next int
	switch {
	case cur < 0 && forward:
		next = 0
	case cur < 0:
		next = len(list) - 1
	case forward:
		next = (cur + 1) % len(list)
	default:
		next = (cur - 1 + len(list)) % len(list)
	}
	list[next].Focus()
	return list[next] == win.focused
}

func (win *Window) handleEvent(ev *Event) bool {
	switch ev.Type {
	case EventMouseDown:
		win.state |= StatePressed
		handled := win.Container.handleEvent(ev)
		win.lastMouse = nil
		if ev.Hit != nil {
			win.lastMouse = ev.Hit.Base()
		}
		win.dirty = true
		return handled
	case EventMouseUp:
		win.state &^= StatePressed
		win.dirty = true
		if lm := win.lastMouse; lm != nil {
			win.lastMouse = nil
			if lm.IsShown() && lm.toplevel == win {
				return lm.Send(ev)
			}
		}
		return win.Container.handleEvent(ev)
	case EventKey:
		win.dirty = true
		if f := win.focused; f != nil && f != &win.Widget && f.Send(ev) {
			return true
		}
		if ev.Key == tcell.KeyTab || ev.Key == tcell.KeyBacktab {
			forward := ev.Key == tcell.KeyTab && ev.Mod&tcell.ModShift == 0
			return win.FocusNext(forward)
		}
		return false
	case EventPaint:
		if !win.IsShown() {
			return false
		}
		win.Container.handleEvent(ev)
		if win.titleBar != nil {
			win.titleBar.Send(ev)
		}
		return false
	case EventClose:
		if win.OnClose != nil && !win.OnClose() {
			ev.Acknowledge(ErrCloseRefused)
			return true
		}
		ev.Acknowledge(win.Destroy(context.Background()))
		return true
	}
	return win.Container.handleEvent(ev)
}
