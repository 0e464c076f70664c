// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/compositor.go
// Summary: Stacks client windows on the screen and grants each its outer clip.
// Usage: Connections forward window requests; the server loop forwards
//        screen events and calls Render.
// Notes: Windows are ordered bottom to top. The outer clip of a shown window
//        is its extent on screen minus every shown window above it.

package server

import (
	"errors"
	"image"
	"log"
	"sync"

	"github.com/framegrace/texelgui/protocol"
	"github.com/framegrace/texelgui/region"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

var (
	ErrUnknownWindow = errors.New("server: unknown window")
	ErrNotOwner      = errors.New("server: window belongs to another client")
	ErrBadGeometry   = errors.New("server: invalid window geometry")
)

// Owner receives the pushes for the windows it created. Methods are called
// with the compositor lock held and must not block.
type Owner interface {
	ClipChanged(protocol.ClipUpdate)
	Key(protocol.KeyEvent)
	Mouse(protocol.MouseEvent)
	CloseRequested(window uint32)
}

// WindowInfo is a read-only view of a composited window.
type WindowInfo struct {
	ID    uint32
	Title string
	Rect  image.Rectangle
	Shown bool
	Clip  *region.Region
}

type cell struct {
	ch    rune
	style tcell.Style
	cont  bool
}

type window struct {
	id    uint32
	owner Owner
	title string
	style uint8
	rect  image.Rectangle
	shown bool
	clip  *region.Region
	cells []cell

	sentOuter image.Rectangle
	sentClip  *region.Region
}

func (w *window) resize(r image.Rectangle) {
	cells := make([]cell, r.Dx()*r.Dy())
	if old := w.rect; len(w.cells) > 0 {
		// Keep window-local content that still fits.
		for y := 0; y < min(old.Dy(), r.Dy()); y++ {
			copy(cells[y*r.Dx():y*r.Dx()+min(old.Dx(), r.Dx())], w.cells[y*old.Dx():])
		}
	}
	w.rect = r
	w.cells = cells
}

func (w *window) info() WindowInfo {
	return WindowInfo{ID: w.id, Title: w.title, Rect: w.rect, Shown: w.shown, Clip: w.clip.Clone()}
}

// Compositor owns the window stack of one screen.
type Compositor struct {
	mu      sync.Mutex
	screen  ScreenDriver
	bounds  image.Rectangle
	windows []*window
	byID    map[uint32]*window
	nextID  uint32
	store   *PlacementStore
	grab    *window
	buttons tcell.ButtonMask

	// Background fills screen cells no window covers.
	Background tcell.Style
	// DefaultSize is used for windows created without geometry and no
	// stored placement.
	DefaultSize image.Point
	// CloseKey asks the owner of the top window to close it.
	CloseKey tcell.Key
}

// NewCompositor returns a compositor painting on screen. Both screen and
// store may be nil.
func NewCompositor(screen ScreenDriver, store *PlacementStore) *Compositor {
	c := &Compositor{
		screen:      screen,
		byID:        make(map[uint32]*window),
		store:       store,
		Background:  tcell.StyleDefault,
		DefaultSize: image.Pt(40, 12),
		CloseKey:    tcell.KeyCtrlW,
	}
	if screen != nil {
		w, h := screen.Size()
		c.bounds = image.Rect(0, 0, w, h)
	}
	return c
}

// Settings are the user-tunable compositor fields.
type Settings struct {
	Background  tcell.Style
	DefaultSize image.Point
	CloseKey    tcell.Key
}

// Apply replaces the settings of a running compositor.
func (c *Compositor) Apply(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Background = s.Background
	if s.DefaultSize.X > 0 && s.DefaultSize.Y > 0 {
		c.DefaultSize = s.DefaultSize
	}
	if s.CloseKey != 0 {
		c.CloseKey = s.CloseKey
	}
}

// Size returns the screen size.
func (c *Compositor) Size() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bounds.Size()
}

// Resize changes the screen size and regrants every clip.
func (c *Compositor) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = image.Rect(0, 0, width, height)
	c.recomputeLocked()
}

// Windows lists the windows bottom to top.
func (c *Compositor) Windows() []WindowInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WindowInfo, 0, len(c.windows))
	for _, w := range c.windows {
		out = append(out, w.info())
	}
	return out
}

// Window returns the state of one window.
func (c *Compositor) Window(id uint32) (WindowInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.byID[id]
	if !ok {
		return WindowInfo{}, false
	}
	return w.info(), true
}

func (c *Compositor) lookup(owner Owner, id uint32) (*window, error) {
	w, ok := c.byID[id]
	if !ok {
		return nil, ErrUnknownWindow
	}
	if w.owner != owner {
		return nil, ErrNotOwner
	}
	return w, nil
}

// Create adds a hidden window on top of the stack.
func (c *Compositor) Create(owner Owner, req protocol.WindowCreate) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := req.Rect.Canon()
	if r.Empty() {
		r = c.placeLocked(req.Title)
	}
	if r.Empty() {
		return 0, ErrBadGeometry
	}
	c.nextID++
	w := &window{
		id:    c.nextID,
		owner: owner,
		title: req.Title,
		style: req.Style,
		clip:  &region.Region{},
	}
	w.resize(r)
	c.windows = append(c.windows, w)
	c.byID[w.id] = w
	debugLog.Printf("server: create window %d %q at %v", w.id, w.title, r)
	return w.id, nil
}

// placeLocked restores the stored placement of title, or cascades a default
// sized window from the top-left corner.
func (c *Compositor) placeLocked(title string) image.Rectangle {
	if r, ok, err := c.store.Load(title); err != nil {
		log.Printf("server: %v", err)
	} else if ok {
		return r
	}
	n := len(c.windows) % 8
	origin := image.Pt(2+2*n, 1+n)
	return image.Rectangle{Min: origin, Max: origin.Add(c.DefaultSize)}
}

func (c *Compositor) Show(owner Owner, id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.lookup(owner, id)
	if err != nil {
		return err
	}
	if w.shown {
		return nil
	}
	w.shown = true
	w.sentClip = nil
	c.raiseLocked(w)
	c.recomputeLocked()
	c.savePlacement(w)
	return nil
}

func (c *Compositor) Hide(owner Owner, id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.lookup(owner, id)
	if err != nil {
		return err
	}
	if !w.shown {
		return nil
	}
	w.shown = false
	if c.grab == w {
		c.grab = nil
	}
	c.recomputeLocked()
	return nil
}

func (c *Compositor) Move(owner Owner, id uint32, r image.Rectangle) error {
	r = r.Canon()
	if r.Empty() {
		return ErrBadGeometry
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.lookup(owner, id)
	if err != nil {
		return err
	}
	w.resize(r)
	c.recomputeLocked()
	if w.shown {
		c.savePlacement(w)
	}
	return nil
}

func (c *Compositor) Raise(owner Owner, id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.lookup(owner, id)
	if err != nil {
		return err
	}
	c.raiseLocked(w)
	c.recomputeLocked()
	return nil
}

func (c *Compositor) Destroy(owner Owner, id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.lookup(owner, id)
	if err != nil {
		return err
	}
	c.removeLocked(w)
	c.recomputeLocked()
	return nil
}

// RemoveOwner destroys every window of owner.
func (c *Compositor) RemoveOwner(owner Owner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := false
	for _, w := range append([]*window(nil), c.windows...) {
		if w.owner == owner {
			c.removeLocked(w)
			removed = true
		}
	}
	if removed {
		c.recomputeLocked()
	}
}

func (c *Compositor) removeLocked(w *window) {
	if w.shown {
		c.savePlacement(w)
	}
	for i, o := range c.windows {
		if o == w {
			c.windows = append(c.windows[:i], c.windows[i+1:]...)
			break
		}
	}
	delete(c.byID, w.id)
	if c.grab == w {
		c.grab = nil
	}
	debugLog.Printf("server: destroy window %d %q", w.id, w.title)
}

func (c *Compositor) raiseLocked(w *window) {
	n := len(c.windows)
	if n == 0 || c.windows[n-1] == w {
		return
	}
	for i, o := range c.windows {
		if o == w {
			copy(c.windows[i:], c.windows[i+1:])
			c.windows[n-1] = w
			return
		}
	}
}

func (c *Compositor) savePlacement(w *window) {
	if err := c.store.Save(w.title, w.rect); err != nil {
		log.Printf("server: %v", err)
	}
}

// recomputeLocked regrants outer clips top to bottom and notifies owners of
// shown windows whose extent or clip changed.
func (c *Compositor) recomputeLocked() {
	var above region.Region
	for i := len(c.windows) - 1; i >= 0; i-- {
		w := c.windows[i]
		if !w.shown {
			w.clip.Clear()
			continue
		}
		w.clip.Reset(w.rect.Intersect(c.bounds))
		w.clip.Subtract(&above)
		above.UnionRect(w.rect)

		if w.sentClip != nil && w.sentOuter == w.rect && w.sentClip.Equal(w.clip) {
			continue
		}
		w.sentOuter = w.rect
		w.sentClip = w.clip.Clone()
		w.owner.ClipChanged(protocol.ClipUpdate{
			WindowID: w.id,
			Outer:    w.rect,
			Rects:    append([]image.Rectangle(nil), w.clip.Rects()...),
		})
	}
}

// Draw stores painted runs into the window buffer.
func (c *Compositor) Draw(owner Owner, d protocol.DrawCells) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.lookup(owner, d.WindowID)
	if err != nil {
		return err
	}
	styles := make([]tcell.Style, len(d.Styles))
	for i, s := range d.Styles {
		styles[i] = s.Tcell()
	}
	width, height := w.rect.Dx(), w.rect.Dy()
	for _, run := range d.Runs {
		y := int(run.Y)
		if y >= height {
			continue
		}
		x := int(run.X)
		style := styles[run.StyleIndex]
		for _, r := range run.Text {
			rw := runewidth.RuneWidth(r)
			if rw < 1 {
				rw = 1
			}
			if x+rw > width {
				break
			}
			row := w.cells[y*width:]
			row[x] = cell{ch: r, style: style}
			for k := 1; k < rw; k++ {
				row[x+k] = cell{style: style, cont: true}
			}
			x += rw
		}
	}
	return nil
}

// Render composes every shown window on the screen.
func (c *Compositor) Render() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen == nil {
		return
	}
	for y := c.bounds.Min.Y; y < c.bounds.Max.Y; y++ {
		for x := c.bounds.Min.X; x < c.bounds.Max.X; x++ {
			c.screen.SetContent(x, y, ' ', nil, c.Background)
		}
	}
	for _, w := range c.windows {
		if !w.shown {
			continue
		}
		width := w.rect.Dx()
		for _, r := range w.clip.Rects() {
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					cl := w.cells[(y-w.rect.Min.Y)*width+(x-w.rect.Min.X)]
					if cl.cont {
						continue
					}
					ch := cl.ch
					if ch == 0 {
						ch = ' '
					}
					c.screen.SetContent(x, y, ch, nil, cl.style)
				}
			}
		}
	}
	c.screen.Show()
}

// HandleEvent routes a screen event. It reports whether the screen needs a
// repaint.
func (c *Compositor) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		w, h := ev.Size()
		c.Resize(w, h)
		return true
	case *tcell.EventMouse:
		return c.routeMouse(ev)
	case *tcell.EventKey:
		c.routeKey(ev)
	}
	return false
}

const wheelMask = tcell.WheelUp | tcell.WheelDown | tcell.WheelLeft | tcell.WheelRight

func (c *Compositor) routeMouse(ev *tcell.EventMouse) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	x, y := ev.Position()
	pt := image.Pt(x, y)
	buttons := ev.Buttons() &^ wheelMask
	prev := c.buttons
	c.buttons = buttons

	raised := false
	target := c.grab
	if prev == 0 {
		target = c.windowAtLocked(pt)
		if buttons != 0 {
			c.grab = target
			if target != nil && c.windows[len(c.windows)-1] != target {
				c.raiseLocked(target)
				c.recomputeLocked()
				raised = true
			}
		}
	}
	if buttons == 0 {
		c.grab = nil
	}
	if target == nil {
		return raised
	}
	target.owner.Mouse(protocol.MouseEvent{
		WindowID:   target.id,
		X:          int16(x),
		Y:          int16(y),
		ButtonMask: uint32(buttons),
		Modifiers:  uint16(ev.Modifiers()),
	})
	return raised
}

func (c *Compositor) windowAtLocked(pt image.Point) *window {
	for i := len(c.windows) - 1; i >= 0; i-- {
		w := c.windows[i]
		if w.shown && w.clip.Contains(pt) {
			return w
		}
	}
	return nil
}

func (c *Compositor) routeKey(ev *tcell.EventKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var top *window
	for i := len(c.windows) - 1; i >= 0; i-- {
		if c.windows[i].shown {
			top = c.windows[i]
			break
		}
	}
	if top == nil {
		return
	}
	if ev.Key() == c.CloseKey {
		top.owner.CloseRequested(top.id)
		return
	}
	top.owner.Key(protocol.KeyEvent{
		WindowID:  top.id,
		KeyCode:   uint32(ev.Key()),
		RuneValue: ev.Rune(),
		Modifiers: uint16(ev.Modifiers()),
	})
}
