// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: x11/display.go
// Summary: widget.Display backed by an X server, one X window per Window.
// Usage: d, err := x11.Open(""); app := widget.NewApp(d, nil)
// Notes: Geometry stays in character cells; the core "fixed" font sets the
//        cell size. The X server stacks and clips windows itself, so each
//        window is granted its whole on-screen extent. Colours assume a
//        24-bit TrueColor root visual.

package x11

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/framegrace/texelgui/widget"
	"github.com/gdamore/tcell/v2"
)

const (
	defaultFg uint32 = 0xd0d0d0
	defaultBg uint32 = 0x000000

	windowEvents = xproto.EventMaskExposure |
		xproto.EventMaskKeyPress |
		xproto.EventMaskButtonPress |
		xproto.EventMaskButtonRelease |
		xproto.EventMaskPointerMotion |
		xproto.EventMaskStructureNotify
)

var (
	ErrClosed        = errors.New("x11: display closed")
	ErrUnknownWindow = errors.New("x11: unknown window")
	ErrNoFont        = errors.New("x11: no usable core font")

	fontNames   = []string{"fixed", "9x15", "8x13", "6x13"}
	defaultSize = image.Pt(40, 12)

	debugLog = log.New(io.Discard, "", log.LstdFlags)
)

// SetVerboseLogging routes the backend's debug messages to the standard logger.
func SetVerboseLogging(on bool) {
	if on {
		debugLog.SetOutput(log.Writer())
		return
	}
	debugLog.SetOutput(io.Discard)
}

type xwindow struct {
	id      widget.WindowID
	xid     xproto.Window
	outer   image.Rectangle
	grid    *grid
	buttons tcell.ButtonMask
	mapped  bool
}

// Display talks to one X server connection.
type Display struct {
	xu     *xgbutil.XUtil
	conn   *xgb.Conn
	root   xproto.Window
	depth  byte
	visual xproto.Visualid
	font   xproto.Font
	gc     xproto.Gcontext
	cell   image.Point
	ascent int
	screen image.Point

	protocolsAtom xproto.Atom
	deleteAtom    xproto.Atom

	drawMu sync.Mutex

	mu      sync.Mutex
	cond    *sync.Cond
	windows map[widget.WindowID]*xwindow
	byXID   map[xproto.Window]*xwindow
	nextID  widget.WindowID
	queue   []widget.Input
	eof     bool
	closing bool

	events    chan widget.Input
	abandon   chan struct{}
	closeOnce sync.Once
}

// Open connects to the named X display; an empty name uses $DISPLAY.
func Open(name string) (*Display, error) {
	var (
		xu  *xgbutil.XUtil
		err error
	)
	if name == "" {
		xu, err = xgbutil.NewConn()
	} else {
		xu, err = xgbutil.NewConnDisplay(name)
	}
	if err != nil {
		return nil, fmt.Errorf("x11: connect: %w", err)
	}
	keybind.Initialize(xu)

	d := &Display{
		xu:      xu,
		conn:    xu.Conn(),
		root:    xu.RootWin(),
		windows: make(map[widget.WindowID]*xwindow),
		byXID:   make(map[xproto.Window]*xwindow),
		events:  make(chan widget.Input, 16),
		abandon: make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	screen := xu.Screen()
	d.depth = screen.RootDepth
	d.visual = screen.RootVisual

	if err := d.openFont(); err != nil {
		d.conn.Close()
		return nil, err
	}
	d.screen = image.Pt(int(screen.WidthInPixels)/d.cell.X, int(screen.HeightInPixels)/d.cell.Y)

	if d.protocolsAtom, err = xprop.Atm(xu, "WM_PROTOCOLS"); err != nil {
		d.conn.Close()
		return nil, fmt.Errorf("x11: intern WM_PROTOCOLS: %w", err)
	}
	if d.deleteAtom, err = xprop.Atm(xu, "WM_DELETE_WINDOW"); err != nil {
		d.conn.Close()
		return nil, fmt.Errorf("x11: intern WM_DELETE_WINDOW: %w", err)
	}

	go d.eventLoop()
	go d.pump()
	return d, nil
}

func (d *Display) openFont() error {
	font, err := xproto.NewFontId(d.conn)
	if err != nil {
		return err
	}
	opened := false
	for _, fontName := range fontNames {
		if xproto.OpenFontChecked(d.conn, font, uint16(len(fontName)), fontName).Check() == nil {
			opened = true
			break
		}
	}
	if !opened {
		return ErrNoFont
	}
	info, err := xproto.QueryFont(d.conn, xproto.Fontable(font)).Reply()
	if err != nil {
		xproto.CloseFont(d.conn, font)
		return fmt.Errorf("x11: query font: %w", err)
	}
	d.cell = image.Pt(int(info.MaxBounds.CharacterWidth), int(info.FontAscent+info.FontDescent))
	d.ascent = int(info.FontAscent)
	if d.cell.X <= 0 || d.cell.Y <= 0 {
		xproto.CloseFont(d.conn, font)
		return ErrNoFont
	}

	gc, err := xproto.NewGcontextId(d.conn)
	if err != nil {
		xproto.CloseFont(d.conn, font)
		return err
	}
	err = xproto.CreateGCChecked(d.conn, gc, xproto.Drawable(d.root),
		xproto.GcForeground|xproto.GcBackground|xproto.GcFont|xproto.GcGraphicsExposures,
		[]uint32{defaultFg, defaultBg, uint32(font), 0},
	).Check()
	if err != nil {
		xproto.CloseFont(d.conn, font)
		return fmt.Errorf("x11: create gc: %w", err)
	}
	d.font, d.gc = font, gc
	return nil
}

// CellSize returns the pixel size of one character cell.
func (d *Display) CellSize() image.Point { return d.cell }

// ScreenSize returns the root window size in cells.
func (d *Display) ScreenSize() image.Point { return d.screen }

// Events implements widget.Display.
func (d *Display) Events() <-chan widget.Input { return d.events }

// wait bounds a blocking X round trip by ctx.
func wait(ctx context.Context, check func() error) error {
	if ctx == nil {
		return check()
	}
	done := make(chan error, 1)
	go func() { done <- check() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Display) pixelRect(r image.Rectangle) (x, y int16, w, h uint16) {
	w, h = uint16(max(r.Dx(), 1)*d.cell.X), uint16(max(r.Dy(), 1)*d.cell.Y)
	return int16(r.Min.X * d.cell.X), int16(r.Min.Y * d.cell.Y), w, h
}

func (d *Display) CreateWindow(ctx context.Context, spec widget.WindowSpec) (widget.WindowID, error) {
	r := spec.Rect.Canon()
	if r.Empty() {
		d.mu.Lock()
		n := len(d.windows) % 8
		d.mu.Unlock()
		origin := image.Pt(2+2*n, 1+n)
		r = image.Rectangle{Min: origin, Max: origin.Add(defaultSize)}
	}
	xid, err := xproto.NewWindowId(d.conn)
	if err != nil {
		return 0, fmt.Errorf("x11: create window: %w", err)
	}
	x, y, w, h := d.pixelRect(r)
	err = wait(ctx, func() error {
		return xproto.CreateWindowChecked(d.conn, d.depth, xid, d.root,
			x, y, w, h, 0,
			xproto.WindowClassInputOutput, d.visual,
			xproto.CwBackPixel|xproto.CwEventMask,
			[]uint32{defaultBg, windowEvents},
		).Check()
	})
	if err != nil {
		return 0, fmt.Errorf("x11: create window: %w", err)
	}
	if err := icccm.WmNameSet(d.xu, xid, spec.Title); err != nil {
		debugLog.Printf("x11: set WM_NAME: %v", err)
	}
	if err := ewmh.WmNameSet(d.xu, xid, spec.Title); err != nil {
		debugLog.Printf("x11: set _NET_WM_NAME: %v", err)
	}
	if err := icccm.WmProtocolsSet(d.xu, xid, []string{"WM_DELETE_WINDOW"}); err != nil {
		debugLog.Printf("x11: set WM_PROTOCOLS: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	win := &xwindow{id: d.nextID, xid: xid, outer: r, grid: newGrid(r.Size())}
	d.windows[win.id] = win
	d.byXID[xid] = win
	return win.id, nil
}

func (d *Display) lookup(id widget.WindowID) (*xwindow, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.eof {
		return nil, ErrClosed
	}
	w, ok := d.windows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWindow, id)
	}
	return w, nil
}

func (d *Display) ShowWindow(ctx context.Context, id widget.WindowID) error {
	w, err := d.lookup(id)
	if err != nil {
		return err
	}
	if err := wait(ctx, func() error { return xproto.MapWindowChecked(d.conn, w.xid).Check() }); err != nil {
		return fmt.Errorf("x11: map window: %w", err)
	}
	d.mu.Lock()
	w.mapped = true
	in := d.clipInputLocked(w)
	d.pushLocked(in)
	d.mu.Unlock()
	return nil
}

func (d *Display) HideWindow(ctx context.Context, id widget.WindowID) error {
	w, err := d.lookup(id)
	if err != nil {
		return err
	}
	if err := wait(ctx, func() error { return xproto.UnmapWindowChecked(d.conn, w.xid).Check() }); err != nil {
		return fmt.Errorf("x11: unmap window: %w", err)
	}
	d.mu.Lock()
	w.mapped = false
	w.buttons = 0
	d.mu.Unlock()
	return nil
}

func (d *Display) MoveWindow(ctx context.Context, id widget.WindowID, r image.Rectangle) error {
	w, err := d.lookup(id)
	if err != nil {
		return err
	}
	r = r.Canon()
	if r.Empty() {
		return fmt.Errorf("x11: move window: empty rectangle")
	}
	x, y, pw, ph := d.pixelRect(r)
	err = wait(ctx, func() error {
		return xproto.ConfigureWindowChecked(d.conn, w.xid,
			xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			[]uint32{uint32(x), uint32(y), uint32(pw), uint32(ph)},
		).Check()
	})
	if err != nil {
		return fmt.Errorf("x11: move window: %w", err)
	}
	d.mu.Lock()
	d.setOuterLocked(w, r)
	d.mu.Unlock()
	return nil
}

func (d *Display) DestroyWindow(ctx context.Context, id widget.WindowID) error {
	w, err := d.lookup(id)
	if err != nil {
		return err
	}
	if err := wait(ctx, func() error { return xproto.DestroyWindowChecked(d.conn, w.xid).Check() }); err != nil {
		return fmt.Errorf("x11: destroy window: %w", err)
	}
	d.mu.Lock()
	delete(d.windows, id)
	delete(d.byXID, w.xid)
	d.mu.Unlock()
	return nil
}

type surface struct {
	d *Display
	w *xwindow
}

func (s surface) SetContent(x, y int, mainc rune, combc []rune, style tcell.Style) {
	s.d.mu.Lock()
	s.w.grid.set(image.Pt(x, y).Sub(s.w.outer.Min), mainc, style)
	s.d.mu.Unlock()
}

// Surface implements widget.Display.
func (d *Display) Surface(id widget.WindowID) widget.Surface {
	w, err := d.lookup(id)
	if err != nil {
		return nil
	}
	return surface{d: d, w: w}
}

// Flush draws the cells changed since the last flush.
func (d *Display) Flush(ctx context.Context, id widget.WindowID) error {
	w, err := d.lookup(id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	runs := w.grid.takeDirty()
	mapped := w.mapped
	d.mu.Unlock()
	if !mapped || len(runs) == 0 {
		return nil
	}
	d.draw(w.xid, runs)
	return wait(ctx, func() error {
		// A round trip makes sure the server processed the drawing.
		_, err := xproto.GetInputFocus(d.conn).Reply()
		return err
	})
}

func (d *Display) draw(xid xproto.Window, runs []run) {
	d.drawMu.Lock()
	defer d.drawMu.Unlock()
	for _, r := range runs {
		fg, bg := pixels(r.style)
		xproto.ChangeGC(d.conn, d.gc, xproto.GcForeground|xproto.GcBackground, []uint32{fg, bg})
		text := latin1(r.text)
		x := r.at.X * d.cell.X
		y := r.at.Y*d.cell.Y + d.ascent
		for len(text) > 0 {
			n := min(len(text), 255)
			xproto.ImageText8(d.conn, byte(n), xproto.Drawable(xid), d.gc, int16(x), int16(y), text[:n])
			x += n * d.cell.X
			text = text[n:]
		}
	}
}

// latin1 encodes runes for the 8-bit core font. Empty cells become spaces,
// anything outside Latin-1 a question mark.
func latin1(rs []rune) string {
	b := make([]byte, len(rs))
	for i, r := range rs {
		switch {
		case r == 0:
			b[i] = ' '
		case r < 0x100:
			b[i] = byte(r)
		default:
			b[i] = '?'
		}
	}
	return string(b)
}

func pixels(style tcell.Style) (fg, bg uint32) {
	f, b, attrs := style.Decompose()
	fg, bg = colorPixel(f, defaultFg), colorPixel(b, defaultBg)
	if attrs&tcell.AttrReverse != 0 {
		fg, bg = bg, fg
	}
	return fg, bg
}

func colorPixel(c tcell.Color, def uint32) uint32 {
	if c == tcell.ColorDefault {
		return def
	}
	r, g, b := c.RGB()
	if r < 0 {
		return def
	}
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func (d *Display) clipInputLocked(w *xwindow) widget.Input {
	visible := w.outer.Intersect(image.Rectangle{Max: d.screen})
	var clip []image.Rectangle
	if !visible.Empty() {
		clip = []image.Rectangle{visible}
	}
	return widget.Input{Kind: widget.InputClip, Window: w.id, Outer: w.outer, Clip: clip}
}

func (d *Display) setOuterLocked(w *xwindow, r image.Rectangle) {
	if r == w.outer {
		return
	}
	if r.Size() != w.outer.Size() {
		w.grid.resize(r.Size())
	}
	w.outer = r
	if w.mapped {
		d.pushLocked(d.clipInputLocked(w))
	}
}

func (d *Display) pushLocked(in widget.Input) {
	d.queue = append(d.queue, in)
	d.cond.Signal()
}

func (d *Display) eventLoop() {
	for {
		ev, xerr := d.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			d.shutdown(io.EOF)
			return
		}
		if xerr != nil {
			log.Printf("x11: %v", xerr)
			continue
		}
		d.handle(ev)
	}
}

func (d *Display) handle(ev xgb.Event) {
	switch ev := ev.(type) {
	case xproto.ExposeEvent:
		d.mu.Lock()
		w := d.byXID[ev.Window]
		var runs []run
		if w != nil {
			from := image.Pt(int(ev.X)/d.cell.X, int(ev.Y)/d.cell.Y)
			to := image.Pt((int(ev.X)+int(ev.Width)+d.cell.X-1)/d.cell.X,
				(int(ev.Y)+int(ev.Height)+d.cell.Y-1)/d.cell.Y)
			runs = w.grid.runsIn(image.Rectangle{Min: from, Max: to})
		}
		d.mu.Unlock()
		if w != nil {
			d.draw(w.xid, runs)
		}
	case xproto.ConfigureNotifyEvent:
		d.configured(ev)
	case xproto.ButtonPressEvent:
		d.mouse(ev, true)
	case xproto.ButtonReleaseEvent:
		d.mouse(xproto.ButtonPressEvent(ev), false)
	case xproto.MotionNotifyEvent:
		d.mu.Lock()
		if w := d.byXID[ev.Event]; w != nil {
			d.pushLocked(d.mouseInputLocked(w, ev.EventX, ev.EventY, w.buttons, ev.State))
		}
		d.mu.Unlock()
	case xproto.KeyPressEvent:
		name := keybind.LookupString(d.xu, ev.State, ev.Detail)
		key, r, mod, ok := translateKey(name, ev.State)
		if !ok {
			return
		}
		d.mu.Lock()
		if w := d.byXID[ev.Event]; w != nil {
			d.pushLocked(widget.Input{Kind: widget.InputKey, Window: w.id, Key: key, Rune: r, Mod: mod})
		}
		d.mu.Unlock()
	case xproto.ClientMessageEvent:
		if ev.Type != d.protocolsAtom || ev.Format != 32 || len(ev.Data.Data32) == 0 ||
			xproto.Atom(ev.Data.Data32[0]) != d.deleteAtom {
			return
		}
		d.mu.Lock()
		if w := d.byXID[ev.Window]; w != nil {
			d.pushLocked(widget.Input{Kind: widget.InputClose, Window: w.id})
		}
		d.mu.Unlock()
	}
}

// configured tracks moves made by the window manager. Reparented windows
// report positions relative to their frame, so the origin is translated to
// root coordinates.
func (d *Display) configured(ev xproto.ConfigureNotifyEvent) {
	d.mu.Lock()
	w := d.byXID[ev.Window]
	d.mu.Unlock()
	if w == nil {
		return
	}
	pos, err := xproto.TranslateCoordinates(d.conn, ev.Window, d.root, 0, 0).Reply()
	if err != nil {
		debugLog.Printf("x11: translate coordinates: %v", err)
		return
	}
	at := image.Pt(int(pos.DstX)/d.cell.X, int(pos.DstY)/d.cell.Y)
	size := image.Pt(int(ev.Width)/d.cell.X, int(ev.Height)/d.cell.Y)
	d.mu.Lock()
	d.setOuterLocked(w, image.Rectangle{Min: at, Max: at.Add(size)})
	d.mu.Unlock()
}

func (d *Display) mouse(ev xproto.ButtonPressEvent, press bool) {
	b, wheel := buttonFor(ev.Detail)
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.byXID[ev.Event]
	if w == nil || b == tcell.ButtonNone {
		return
	}
	switch {
	case wheel && press:
		d.pushLocked(d.mouseInputLocked(w, ev.EventX, ev.EventY, w.buttons|b, ev.State))
		return
	case wheel:
		return
	case press:
		w.buttons |= b
	default:
		w.buttons &^= b
	}
	d.pushLocked(d.mouseInputLocked(w, ev.EventX, ev.EventY, w.buttons, ev.State))
}

func (d *Display) mouseInputLocked(w *xwindow, px, py int16, buttons tcell.ButtonMask, state uint16) widget.Input {
	pt := image.Pt(int(px)/d.cell.X, int(py)/d.cell.Y).Add(w.outer.Min)
	return widget.Input{
		Kind:    widget.InputMouse,
		Window:  w.id,
		Point:   pt,
		Buttons: buttons,
		Mod:     translateMods(state),
	}
}

func (d *Display) shutdown(err error) {
	d.mu.Lock()
	if d.eof {
		d.mu.Unlock()
		return
	}
	d.eof = true
	if !d.closing && err != nil {
		d.queue = append(d.queue, widget.Input{Kind: widget.InputError, Err: fmt.Errorf("x11: connection lost: %w", err)})
	}
	d.mu.Unlock()
	d.cond.Broadcast()
}

func (d *Display) pump() {
	defer close(d.events)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.eof {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		in := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		select {
		case d.events <- in:
		case <-d.abandon:
			return
		}
	}
}

// Close destroys every window and disconnects. Events is closed.
func (d *Display) Close() error {
	d.closeOnce.Do(func() {
		close(d.abandon)
		d.mu.Lock()
		d.closing = true
		for _, w := range d.windows {
			xproto.DestroyWindow(d.conn, w.xid)
		}
		d.windows = make(map[widget.WindowID]*xwindow)
		d.byXID = make(map[xproto.Window]*xwindow)
		d.mu.Unlock()
		xproto.FreeGC(d.conn, d.gc)
		xproto.CloseFont(d.conn, d.font)
		d.conn.Close()
		d.shutdown(nil)
	})
	return nil
}

var _ widget.Display = (*Display)(nil)
