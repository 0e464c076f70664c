// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/app.go
// Summary: Application event loop owning windows, fonts and the display.
// Usage: app := NewApp(display, nil); win, _ := NewWindow(app, ...); app.Run(ctx)
// Notes: The widget tree is only touched from the goroutine running Run.
//        Other goroutines hand work over with Post.

package widget

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/framegrace/texelgui/font"
	"github.com/framegrace/texelgui/region"
	"github.com/gdamore/tcell/v2"
)

// DefaultRequestTimeout bounds every synchronous display request.
const DefaultRequestTimeout = 2 * time.Second

var errQuit = errors.New("widget: application quit")

// App runs the cooperative event loop of one application.
type App struct {
	display Display
	fonts   *font.Registry

	windows []*Window
	byID    map[WindowID]*Window
	main    *Window
	modals  []*Window
	buttons map[WindowID]tcell.ButtonMask

	posted   chan func()
	quit     chan struct{}
	quitOnce sync.Once

	// RequestTimeout bounds display round trips. Zero disables the bound.
	RequestTimeout time.Duration
}

// NewApp returns an application bound to d. A nil registry gets the default
// cell fonts.
func NewApp(d Display, fonts *font.Registry) *App {
	if fonts == nil {
		fonts = font.NewRegistry()
	}
	return &App{
		display:        d,
		fonts:          fonts,
		byID:           make(map[WindowID]*Window),
		buttons:        make(map[WindowID]tcell.ButtonMask),
		posted:         make(chan func(), 64),
		quit:           make(chan struct{}),
		RequestTimeout: DefaultRequestTimeout,
	}
}

func (app *App) Display() Display           { return app.display }
func (app *App) Fonts() *font.Registry      { return app.fonts }
func (app *App) MainWindow() *Window        { return app.main }
func (app *App) Windows() []*Window         { return app.windows }
func (app *App) Window(id WindowID) *Window { return app.byID[id] }

// Post schedules fn on the loop goroutine. It is safe to call from any
// goroutine and returns false once the application quit.
func (app *App) Post(fn func()) bool {
	select {
	case <-app.quit:
		return false
	default:
	}
	select {
	case app.posted <- fn:
		return true
	case <-app.quit:
		return false
	}
}

// Quit stops Run and every nested modal loop.
func (app *App) Quit() {
	app.quitOnce.Do(func() { close(app.quit) })
}

// Run pumps display input and posted work until Quit, ctx is done or the
// display goes away.
func (app *App) Run(ctx context.Context) error {
	app.repaint(ctx)
	for {
		if err := app.step(ctx); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}

// RunModal runs a nested loop until win ends its modal state, is closed or
// hidden. Input for other windows is dropped meanwhile.
func (app *App) RunModal(ctx context.Context, win *Window) error {
	win.state &^= StateModalDone
	app.modals = append(app.modals, win)
	defer func() {
		for i := len(app.modals) - 1; i >= 0; i-- {
			if app.modals[i] == win {
				app.modals = append(app.modals[:i], app.modals[i+1:]...)
				break
			}
		}
		win.state &^= StateModalDone
	}()
	debugLog.Printf("widget: enter modal %q (depth %d)", win.title, len(app.modals))
	for win.state&StateModalDone == 0 && win.IsShown() {
		if err := app.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// step waits for one unit of work, applies it and repaints.
func (app *App) step(ctx context.Context) error {
	var events <-chan Input
	if app.display != nil {
		events = app.display.Events()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-app.quit:
		return errQuit
	case fn := <-app.posted:
		fn()
	case in, ok := <-events:
		if !ok {
			return ErrDisplayGone
		}
		app.handleInput(in)
	}
	app.repaint(ctx)
	return nil
}

func (app *App) handleInput(in Input) {
	if in.Kind == InputError {
		log.Printf("widget: display error: %v", in.Err)
		return
	}
	win := app.byID[in.Window]
	if win == nil {
		debugLog.Printf("widget: input for unknown window %d", in.Window)
		return
	}
	if n := len(app.modals); n > 0 && app.modals[n-1] != win {
		switch in.Kind {
		case InputMouse, InputKey:
			return
		}
	}

	switch in.Kind {
	case InputClip:
		win.SetOuter(in.Outer, region.FromRects(in.Clip...))
	case InputMouse:
		prev := app.buttons[in.Window]
		app.buttons[in.Window] = in.Buttons
		typ := EventMouseMove
		if in.Buttons&^prev != 0 {
			typ = EventMouseDown
		} else if prev&^in.Buttons != 0 {
			typ = EventMouseUp
		}
		ev := NewEvent(typ, nil)
		ev.Point = in.Point
		ev.Buttons = in.Buttons
		ev.Mod = in.Mod
		win.Send(ev)
		ev.Release()
	case InputKey:
		ev := NewEvent(EventKey, nil)
		ev.Key = in.Key
		ev.Rune = in.Rune
		ev.Mod = in.Mod
		win.Send(ev)
		ev.Release()
	case InputClose:
		if err := win.Close(); err != nil && !errors.Is(err, ErrCloseRefused) {
			log.Printf("widget: close window %q: %v", win.title, err)
		}
	}
}

// repaint paints and flushes every dirty shown window.
func (app *App) repaint(ctx context.Context) {
	if app.display == nil {
		return
	}
	for _, win := range app.windows {
		if !win.dirty || !win.IsShown() || !win.IsDCVisible() {
			continue
		}
		surf := app.display.Surface(win.displayID)
		if surf == nil {
			continue
		}
		ev := NewEvent(EventPaint, nil)
		ev.Surface = surf
		win.Send(ev)
		ev.Release()
		win.dirty = false
		rctx, cancel := app.requestContext(ctx)
		if err := app.display.Flush(rctx, win.displayID); err != nil {
			log.Printf("widget: flush window %q: %v", win.title, err)
		}
		cancel()
	}
}

func (app *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if app.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, app.RequestTimeout)
}

func (app *App) addWindow(win *Window) {
	for _, w := range app.windows {
		if w == win {
			return
		}
	}
	app.windows = append(app.windows, win)
}

func (app *App) bind(id WindowID, win *Window) {
	app.byID[id] = win
	app.addWindow(win)
}

func (app *App) removeWindow(win *Window) {
	for i, w := range app.windows {
		if w == win {
			app.windows = append(app.windows[:i], app.windows[i+1:]...)
			break
		}
	}
	for id, w := range app.byID {
		if w == win {
			delete(app.byID, id)
			delete(app.buttons, id)
		}
	}
	if app.main == win {
		app.main = nil
	}
}

// Close destroys every window and releases the font registry.
func (app *App) Close(ctx context.Context) error {
	var errs []error
	for _, win := range append([]*Window(nil), app.windows...) {
		if err := win.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	app.Quit()
	app.fonts.Close()
	if len(errs) > 0 {
		return fmt.Errorf("widget: close app: %w", errors.Join(errs...))
	}
	return nil
}
