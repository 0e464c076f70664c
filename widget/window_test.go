// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/framegrace/texelgui/region"
	"github.com/gdamore/tcell/v2"
)

func TestShowRegistersFocusesAndBecomesMain(t *testing.T) {
	app, d, win := shownWindow(t, image.Rect(0, 0, 10, 5))
	if len(d.created) != 1 || d.created[0].Title != "test" {
		t.Fatalf("created = %+v", d.created)
	}
	if !d.shown[win.DisplayID()] {
		t.Fatalf("display was not asked to show the window")
	}
	if win.Focused() != &win.Widget {
		t.Fatalf("window should focus itself when nothing else is focused")
	}
	if app.MainWindow() != win {
		t.Fatalf("first shown window should become the main window")
	}
	if win.State()&StateConnected == 0 {
		t.Fatalf("window not marked connected")
	}
}

func TestShowRollsBackOnServerFailure(t *testing.T) {
	d := newStubDisplay()
	d.failShow = errors.New("rejected")
	app := NewApp(d, nil)
	win, _ := NewWindow(app, 1, "w", image.Rect(0, 0, 10, 5), 0)

	err := win.Show(context.Background())
	if err == nil || !errors.Is(err, d.failShow) {
		t.Fatalf("Show error = %v, want wrapped rejection", err)
	}
	if win.IsShown() {
		t.Fatalf("window must stay hidden after a failed show")
	}
	if win.Focused() != nil || app.MainWindow() != nil {
		t.Fatalf("failed show must not focus or register the window")
	}

	d.failShow = nil
	if err := win.Show(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(d.created) != 1 {
		t.Fatalf("retry should reuse the registered window, created %d", len(d.created))
	}
}

func TestShowFailsWhenCreateFails(t *testing.T) {
	d := newStubDisplay()
	d.failCreate = errors.New("no room")
	app := NewApp(d, nil)
	win, _ := NewWindow(app, 1, "w", image.Rect(0, 0, 10, 5), 0)
	if err := win.Show(context.Background()); !errors.Is(err, d.failCreate) {
		t.Fatalf("Show error = %v", err)
	}
	if win.IsShown() || win.State()&StateConnected != 0 {
		t.Fatalf("state changed after failed create: %v", win.State())
	}
}

func TestFocusHandOff(t *testing.T) {
	_, _, win := shownWindow(t, image.Rect(0, 0, 20, 5))
	b1, _ := NewButton(&win.Container, 2, "one")
	b2, _ := NewButton(&win.Container, 3, "two")
	var order []string
	b1.OnUnfocus = func() { order = append(order, "b1-out") }
	b2.OnFocus = func() { order = append(order, "b2-in") }

	b1.Focus()
	b2.Focus()
	if b1.IsFocused() || !b2.IsFocused() {
		t.Fatalf("focus flags: b1=%v b2=%v", b1.IsFocused(), b2.IsFocused())
	}
	if win.Focused() != &b2.Widget {
		t.Fatalf("window focus not updated")
	}
	if len(order) != 2 || order[0] != "b1-out" || order[1] != "b2-in" {
		t.Fatalf("hand-off order = %v", order)
	}

	plain := mustWidget(t, &win.Container, 4, image.Rect(0, 2, 2, 3))
	plain.Focus()
	if plain.IsFocused() {
		t.Fatalf("non-focusable widget took focus")
	}
	b1.SetDisabled(true)
	b1.Focus()
	if b1.IsFocused() {
		t.Fatalf("disabled widget took focus")
	}
}

func TestUnfocusContainerClearsSubtree(t *testing.T) {
	_, _, win := shownWindow(t, image.Rect(0, 0, 20, 5))
	c, _ := NewContainer(&win.Container, 2)
	inner, _ := NewContainer(c, 3)
	btn, _ := NewButton(inner, 4, "x")
	btn.Focus()
	c.Unfocus()
	if btn.IsFocused() || win.Focused() != nil {
		t.Fatalf("focus survived container unfocus: %v", win.Focused())
	}
}

func TestHideFocusedWidgetDropsFocus(t *testing.T) {
	_, _, win := shownWindow(t, image.Rect(0, 0, 20, 5))
	b1, _ := NewButton(&win.Container, 2, "one")
	b2, _ := NewButton(&win.Container, 3, "two")
	b1.Focus()
	b1.Hide()
	if win.Focused() != nil {
		t.Fatalf("focus moved to %v, want nil", win.Focused())
	}
	if b2.IsFocused() {
		t.Fatalf("focus must not jump to a sibling")
	}
	b1.Focus()
	if b1.IsFocused() {
		t.Fatalf("hidden widget accepted focus")
	}
	b1.Show()
	b1.Focus()
	if !b1.IsFocused() {
		t.Fatalf("shown widget should accept focus again")
	}
}

func TestTabCyclesFocus(t *testing.T) {
	_, _, win := shownWindow(t, image.Rect(0, 0, 20, 5))
	b1, _ := NewButton(&win.Container, 2, "one")
	b2, _ := NewButton(&win.Container, 3, "two")
	key := func(k tcell.Key) {
		ev := NewEvent(EventKey, nil)
		ev.Key = k
		win.Send(ev)
		ev.Release()
	}
	key(tcell.KeyTab)
	if !b1.IsFocused() {
		t.Fatalf("first tab should focus b1")
	}
	key(tcell.KeyTab)
	if !b2.IsFocused() {
		t.Fatalf("second tab should focus b2")
	}
	key(tcell.KeyBacktab)
	if !b1.IsFocused() {
		t.Fatalf("backtab should return to b1")
	}
}

func TestKeyActivatesFocusedButton(t *testing.T) {
	_, _, win := shownWindow(t, image.Rect(0, 0, 20, 5))
	btn, _ := NewButton(&win.Container, 2, "go")
	clicks := 0
	btn.OnClick = func() { clicks++ }
	btn.Focus()
	ev := NewEvent(EventKey, nil)
	ev.Key = tcell.KeyRune
	ev.Rune = ' '
	if !win.Send(ev) {
		t.Fatalf("space should be handled by the focused button")
	}
	ev.Release()
	if clicks != 1 {
		t.Fatalf("clicks = %d", clicks)
	}
}

func TestTitleBarAndBorderShrinkExtent(t *testing.T) {
	app := NewApp(newStubDisplay(), nil)
	win, _ := NewWindow(app, 1, "Title", image.Rect(0, 0, 20, 10), StyleTitleBar|StyleBorder)
	if want := image.Rect(1, 2, 19, 9); win.Extent() != want {
		t.Fatalf("extent = %v, want %v", win.Extent(), want)
	}
	if err := win.Show(context.Background()); err != nil {
		t.Fatalf("Show: %v", err)
	}
	surf := newCellSurface()
	ev := NewEvent(EventPaint, nil)
	ev.Surface = surf
	win.Send(ev)
	ev.Release()
	if got := surf.row(1, 1, 6); got != "Title" {
		t.Fatalf("title row = %q", got)
	}
}

func TestSetOuterAppliesServerGrant(t *testing.T) {
	app, _, win := shownWindow(t, image.Rect(0, 0, 10, 10))
	a := mustWidget(t, &win.Container, 2, image.Rect(0, 0, 10, 5))
	app.handleInput(Input{
		Kind:   InputClip,
		Window: win.DisplayID(),
		Outer:  image.Rect(0, 0, 10, 10),
		Clip:   []image.Rectangle{image.Rect(0, 0, 10, 2), image.Rect(0, 8, 10, 10)},
	})
	if got := win.OuterClip().Area(); got != 40 {
		t.Fatalf("outer clip area = %d, want 40", got)
	}
	if got := win.Clip().Area(); got != 20 {
		t.Fatalf("window clip area = %d, want 20", got)
	}

	surf := newCellSurface()
	a.Style = tcell.StyleDefault
	p := a.Painter(surf)
	p.Fill(a.Extent(), '#', tcell.StyleDefault)
	if len(surf.cells) != 20 {
		t.Fatalf("painter wrote %d cells, want 20 inside the grant", len(surf.cells))
	}

	app.handleInput(Input{Kind: InputClip, Window: win.DisplayID(), Outer: image.Rect(5, 5, 15, 15),
		Clip: []image.Rectangle{image.Rect(5, 5, 15, 15)}})
	if want := image.Rect(5, 5, 15, 15); win.Extent() != want {
		t.Fatalf("extent after move = %v, want %v", win.Extent(), want)
	}
	if want := image.Rect(5, 5, 15, 10); a.Extent() != want {
		t.Fatalf("child not carried along: %v", a.Extent())
	}
}

func TestPaintRespectsSiblingOcclusion(t *testing.T) {
	_, _, win := shownWindow(t, image.Rect(0, 0, 10, 1))
	lbl, _ := NewLabel(&win.Container, 2, "hello")
	lbl.SetRect(image.Rect(0, 0, 5, 1))
	mustWidget(t, &win.Container, 3, image.Rect(2, 0, 3, 1))
	surf := newCellSurface()
	ev := NewEvent(EventPaint, nil)
	ev.Surface = surf
	win.Send(ev)
	ev.Release()
	if got := surf.row(0, 0, 5); got != "he lo" {
		t.Fatalf("painted %q, want %q", got, "he lo")
	}
}

func TestModalShowReturnsAfterEndModal(t *testing.T) {
	app, _, _ := shownWindow(t, image.Rect(0, 0, 20, 10))
	modal, _ := NewWindow(app, 5, "modal", image.Rect(2, 2, 10, 6), StyleModal)
	if !app.Post(func() { modal.EndModal() }) {
		t.Fatalf("Post refused")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := modal.Show(ctx); err != nil {
		t.Fatalf("modal Show: %v", err)
	}
	if !modal.IsShown() {
		t.Fatalf("modal should stay shown after its loop ends")
	}
	if len(app.modals) != 0 {
		t.Fatalf("modal stack not unwound: %d", len(app.modals))
	}
}

func TestModalDropsInputForOtherWindows(t *testing.T) {
	app, d, main := shownWindow(t, image.Rect(0, 0, 20, 10))
	btn, _ := NewButton(&main.Container, 2, "bg")
	btn.SetRect(image.Rect(0, 0, 4, 1))
	clicked := false
	btn.OnClick = func() { clicked = true }

	modal, _ := NewWindow(app, 5, "modal", image.Rect(2, 2, 10, 6), 0)
	app.modals = append(app.modals, modal)
	d.events <- Input{Kind: InputMouse, Window: main.DisplayID(), Point: image.Pt(1, 0), Buttons: tcell.Button1}
	d.events <- Input{Kind: InputMouse, Window: main.DisplayID(), Point: image.Pt(1, 0)}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		if err := app.step(ctx); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if clicked || btn.Pressed() {
		t.Fatalf("input reached a window below the modal")
	}
}

func TestRunDeliversInputAndRepaints(t *testing.T) {
	app, d, win := shownWindow(t, image.Rect(0, 0, 20, 10))
	btn, _ := NewButton(&win.Container, 2, "ok")
	btn.SetRect(image.Rect(0, 0, 4, 1))
	btn.OnClick = app.Quit

	d.events <- Input{Kind: InputMouse, Window: win.DisplayID(), Point: image.Pt(1, 0), Buttons: tcell.Button1}
	d.events <- Input{Kind: InputMouse, Window: win.DisplayID(), Point: image.Pt(1, 0)}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.flushes == 0 {
		t.Fatalf("no flush happened")
	}
	if got := d.surfaces[win.DisplayID()].row(0, 1, 3); got != "ok" {
		t.Fatalf("button caption = %q", got)
	}
}

func TestRunStopsWhenDisplayCloses(t *testing.T) {
	app, d, _ := shownWindow(t, image.Rect(0, 0, 5, 5))
	close(d.events)
	if err := app.Run(context.Background()); !errors.Is(err, ErrDisplayGone) {
		t.Fatalf("Run error = %v, want ErrDisplayGone", err)
	}
}

func TestCloseRequestDestroysWindow(t *testing.T) {
	app, d, win := shownWindow(t, image.Rect(0, 0, 5, 5))
	veto := true
	win.OnClose = func() bool { return !veto }
	app.handleInput(Input{Kind: InputClose, Window: win.DisplayID()})
	if win.State()&StateClosed != 0 {
		t.Fatalf("vetoed close destroyed the window")
	}
	id := win.DisplayID()
	veto = false
	app.handleInput(Input{Kind: InputClose, Window: id})
	if win.State()&StateClosed == 0 || win.IsShown() {
		t.Fatalf("window not closed: %v", win.State())
	}
	if len(d.destroyed) != 1 || d.destroyed[0] != id {
		t.Fatalf("destroyed = %v", d.destroyed)
	}
	if app.Window(id) != nil || app.MainWindow() != nil {
		t.Fatalf("app still tracks the closed window")
	}
}

func TestHideAndMoveTalkToDisplay(t *testing.T) {
	_, d, win := shownWindow(t, image.Rect(0, 0, 5, 5))
	if err := win.Move(context.Background(), image.Rect(3, 3, 8, 8)); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if len(d.moves) != 1 || win.OuterExtent() != image.Rect(3, 3, 8, 8) {
		t.Fatalf("move not applied: %v %v", d.moves, win.OuterExtent())
	}
	if err := win.Hide(context.Background()); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if win.IsShown() || d.shown[win.DisplayID()] {
		t.Fatalf("window still shown")
	}
	if win.Focused() != nil {
		t.Fatalf("hidden window kept focus")
	}
}

func TestCloseAcknowledgesOutcome(t *testing.T) {
	_, d, win := shownWindow(t, image.Rect(0, 0, 5, 5))
	keep := true
	win.OnClose = func() bool { return !keep }
	if err := win.Close(); !errors.Is(err, ErrCloseRefused) {
		t.Fatalf("vetoed Close = %v, want ErrCloseRefused", err)
	}
	if win.State()&StateClosed != 0 {
		t.Fatalf("vetoed close destroyed the window")
	}

	var seen error
	base := win.Handler()
	win.SetHandler(func(ev *Event) bool {
		if ev.Type == EventClose {
			ack := make(chan error, 1)
			outer := ev.Ack
			ev.Ack = ack
			handled := base(ev)
			seen = <-ack
			ev.Ack = outer
			ev.Acknowledge(seen)
			return handled
		}
		return base(ev)
	})
	keep = false
	if err := win.Close(); err != nil || seen != nil {
		t.Fatalf("Close = %v (handler saw %v)", err, seen)
	}
	if win.State()&StateClosed == 0 || len(d.destroyed) != 1 {
		t.Fatalf("window not destroyed: %v %v", win.State(), d.destroyed)
	}
}

func TestRepaintSkipsWindowWithoutScreenArea(t *testing.T) {
	app, d, win := shownWindow(t, image.Rect(0, 0, 6, 3))
	if !win.IsDCVisible() {
		t.Fatalf("shown window cannot draw")
	}
	win.SetOuter(win.OuterExtent(), &region.Region{})
	if win.IsDCVisible() || win.Flags()&FlagDCVisible != 0 {
		t.Fatalf("fully covered window still drawable")
	}
	app.repaint(context.Background())
	if d.flushes != 0 {
		t.Fatalf("covered window flushed %d times", d.flushes)
	}
	if !win.IsDirty() {
		t.Fatalf("covered window lost its pending repaint")
	}

	win.SetOuter(win.OuterExtent(), nil)
	app.repaint(context.Background())
	if d.flushes != 1 {
		t.Fatalf("uncovered window flushed %d times, want 1", d.flushes)
	}
	if err := win.Hide(context.Background()); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if win.IsDCVisible() {
		t.Fatalf("hidden window still drawable")
	}
}

func TestFocusRefusedInsideHiddenContainer(t *testing.T) {
	_, _, win := shownWindow(t, image.Rect(0, 0, 20, 5))
	box, _ := NewContainer(&win.Container, 2)
	btn, _ := NewButton(box, 3, "x")
	box.Hide()
	btn.Focus()
	if btn.IsFocused() || win.Focused() == &btn.Widget {
		t.Fatalf("widget in hidden container took focus")
	}
	box.Show()
	btn.Focus()
	if !btn.IsFocused() {
		t.Fatalf("widget refused focus once its container was shown")
	}
}
