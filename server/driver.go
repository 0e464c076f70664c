// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/driver.go
// Summary: Screen the compositor paints onto, plus the terminal event pump.
// Usage: NewTcellScreenDriver(screen) for terminals, a SimulationScreen in tests.

package server

import (
	"context"

	"github.com/gdamore/tcell/v2"
)

// ScreenDriver is what Compositor.Render needs from a terminal.
type ScreenDriver interface {
	Size() (int, int)
	SetContent(x, y int, mainc rune, combc []rune, style tcell.Style)
	Show()
}

// TcellScreenDriver paints on a tcell.Screen and pumps its input events.
type TcellScreenDriver struct {
	screen tcell.Screen
}

// NewTcellScreenDriver wraps screen. Tests pass a SimulationScreen that is
// already initialised and never call Start.
func NewTcellScreenDriver(screen tcell.Screen) *TcellScreenDriver {
	return &TcellScreenDriver{screen: screen}
}

// Start takes over the terminal: alternate screen, hidden cursor and mouse
// reporting.
func (d *TcellScreenDriver) Start() error {
	if err := d.screen.Init(); err != nil {
		return err
	}
	d.screen.HideCursor()
	d.screen.EnableMouse()
	return nil
}

// Stop gives the terminal back. It also unblocks the Events pump.
func (d *TcellScreenDriver) Stop() { d.screen.Fini() }

func (d *TcellScreenDriver) Size() (int, int) { return d.screen.Size() }
func (d *TcellScreenDriver) Show()            { d.screen.Show() }

func (d *TcellScreenDriver) SetContent(x, y int, mainc rune, combc []rune, style tcell.Style) {
	d.screen.SetContent(x, y, mainc, combc, style)
}

// Events forwards terminal events until the screen stops or ctx ends. When
// intercept returns true the event is consumed and the pump exits, which is
// how a quit key is bound. The channel is closed on exit.
func (d *TcellScreenDriver) Events(ctx context.Context, intercept func(tcell.Event) bool) <-chan tcell.Event {
	out := make(chan tcell.Event, 16)
	go func() {
		defer close(out)
		for {
			ev := d.screen.PollEvent()
			if ev == nil {
				return
			}
			if intercept != nil && intercept(ev) {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
