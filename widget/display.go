// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/display.go
// Summary: Contract between an App and the display server it talks to.
// Usage: Implemented by client.Display (socket) and x11.Display.
// Notes: Requests block until the server answers or ctx expires. A failed
//        request must leave the server side unchanged.

package widget

import (
	"context"
	"image"

	"github.com/gdamore/tcell/v2"
)

// WindowID names a window on the display server.
type WindowID uint32

// WindowSpec describes a window to create.
type WindowSpec struct {
	Title string
	// Rect is the requested outer rectangle. An empty rect lets the server
	// choose or restore a placement.
	Rect  image.Rectangle
	Style WindowStyle
}

// Surface receives painted cells. A tcell.Screen satisfies it.
type Surface interface {
	SetContent(x, y int, mainc rune, combc []rune, style tcell.Style)
}

// Display is the server proxy used by windows.
type Display interface {
	CreateWindow(ctx context.Context, spec WindowSpec) (WindowID, error)
	ShowWindow(ctx context.Context, id WindowID) error
	HideWindow(ctx context.Context, id WindowID) error
	MoveWindow(ctx context.Context, id WindowID, r image.Rectangle) error
	DestroyWindow(ctx context.Context, id WindowID) error
	// Surface returns the paint target of a window, or nil if unknown.
	Surface(id WindowID) Surface
	// Flush pushes what was painted on the window surface.
	Flush(ctx context.Context, id WindowID) error
	// Events delivers input and server notifications. It is closed when the
	// connection goes away.
	Events() <-chan Input
}

// InputKind tags an Input.
type InputKind uint8

const (
	InputMouse InputKind = iota + 1
	InputKey
	// InputClip carries a new outer extent and outer clip.
	InputClip
	InputClose
	InputError
)

// Input is a notification pushed by the display server.
type Input struct {
	Kind   InputKind
	Window WindowID

	Point   image.Point
	Buttons tcell.ButtonMask

	Key  tcell.Key
	Rune rune
	Mod  tcell.ModMask

	Outer image.Rectangle
	Clip  []image.Rectangle

	Err error
}
