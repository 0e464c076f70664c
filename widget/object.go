// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/object.go
// Summary: Minimal object model: elements, capability checks, flags.
// Usage: Every widget kind embeds Widget and is addressed through Element.
// Notes: Base behaviour is reached through the handler chain, see SetHandler.

package widget

import (
	"errors"
	"io"
	"log"
	"os"
)

var debugLog = log.New(io.Discard, "", log.LstdFlags)

// SetVerboseLogging toggles verbose widget logging.
func SetVerboseLogging(enable bool) {
	if enable {
		debugLog.SetOutput(os.Stderr)
	} else {
		debugLog.SetOutput(io.Discard)
	}
}

var (
	ErrHasParent    = errors.New("widget: already has a parent")
	ErrNotChild     = errors.New("widget: not a child of this container")
	ErrCycle        = errors.New("widget: container cannot contain itself")
	ErrIsWindow     = errors.New("widget: a window cannot be a child")
	ErrBoxInUse     = errors.New("widget: box already lays out another container")
	ErrNoDisplay    = errors.New("widget: window has no display")
	ErrNotConnected = errors.New("widget: window is not connected")
	ErrDisplayGone  = errors.New("widget: display event stream closed")
	ErrClosed       = errors.New("widget: window closed")
	ErrCloseRefused = errors.New("widget: close refused")
)

// Element is anything living in a widget tree. Concrete kinds embed Widget
// (directly or through Container/Window) and return it from Base.
type Element interface {
	Base() *Widget
}

type containerElement interface {
	Element
	container() *Container
}

type windowElement interface {
	Element
	window() *Window
}

// AsContainer returns the container behind e, or nil when e is a leaf.
func AsContainer(e Element) *Container {
	if ce, ok := e.(containerElement); ok {
		return ce.container()
	}
	return nil
}

// AsWindow returns the window behind e, or nil.
func AsWindow(e Element) *Window {
	if we, ok := e.(windowElement); ok {
		return we.window()
	}
	return nil
}

// IsContainer reports whether e can hold children.
func IsContainer(e Element) bool { return AsContainer(e) != nil }

// Flags is the widget state bit set.
type Flags uint16

const (
	FlagShown Flags = 1 << iota
	FlagDisabled
	FlagFocused
	FlagTransparent
	FlagFocusable
	// FlagDCVisible is held by a window while the display grants it screen
	// area to draw on.
	FlagDCVisible
	FlagAnimating
)

// Align controls how Box places a widget.
type Align uint8

const (
	AlignLeft Align = 0
	// AlignRight flushes to the far cross-axis edge (bottom in horizontal boxes).
	AlignRight Align = 1 << iota
	AlignCenter
	AlignExpand
	AlignStretch
)

const (
	AlignTop    = AlignLeft
	AlignBottom = AlignRight
)

// HandlerFunc handles one event and reports whether it was consumed.
type HandlerFunc func(ev *Event) bool
