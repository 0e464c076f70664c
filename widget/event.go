// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/event.go
// Summary: Event records exchanged between widgets.
// Usage: Synthesized events come from NewEvent and go back with Release.

package widget

import (
	"image"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// EventType tags an Event.
type EventType uint8

const (
	EventNone EventType = iota
	EventShow
	EventHide
	EventResize
	EventPaint
	EventUpdateToplevel
	EventFocus
	EventUnfocus
	EventMouseDown
	EventMouseUp
	EventMouseMove
	EventKey
	EventClose
)

var eventNames = [...]string{
	EventNone:           "none",
	EventShow:           "show",
	EventHide:           "hide",
	EventResize:         "resize",
	EventPaint:          "paint",
	EventUpdateToplevel: "update-toplevel",
	EventFocus:          "focus",
	EventUnfocus:        "unfocus",
	EventMouseDown:      "mouse-down",
	EventMouseUp:        "mouse-up",
	EventMouseMove:      "mouse-move",
	EventKey:            "key",
	EventClose:          "close",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event is a single dispatched message. Only the payload fields matching
// Type are meaningful.
type Event struct {
	Type   EventType
	Sender Element
	// Ack, when set, receives the outcome of an event that needs an answer.
	Ack chan<- error

	// resize
	Rect image.Rectangle

	// mouse
	Point   image.Point
	Buttons tcell.ButtonMask
	// Hit is the deepest element that consumed a mouse event.
	Hit Element

	// key
	Key  tcell.Key
	Rune rune
	Mod  tcell.ModMask

	// update-toplevel
	Toplevel *Window

	// paint
	Surface Surface
}

var eventPool = sync.Pool{New: func() any { return new(Event) }}

// NewEvent returns a cleared event of the given type.
func NewEvent(typ EventType, sender Element) *Event {
	ev := eventPool.Get().(*Event)
	ev.Type = typ
	ev.Sender = sender
	return ev
}

// Release returns ev to the pool. The event must not be used afterwards.
func (ev *Event) Release() {
	if ev == nil {
		return
	}
	*ev = Event{}
	eventPool.Put(ev)
}

// Acknowledge answers the optional ack channel without blocking.
func (ev *Event) Acknowledge(err error) {
	if ev.Ack == nil {
		return
	}
	select {
	case ev.Ack <- err:
	default:
	}
}

// IsMouse reports whether the event carries a pointer position.
func (ev *Event) IsMouse() bool {
	return ev.Type == EventMouseDown || ev.Type == EventMouseUp || ev.Type == EventMouseMove
}

// isBroadcast reports whether every child must see the event.
func (ev *Event) isBroadcast() bool {
	return ev.Type == EventPaint || ev.Type == EventUpdateToplevel
}
