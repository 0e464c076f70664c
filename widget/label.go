// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: widget/label.go
// Summary: Leaf widgets: Label, Button and Spacer.

package widget

import (
	"image"

	"github.com/gdamore/tcell/v2"
)

// Label shows one line of text and sizes itself from the default font.
type Label struct {
	Widget
	text string
}

// NewLabel returns a label added to parent.
func NewLabel(parent *Container, id int, text string) (*Label, error) {
	l := &Label{}
	l.initLabel(l, id, text)
	if parent != nil {
		if err := parent.AddChild(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Label) initLabel(self Element, id int, text string) {
	l.Widget.init(self, id)
	l.handler = l.handleEvent
	l.text = text
	l.fit()
}

func (l *Label) Text() string { return l.text }

// SetText replaces the text and its size hint.
func (l *Label) SetText(s string) {
	l.text = s
	l.fit()
	l.invalidate()
}

func (l *Label) fit() {
	f := l.Font()
	l.SetMinSize(f.StringWidth(l.text), f.Height())
}

func (l *Label) handleEvent(ev *Event) bool {
	switch ev.Type {
	case EventUpdateToplevel:
		l.toplevel = ev.Toplevel
		if l.extent.Empty() {
			l.fit()
		}
		return false
	case EventPaint:
		if ev.Surface == nil || !l.IsShown() {
			return false
		}
		l.Widget.handleEvent(ev)
		l.Painter(ev.Surface).Text(l.extent.Min, l.text, l.Style)
		return false
	}
	return l.Widget.handleEvent(ev)
}

// Button is a focusable label that reports clicks.
type Button struct {
	Label
	pressed bool

	// OnClick runs on a release inside the button, Enter or Space.
	OnClick func()
	// FocusStyle replaces Style while the button has focus.
	FocusStyle tcell.Style
}

// NewButton returns a button added to parent.
func NewButton(parent *Container, id int, text string) (*Button, error) {
	b := &Button{}
	b.initLabel(b, id, text)
	b.handler = b.handleEvent
	b.flags |= FlagFocusable
	b.FocusStyle = tcell.StyleDefault.Reverse(true)
	b.fit()
	if parent != nil {
		if err := parent.AddChild(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Button) Pressed() bool { return b.pressed }

func (b *Button) fit() {
	f := b.Font()
	b.SetMinSize(f.StringWidth(b.text)+2, f.Height())
}

// SetText replaces the caption.
func (b *Button) SetText(s string) {
	b.text = s
	b.fit()
	b.invalidate()
}

func (b *Button) click() {
	if b.OnClick != nil && !b.IsDisabled() {
		b.OnClick()
	}
}

func (b *Button) handleEvent(ev *Event) bool {
	switch ev.Type {
	case EventUpdateToplevel:
		b.toplevel = ev.Toplevel
		if b.extent.Empty() {
			b.fit()
		}
		return false
	case EventMouseDown:
		if b.IsDisabled() {
			return false
		}
		b.pressed = true
		b.invalidate()
		return true
	case EventMouseUp:
		was := b.pressed
		b.pressed = false
		b.invalidate()
		if was && ev.Point.In(b.extent) {
			b.click()
		}
		return was
	case EventKey:
		if !b.IsFocused() {
			return false
		}
		if ev.Key == tcell.KeyEnter || (ev.Key == tcell.KeyRune && ev.Rune == ' ') {
			b.click()
			return true
		}
		return false
	case EventPaint:
		if ev.Surface == nil || !b.IsShown() {
			return false
		}
		style := b.Style
		if b.IsFocused() {
			style = b.FocusStyle
		}
		if b.pressed {
			style = style.Bold(true)
		}
		p := b.Painter(ev.Surface)
		p.Fill(b.extent, ' ', style)
		p.Text(image.Pt(b.extent.Min.X+1, b.extent.Min.Y), b.text, style)
		return false
	}
	return b.Widget.handleEvent(ev)
}

// Spacer is an invisible stretch widget for Box layouts.
type Spacer struct {
	Widget
}

// NewSpacer returns a transparent stretch spacer added to parent.
func NewSpacer(parent *Container, id int) (*Spacer, error) {
	s := &Spacer{}
	s.init(s, id)
	s.flags |= FlagTransparent
	s.align = AlignStretch
	if parent != nil {
		if err := parent.AddChild(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}
