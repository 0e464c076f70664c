// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: font/font.go
// Summary: Font metrics service and the registry that owns loaded fonts.
// Usage: Held by the widget App; labels and buttons size themselves with it.
// Notes: Fonts are cell based. Glyph lookup and shaping stay out of scope.

package font

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mattn/go-runewidth"
)

// Font measures text in cells.
type Font interface {
	Name() string
	// Height is the line height in cells.
	Height() int
	RuneWidth(r rune) int
	StringWidth(s string) int
}

var (
	ErrClosed    = errors.New("font: registry closed")
	ErrDuplicate = errors.New("font: already registered")
	ErrNotFound  = errors.New("font: not found")
)

// CellFont is a monospace terminal font. East Asian ambiguous-width runes are
// measured according to Wide.
type CellFont struct {
	name string
	cond *runewidth.Condition
}

// NewCellFont returns a cell font. wide selects the East Asian width rules.
func NewCellFont(name string, wide bool) *CellFont {
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = wide
	return &CellFont{name: name, cond: cond}
}

func (f *CellFont) Name() string { return f.name }
func (f *CellFont) Height() int  { return 1 }

func (f *CellFont) RuneWidth(r rune) int {
	return f.cond.RuneWidth(r)
}

func (f *CellFont) StringWidth(s string) int {
	return f.cond.StringWidth(s)
}

// Truncate shortens s to fit w cells, appending tail when cut.
func (f *CellFont) Truncate(s string, w int, tail string) string {
	return f.cond.Truncate(s, w, tail)
}

// Fallback is used by widgets that are not attached to an App yet.
var Fallback Font = NewCellFont("cell", false)

// Registry owns the fonts of one application. It is created at App start
// and closed at App end.
type Registry struct {
	mu     sync.RWMutex
	fonts  map[string]Font
	def    string
	closed bool
}

// NewRegistry returns a registry holding the default cell font.
func NewRegistry() *Registry {
	r := &Registry{fonts: make(map[string]Font)}
	_ = r.Register(NewCellFont("cell", false))
	_ = r.Register(NewCellFont("cell-wide", true))
	r.def = "cell"
	return r
}

// Register adds f under its name.
func (r *Registry) Register(f Font) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, ok := r.fonts[f.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, f.Name())
	}
	r.fonts[f.Name()] = f
	return nil
}

// Get looks a font up by name.
func (r *Registry) Get(name string) (Font, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	f, ok := r.fonts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, nil
}

// SetDefault selects the font returned by Default.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fonts[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	r.def = name
	return nil
}

// Default returns the default font, or Fallback once the registry is closed.
func (r *Registry) Default() Font {
	if r == nil {
		return Fallback
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return Fallback
	}
	if f, ok := r.fonts[r.def]; ok {
		return f
	}
	return Fallback
}

// Close drops every font. Further lookups fail.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	log.Printf("font: closing registry with %d fonts", len(r.fonts))
	r.fonts = nil
	r.closed = true
}
