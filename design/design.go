// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: design/design.go
// Summary: Builds a widget tree from a YAML design file.
// Usage: win, err := design.LoadFile(app, "dialog.yaml"); btn := win.GetObject(11)
// Notes: Unknown keys are rejected. Nodes carry numeric ids so code can find
//        them again with Container.GetObject.

package design

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/framegrace/texelgui/widget"
	"gopkg.in/yaml.v3"
)

var ErrInvalidDesign = errors.New("design: invalid design")

// Document is the root of a design file.
type Document struct {
	Window WindowNode `yaml:"window"`
}

// WindowNode describes the toplevel window.
type WindowNode struct {
	ID    int      `yaml:"id"`
	Title string   `yaml:"title"`
	Rect  []int    `yaml:"rect,omitempty"` // x0, y0, x1, y1; empty lets the server place it
	Style []string `yaml:"style,omitempty"`
	Box   *BoxNode `yaml:"box,omitempty"`
	Nodes []Node   `yaml:"children,omitempty"`
}

// BoxNode attaches a Box layout to a container.
type BoxNode struct {
	Orientation string `yaml:"orientation"`
	Border      int    `yaml:"border"`
}

// Node is one widget of the tree.
type Node struct {
	Kind        string   `yaml:"kind"`
	ID          int      `yaml:"id"`
	Text        string   `yaml:"text,omitempty"`
	Align       []string `yaml:"align,omitempty"`
	MinSize     []int    `yaml:"min_size,omitempty"` // width, height
	Rect        []int    `yaml:"rect,omitempty"`
	Hidden      bool     `yaml:"hidden,omitempty"`
	Transparent bool     `yaml:"transparent,omitempty"`
	Disabled    bool     `yaml:"disabled,omitempty"`
	Box         *BoxNode `yaml:"box,omitempty"`
	Children    []Node   `yaml:"children,omitempty"`
}

const (
	KindContainer = "container"
	KindLabel     = "label"
	KindButton    = "button"
	KindSpacer    = "spacer"
	KindWidget    = "widget"
)

var alignNames = map[string]widget.Align{
	"left":    widget.AlignLeft,
	"top":     widget.AlignTop,
	"right":   widget.AlignRight,
	"bottom":  widget.AlignBottom,
	"center":  widget.AlignCenter,
	"expand":  widget.AlignExpand,
	"stretch": widget.AlignStretch,
}

var styleNames = map[string]widget.WindowStyle{
	"titlebar": widget.StyleTitleBar,
	"border":   widget.StyleBorder,
	"modal":    widget.StyleModal,
}

var orientationNames = map[string]widget.Orientation{
	"horizontal": widget.Horizontal,
	"vertical":   widget.Vertical,
	"both":       widget.Both,
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDesign, fmt.Sprintf(format, args...))
}

// Parse decodes and validates a design document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, invalid("empty document")
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDesign, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	w := d.Window
	if _, err := rectOf(w.Rect, "window"); err != nil {
		return err
	}
	if _, err := styleOf(w.Style); err != nil {
		return err
	}
	if _, err := boxOf(w.Box, "window"); err != nil {
		return err
	}
	for i := range w.Nodes {
		if err := w.Nodes[i].validate("window"); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) validate(path string) error {
	where := fmt.Sprintf("%s/%s#%d", path, n.Kind, n.ID)
	switch n.Kind {
	case KindContainer:
	case KindLabel, KindButton, KindSpacer, KindWidget:
		if n.Box != nil || len(n.Children) > 0 {
			return invalid("%s: only containers take a box or children", where)
		}
	default:
		return invalid("%s: unknown kind %q", where, n.Kind)
	}
	if _, err := rectOf(n.Rect, where); err != nil {
		return err
	}
	if len(n.MinSize) != 0 && (len(n.MinSize) != 2 || n.MinSize[0] < 0 || n.MinSize[1] < 0) {
		return invalid("%s: min_size wants two non-negative values", where)
	}
	if _, err := alignOf(n.Align, where); err != nil {
		return err
	}
	if _, err := boxOf(n.Box, where); err != nil {
		return err
	}
	for i := range n.Children {
		if err := n.Children[i].validate(where); err != nil {
			return err
		}
	}
	return nil
}

func rectOf(v []int, where string) (image.Rectangle, error) {
	switch len(v) {
	case 0:
		return image.Rectangle{}, nil
	case 4:
		return image.Rect(v[0], v[1], v[2], v[3]), nil
	}
	return image.Rectangle{}, invalid("%s: rect wants four values, got %d", where, len(v))
}

func styleOf(names []string) (widget.WindowStyle, error) {
	var s widget.WindowStyle
	for _, name := range names {
		bit, ok := styleNames[strings.ToLower(name)]
		if !ok {
			return 0, invalid("window: unknown style %q", name)
		}
		s |= bit
	}
	return s, nil
}

func alignOf(names []string, where string) (widget.Align, error) {
	var a widget.Align
	for _, name := range names {
		bit, ok := alignNames[strings.ToLower(name)]
		if !ok {
			return 0, invalid("%s: unknown align %q", where, name)
		}
		a |= bit
	}
	return a, nil
}

func boxOf(b *BoxNode, where string) (*widget.Box, error) {
	if b == nil {
		return nil, nil
	}
	o, ok := orientationNames[strings.ToLower(b.Orientation)]
	if !ok {
		return nil, invalid("%s: unknown box orientation %q", where, b.Orientation)
	}
	if b.Border < 0 {
		return nil, invalid("%s: negative box border", where)
	}
	return widget.NewBox(o, b.Border), nil
}

// Load reads a design from r and builds it for app.
func Load(app *widget.App, r io.Reader) (*widget.Window, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("design: read: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Build(app)
}

// LoadFile is Load on the named file.
func LoadFile(app *widget.App, path string) (*widget.Window, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("design: %w", err)
	}
	defer f.Close()
	win, err := Load(app, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return win, nil
}

// Build creates the window and its widgets. The window is not shown.
func (d *Document) Build(app *widget.App) (*widget.Window, error) {
	w := d.Window
	rect, _ := rectOf(w.Rect, "window")
	style, _ := styleOf(w.Style)
	win, err := widget.NewWindow(app, w.ID, w.Title, rect, style)
	if err != nil {
		return nil, err
	}
	box, _ := boxOf(w.Box, "window")
	if box != nil {
		if err := win.SetBox(box); err != nil {
			return nil, err
		}
	}
	for i := range w.Nodes {
		if _, err := build(&win.Container, &w.Nodes[i]); err != nil {
			return nil, err
		}
	}
	if box != nil {
		box.Layout()
	}
	return win, nil
}

func build(parent *widget.Container, n *Node) (widget.Element, error) {
	var (
		e   widget.Element
		err error
	)
	switch n.Kind {
	case KindContainer:
		var c *widget.Container
		if c, err = widget.NewContainer(parent, n.ID); err == nil {
			e = c
		}
	case KindLabel:
		var l *widget.Label
		if l, err = widget.NewLabel(parent, n.ID, n.Text); err == nil {
			e = l
		}
	case KindButton:
		var b *widget.Button
		if b, err = widget.NewButton(parent, n.ID, n.Text); err == nil {
			e = b
		}
	case KindSpacer:
		var s *widget.Spacer
		if s, err = widget.NewSpacer(parent, n.ID); err == nil {
			e = s
		}
	case KindWidget:
		var w *widget.Widget
		if w, err = widget.NewWidget(parent, n.ID); err == nil {
			e = w
		}
	default:
		err = invalid("unknown kind %q", n.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("design: build %s#%d: %w", n.Kind, n.ID, err)
	}

	w := e.Base()
	if rect, _ := rectOf(n.Rect, ""); !rect.Empty() {
		w.SetRect(rect)
	}
	if len(n.MinSize) == 2 {
		w.SetMinSize(n.MinSize[0], n.MinSize[1])
	}
	if len(n.Align) > 0 {
		a, _ := alignOf(n.Align, "")
		w.SetAlign(a)
	}
	if n.Transparent {
		w.SetTransparent(true)
	}
	if n.Disabled {
		w.SetDisabled(true)
	}

	if c := widget.AsContainer(e); c != nil {
		box, _ := boxOf(n.Box, "")
		if box != nil {
			if err := c.SetBox(box); err != nil {
				return nil, err
			}
		}
		for i := range n.Children {
			if _, err := build(c, &n.Children[i]); err != nil {
				return nil, err
			}
		}
	}
	if n.Hidden {
		w.Hide()
	}
	return e, nil
}
