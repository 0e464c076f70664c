// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/cells.go
// Summary: DrawCells payload carrying painted window content.
// Usage: Clients batch painted cells into runs; the server composites them.
// Notes: Run coordinates are window-local. A run's runes advance by their
//        display width, so wide runes consume two cells.

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// ColorModel represents how colours are encoded for a style.
type ColorModel uint8

const (
	ColorModelDefault ColorModel = iota
	ColorModelANSI256
	ColorModelRGB
)

// StyleEntry captures the styling applied to runs.
type StyleEntry struct {
	AttrFlags uint16
	FgModel   ColorModel
	FgValue   uint32
	BgModel   ColorModel
	BgValue   uint32
}

const (
	AttrBold uint16 = 1 << iota
	AttrUnderline
	AttrReverse
	AttrBlink
	AttrDim
	AttrItalic
)

var attrMap = [...]struct {
	wire uint16
	attr tcell.AttrMask
}{
	{AttrBold, tcell.AttrBold},
	{AttrUnderline, tcell.AttrUnderline},
	{AttrReverse, tcell.AttrReverse},
	{AttrBlink, tcell.AttrBlink},
	{AttrDim, tcell.AttrDim},
	{AttrItalic, tcell.AttrItalic},
}

// CellRun is a horizontal stretch of cells sharing one style.
type CellRun struct {
	X          uint16
	Y          uint16
	Text       string
	StyleIndex uint16
}

// DrawCells replaces the given cells of a window.
type DrawCells struct {
	WindowID uint32
	Styles   []StyleEntry
	Runs     []CellRun
}

var ErrDrawTooLarge = errors.New("protocol: draw cells exceeds limits")

// CellCount returns the number of runes carried by all runs.
func (d DrawCells) CellCount() int {
	n := 0
	for _, r := range d.Runs {
		n += utf8.RuneCountInString(r.Text)
	}
	return n
}

// StyleFromTcell converts a tcell style to its wire form.
func StyleFromTcell(style tcell.Style) StyleEntry {
	fg, bg, attrs := style.Decompose()
	var e StyleEntry
	for _, m := range attrMap {
		if attrs&m.attr != 0 {
			e.AttrFlags |= m.wire
		}
	}
	e.FgModel, e.FgValue = colorToWire(fg)
	e.BgModel, e.BgValue = colorToWire(bg)
	return e
}

// Tcell converts a wire style back to a tcell style.
func (e StyleEntry) Tcell() tcell.Style {
	var attrs tcell.AttrMask
	for _, m := range attrMap {
		if e.AttrFlags&m.wire != 0 {
			attrs |= m.attr
		}
	}
	return tcell.StyleDefault.
		Foreground(colorFromWire(e.FgModel, e.FgValue)).
		Background(colorFromWire(e.BgModel, e.BgValue)).
		Attributes(attrs)
}

func colorToWire(color tcell.Color) (ColorModel, uint32) {
	switch {
	case color == tcell.ColorDefault:
		return ColorModelDefault, 0
	case color.IsRGB():
		r, g, b := color.RGB()
		return ColorModelRGB, (uint32(r)&0xff)<<16 | (uint32(g)&0xff)<<8 | (uint32(b) & 0xff)
	default:
		return ColorModelANSI256, uint32(color - tcell.ColorValid)
	}
}

func colorFromWire(model ColorModel, value uint32) tcell.Color {
	switch model {
	case ColorModelRGB:
		return tcell.NewRGBColor(int32(value>>16&0xFF), int32(value>>8&0xFF), int32(value&0xFF))
	case ColorModelANSI256:
		return tcell.PaletteColor(int(value & 0xFF))
	default:
		return tcell.ColorDefault
	}
}

// EncodeDrawCells serialises the runs into a compact binary representation.
func EncodeDrawCells(d DrawCells) ([]byte, error) {
	if len(d.Styles) > 0xFFFF || len(d.Runs) > 0xFFFF {
		return nil, ErrDrawTooLarge
	}
	buf := bytes.NewBuffer(make([]byte, 0, 64))
	if err := binary.Write(buf, binary.LittleEndian, d.WindowID); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(d.Styles))); err != nil {
		return nil, err
	}
	for _, style := range d.Styles {
		if err := binary.Write(buf, binary.LittleEndian, style.AttrFlags); err != nil {
			return nil, err
		}
		buf.WriteByte(byte(style.FgModel))
		if err := binary.Write(buf, binary.LittleEndian, style.FgValue); err != nil {
			return nil, err
		}
		buf.WriteByte(byte(style.BgModel))
		if err := binary.Write(buf, binary.LittleEndian, style.BgValue); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(d.Runs))); err != nil {
		return nil, err
	}
	for _, run := range d.Runs {
		if int(run.StyleIndex) >= len(d.Styles) {
			return nil, ErrDrawTooLarge
		}
		if err := binary.Write(buf, binary.LittleEndian, [3]uint16{run.X, run.Y, run.StyleIndex}); err != nil {
			return nil, err
		}
		if err := encodeString(buf, run.Text); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeDrawCells reverses EncodeDrawCells.
func DecodeDrawCells(b []byte) (DrawCells, error) {
	var d DrawCells
	if len(b) < 6 {
		return d, errPayloadShort
	}
	d.WindowID = binary.LittleEndian.Uint32(b[:4])
	styleCount := int(binary.LittleEndian.Uint16(b[4:6]))
	b = b[6:]
	d.Styles = make([]StyleEntry, styleCount)
	for i := range d.Styles {
		if len(b) < 12 { // attr(2)+fgModel(1)+fg(4)+bgModel(1)+bg(4)
			return d, errPayloadShort
		}
		d.Styles[i] = StyleEntry{
			AttrFlags: binary.LittleEndian.Uint16(b[:2]),
			FgModel:   ColorModel(b[2]),
			FgValue:   binary.LittleEndian.Uint32(b[3:7]),
			BgModel:   ColorModel(b[7]),
			BgValue:   binary.LittleEndian.Uint32(b[8:12]),
		}
		b = b[12:]
	}

	if len(b) < 2 {
		return d, errPayloadShort
	}
	runCount := int(binary.LittleEndian.Uint16(b[:2]))
	b = b[2:]
	d.Runs = make([]CellRun, runCount)
	for i := range d.Runs {
		if len(b) < 6 {
			return d, errPayloadShort
		}
		run := CellRun{
			X:          binary.LittleEndian.Uint16(b[0:2]),
			Y:          binary.LittleEndian.Uint16(b[2:4]),
			StyleIndex: binary.LittleEndian.Uint16(b[4:6]),
		}
		if int(run.StyleIndex) >= styleCount {
			return d, ErrDrawTooLarge
		}
		text, rest, err := decodeString(b[6:])
		if err != nil {
			return d, err
		}
		run.Text = text
		d.Runs[i] = run
		b = rest
	}
	return d, done(b)
}
