// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: x11/input.go
// Summary: Translation of X key names, modifier state and buttons to tcell.

package x11

import (
	"unicode/utf8"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/gdamore/tcell/v2"
)

var namedKeys = map[string]tcell.Key{
	"Return":    tcell.KeyEnter,
	"KP_Enter":  tcell.KeyEnter,
	"BackSpace": tcell.KeyBackspace2,
	"Tab":       tcell.KeyTab,
	"Escape":    tcell.KeyEscape,
	"Up":        tcell.KeyUp,
	"Down":      tcell.KeyDown,
	"Left":      tcell.KeyLeft,
	"Right":     tcell.KeyRight,
	"Home":      tcell.KeyHome,
	"End":       tcell.KeyEnd,
	"Prior":     tcell.KeyPgUp,
	"Next":      tcell.KeyPgDn,
	"Insert":    tcell.KeyInsert,
	"Delete":    tcell.KeyDelete,
	"F1":        tcell.KeyF1,
	"F2":        tcell.KeyF2,
	"F3":        tcell.KeyF3,
	"F4":        tcell.KeyF4,
	"F5":        tcell.KeyF5,
	"F6":        tcell.KeyF6,
	"F7":        tcell.KeyF7,
	"F8":        tcell.KeyF8,
	"F9":        tcell.KeyF9,
	"F10":       tcell.KeyF10,
	"F11":       tcell.KeyF11,
	"F12":       tcell.KeyF12,
}

// translateKey maps an X key name as returned by keybind.LookupString to a
// tcell key. ok is false for modifier keys and unknown names.
func translateKey(name string, state uint16) (key tcell.Key, r rune, mod tcell.ModMask, ok bool) {
	mod = translateMods(state)
	if k, found := namedKeys[name]; found {
		return k, 0, mod, true
	}
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || size != len(name) {
		return 0, 0, mod, false
	}
	if mod&tcell.ModCtrl != 0 {
		switch {
		case r >= 'a' && r <= 'z':
			return tcell.KeyCtrlA + tcell.Key(r-'a'), 0, mod, true
		case r >= 'A' && r <= 'Z':
			return tcell.KeyCtrlA + tcell.Key(r-'A'), 0, mod, true
		}
	}
	return tcell.KeyRune, r, mod, true
}

func translateMods(state uint16) tcell.ModMask {
	var mod tcell.ModMask
	if state&xproto.ModMaskShift != 0 {
		mod |= tcell.ModShift
	}
	if state&xproto.ModMaskControl != 0 {
		mod |= tcell.ModCtrl
	}
	if state&xproto.ModMask1 != 0 {
		mod |= tcell.ModAlt
	}
	if state&xproto.ModMask4 != 0 {
		mod |= tcell.ModMeta
	}
	return mod
}

// buttonFor maps an X button number. Wheel reports true for buttons 4-7.
func buttonFor(detail xproto.Button) (b tcell.ButtonMask, wheel bool) {
	switch detail {
	case 1:
		return tcell.Button1, false
	case 2:
		return tcell.Button3, false
	case 3:
		return tcell.Button2, false
	case 4:
		return tcell.WheelUp, true
	case 5:
		return tcell.WheelDown, true
	case 6:
		return tcell.WheelLeft, true
	case 7:
		return tcell.WheelRight, true
	}
	return tcell.ButtonNone, false
}
