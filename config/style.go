// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/style.go
// Summary: Colour, style and key getters for theme and binding settings.
// Notes: Styles are space separated words: attribute names, fg:<colour>
//        and bg:<colour>. Colours take tcell names or #rrggbb.

package config

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
)

var styleAttrs = map[string]tcell.AttrMask{
	"bold":      tcell.AttrBold,
	"dim":       tcell.AttrDim,
	"italic":    tcell.AttrItalic,
	"underline": tcell.AttrUnderline,
	"blink":     tcell.AttrBlink,
	"reverse":   tcell.AttrReverse,
}

// ParseColor accepts "default", a tcell colour name or #rrggbb.
func ParseColor(s string) (tcell.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "default" {
		return tcell.ColorDefault, true
	}
	c := tcell.GetColor(s)
	if c == tcell.ColorDefault {
		return c, false
	}
	return c, true
}

// ParseStyle reads a style description such as "bold fg:yellow bg:#202020".
func ParseStyle(s string) (tcell.Style, bool) {
	style := tcell.StyleDefault
	for _, word := range strings.Fields(strings.ToLower(s)) {
		switch {
		case word == "default":
		case strings.HasPrefix(word, "fg:"):
			c, ok := ParseColor(word[3:])
			if !ok {
				return tcell.StyleDefault, false
			}
			style = style.Foreground(c)
		case strings.HasPrefix(word, "bg:"):
			c, ok := ParseColor(word[3:])
			if !ok {
				return tcell.StyleDefault, false
			}
			style = style.Background(c)
		default:
			attr, ok := styleAttrs[word]
			if !ok {
				return tcell.StyleDefault, false
			}
			style = style.Attributes(attrOf(style) | attr)
		}
	}
	return style, true
}

func attrOf(s tcell.Style) tcell.AttrMask {
	_, _, attrs := s.Decompose()
	return attrs
}

// ParseKey reads a key name, case insensitive: "ctrl-w", "esc", "f10".
func ParseKey(s string) (tcell.Key, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "esc" || s == "escape":
		return tcell.KeyEscape, true
	case s == "tab":
		return tcell.KeyTab, true
	case s == "enter":
		return tcell.KeyEnter, true
	case len(s) == 6 && strings.HasPrefix(s, "ctrl-") && s[5] >= 'a' && s[5] <= 'z':
		return tcell.KeyCtrlA + tcell.Key(s[5]-'a'), true
	case strings.HasPrefix(s, "f"):
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 1 || n > 12 {
			return 0, false
		}
		return tcell.KeyF1 + tcell.Key(n-1), true
	}
	return 0, false
}

// GetColor retrieves a colour, falling back on unknown names.
func (c Config) GetColor(sectionName, key string, defaultValue tcell.Color) tcell.Color {
	raw := c.GetString(sectionName, key, "")
	if raw == "" {
		return defaultValue
	}
	color, ok := ParseColor(raw)
	if !ok {
		debugLog.Printf("config: %s.%s: unknown colour %q", sectionName, key, raw)
		return defaultValue
	}
	return color
}

// GetStyle retrieves a style, falling back when it does not parse.
func (c Config) GetStyle(sectionName, key string, defaultValue tcell.Style) tcell.Style {
	raw := c.GetString(sectionName, key, "")
	if raw == "" {
		return defaultValue
	}
	style, ok := ParseStyle(raw)
	if !ok {
		debugLog.Printf("config: %s.%s: bad style %q", sectionName, key, raw)
		return defaultValue
	}
	return style
}

// GetKey retrieves a key binding.
func (c Config) GetKey(sectionName, key string, defaultValue tcell.Key) tcell.Key {
	raw := c.GetString(sectionName, key, "")
	if raw == "" {
		return defaultValue
	}
	k, ok := ParseKey(raw)
	if !ok {
		debugLog.Printf("config: %s.%s: unknown key %q", sectionName, key, raw)
		return defaultValue
	}
	return k
}
