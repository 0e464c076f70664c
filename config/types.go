// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/types.go
// Summary: Section access, defaults registration and typed getters.
// Notes: Values come from encoding/json, so numbers are float64 unless a
//        caller stored something else; strings holding numbers or booleans
//        are accepted too.

package config

import (
	"encoding/json"
	"strconv"
	"time"
)

// Section returns the named section or nil if missing. The empty name
// addresses the top level.
func (c Config) Section(name string) Section {
	if c == nil {
		return nil
	}
	if name == "" {
		return Section(c)
	}
	switch v := c[name].(type) {
	case Section:
		return v
	case map[string]interface{}:
		return Section(v)
	}
	return nil
}

// RegisterDefaults adds the keys of defaults that the section lacks.
func (c Config) RegisterDefaults(name string, defaults Section) {
	if c == nil || defaults == nil {
		return
	}
	section := c.Section(name)
	if section == nil {
		section = make(Section, len(defaults))
		if name == "" {
			section = Section(c)
		} else {
			c[name] = section
		}
	}
	for key, value := range defaults {
		if _, ok := section[key]; !ok {
			section[key] = value
		}
	}
}

func (c Config) value(section, key string) (interface{}, bool) {
	s := c.Section(section)
	if s == nil {
		return nil, false
	}
	v, ok := s[key]
	return v, ok
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func (c Config) GetString(section, key, def string) string {
	if s, ok := c.valueString(section, key); ok {
		return s
	}
	return def
}

func (c Config) valueString(section, key string) (string, bool) {
	v, _ := c.value(section, key)
	s, ok := v.(string)
	return s, ok
}

func (c Config) GetFloat(section, key string, def float64) float64 {
	v, ok := c.value(section, key)
	if !ok {
		return def
	}
	if f, ok := number(v); ok {
		return f
	}
	return def
}

func (c Config) GetInt(section, key string, def int) int {
	v, ok := c.value(section, key)
	if !ok {
		return def
	}
	if s, isString := v.(string); isString {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	}
	if f, ok := number(v); ok {
		return int(f)
	}
	return def
}

func (c Config) GetBool(section, key string, def bool) bool {
	v, ok := c.value(section, key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
		return def
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	return def
}

// GetMillis reads a non-negative number of milliseconds.
func (c Config) GetMillis(section, key string, def time.Duration) time.Duration {
	ms := c.GetInt(section, key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Clone deep copies cfg. Nested maps and slices are copied; other values
// are immutable JSON scalars.
func Clone(cfg Config) Config {
	if cfg == nil {
		return nil
	}
	return Config(cloneMap(cfg))
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case Section:
		return Section(cloneMap(t))
	case Config:
		return Config(cloneMap(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
