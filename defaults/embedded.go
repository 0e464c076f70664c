// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: defaults/embedded.go
// Summary: Configuration and design files compiled into every binary.
// Notes: Per-app defaults live under apps/<name>/config.json; apps without
//        one report fs.ErrNotExist.

package defaults

import (
	"embed"
	"errors"
	"path"
)

//go:embed texelgui.json apps/*/config.json demo.yaml
var files embed.FS

var errNoApp = errors.New("defaults: app name is required")

// SystemConfig is the shipped texelgui.json.
func SystemConfig() ([]byte, error) { return files.ReadFile("texelgui.json") }

// AppConfig is the shipped config of one app.
func AppConfig(app string) ([]byte, error) {
	if app == "" {
		return nil, errNoApp
	}
	return files.ReadFile(path.Join("apps", app, "config.json"))
}

// DemoDesign is the window texelgui-demo builds when given no design file.
func DemoDesign() ([]byte, error) { return files.ReadFile("demo.yaml") }
