// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default values for system and app configuration files.

package config

func applySystemDefaults(cfg Config) {
	if cfg == nil {
		return
	}
	cfg.RegisterDefaults("display", Section{
		"socket":             "",
		"request_timeout_ms": 2000,
		"keepalive_ms":       10000,
		"verbose":            false,
	})
	cfg.RegisterDefaults("window", Section{
		"default_width":      40,
		"default_height":     12,
		"remember_placement": true,
	})
	cfg.RegisterDefaults("theme", Section{
		"background":  "default",
		"title_style": "reverse",
	})
	cfg.RegisterDefaults("server", Section{
		"max_queue":    1024,
		"placement_db": "",
		"close_key":    "ctrl-w",
		"quit_key":     "ctrl-q",
	})
}

func applyAppDefaults(app string, cfg Config) {
	if cfg == nil {
		return
	}
	switch app {
	case "texelgui-demo":
		cfg.RegisterDefaults("demo", Section{
			"design": "",
			"title":  "texelgui demo",
		})
	}
}
