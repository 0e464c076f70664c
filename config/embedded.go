// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/embedded.go
// Summary: Parsed copies of the defaults shipped in the binary.

package config

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/framegrace/texelgui/defaults"
)

var embedded sync.Map // file key -> Config

func parseEmbedded(key string, read func() ([]byte, error)) Config {
	if cfg, ok := embedded.Load(key); ok {
		return Clone(cfg.(Config))
	}
	data, err := read()
	if err != nil {
		// Apps without shipped defaults land here.
		return nil
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("config: embedded %s: %v", key, err)
		return nil
	}
	embedded.Store(key, cfg)
	return Clone(cfg)
}

func embeddedSystem() Config {
	return parseEmbedded(systemFile, defaults.SystemConfig)
}

func embeddedApp(name string) Config {
	return parseEmbedded("apps/"+name, func() ([]byte, error) { return defaults.AppConfig(name) })
}
