// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: Process-wide configuration store for texelgui.
// Usage: config.System().GetInt("server", "max_queue", 1024)
// Notes: The package functions use Default(), a Store rooted at
//        $XDG_CONFIG_HOME/texelgui (os.UserConfigDir).

package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Config holds named sections of JSON values.
type Config map[string]interface{}

// Section holds the key/value pairs of one section.
type Section map[string]interface{}

var debugLog = log.New(io.Discard, "", log.LstdFlags)

// SetVerboseLogging reports every loaded file on the standard logger.
func SetVerboseLogging(on bool) {
	if on {
		debugLog.SetOutput(log.Writer())
		return
	}
	debugLog.SetOutput(io.Discard)
}

// Root returns the directory holding texelgui configuration and state.
func Root() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "texelgui"), nil
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// Default returns the store rooted at Root. Without a config directory it
// is kept in memory only.
func Default() *Store {
	defaultOnce.Do(func() {
		dir, err := Root()
		if err != nil {
			log.Printf("config: no config directory, settings will not persist: %v", err)
		}
		defaultStore = NewStore(dir)
	})
	return defaultStore
}

func System() Config                 { return Default().System() }
func App(name string) Config         { return Default().App(name) }
func Err() error                     { return Default().Err() }
func Reload() error                  { return Default().Reload() }
func ReloadSystem() error            { return Default().ReloadSystem() }
func ReloadApp(name string) error    { return Default().ReloadApp(name) }
func SaveSystem() error              { return Default().SaveSystem() }
func SaveApp(name string) error      { return Default().SaveApp(name) }
func SetSystem(cfg Config)           { Default().SetSystem(cfg) }
func SetApp(name string, cfg Config) { Default().SetApp(name, cfg) }
