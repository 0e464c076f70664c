// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/store.go
// Summary: Store keeps the system file and per-app files of one directory.
// Notes: A missing or empty file is replaced by the embedded defaults and
//        written back so users have something to edit. Getters never fail;
//        load errors are kept for Err.

package config

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
)

const systemFile = "texelgui.json"

var errNoAppName = errors.New("config: app name is required")

// Store caches the configuration files under one directory. An empty
// directory keeps everything in memory.
type Store struct {
	dir string

	mu     sync.RWMutex
	loaded bool
	system Config
	apps   map[string]Config
	err    error
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, apps: make(map[string]Config)}
}

func (s *Store) Dir() string { return s.dir }

// SystemPath returns the system file path, or "" for an in-memory store.
func (s *Store) SystemPath() string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, systemFile)
}

// AppPath returns the file of the named app, or "" for an in-memory store.
func (s *Store) AppPath(name string) string {
	if s.dir == "" || name == "" {
		return ""
	}
	return filepath.Join(s.dir, "apps", name, "config.json")
}

func (s *Store) ensureLoaded() {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.system, s.err = s.load(s.SystemPath(), embeddedSystem(), applySystemDefaults)
		s.loaded = true
	}
}

// System returns the system configuration.
func (s *Store) System() Config {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.system
}

// Err returns the error of the latest system file load.
func (s *Store) Err() error {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// App returns the configuration of the named app, nil for an empty name.
func (s *Store) App(name string) Config {
	if name == "" {
		return nil
	}
	s.mu.RLock()
	cfg, ok := s.apps[name]
	s.mu.RUnlock()
	if ok {
		return cfg
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.apps[name]; ok {
		return cfg
	}
	cfg, err := s.loadApp(name)
	if err != nil {
		log.Printf("config: load app %q: %v", name, err)
	}
	s.apps[name] = cfg
	return cfg
}

func (s *Store) loadApp(name string) (Config, error) {
	return s.load(s.AppPath(name), embeddedApp(name), func(cfg Config) { applyAppDefaults(name, cfg) })
}

// Reload rereads the system file and every app file already in use.
func (s *Store) Reload() error {
	err := s.ReloadSystem()
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.apps {
		cfg, appErr := s.loadApp(name)
		if appErr != nil {
			log.Printf("config: reload app %q: %v", name, appErr)
			continue
		}
		s.apps[name] = cfg
	}
	return err
}

// ReloadSystem rereads the system file.
func (s *Store) ReloadSystem() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system, s.err = s.load(s.SystemPath(), embeddedSystem(), applySystemDefaults)
	s.loaded = true
	return s.err
}

// ReloadApp rereads one app file. The cached config is kept on error.
func (s *Store) ReloadApp(name string) error {
	if name == "" {
		return errNoAppName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.loadApp(name)
	if err != nil {
		return err
	}
	s.apps[name] = cfg
	return nil
}

// SaveSystem writes the system config.
func (s *Store) SaveSystem() error {
	cfg := s.System()
	if s.dir == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return writeFile(s.SystemPath(), cfg)
}

// SaveApp writes the named app config.
func (s *Store) SaveApp(name string) error {
	if name == "" {
		return errNoAppName
	}
	cfg := s.App(name)
	if s.dir == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return writeFile(s.AppPath(name), cfg)
}

// SetSystem replaces the system config with a copy of cfg.
func (s *Store) SetSystem(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = Clone(cfg)
	if s.system == nil {
		s.system = make(Config)
	}
	s.loaded = true
	s.err = nil
}

// SetApp replaces an app config with a copy of cfg.
func (s *Store) SetApp(name string, cfg Config) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Clone(cfg)
	if c == nil {
		c = make(Config)
	}
	s.apps[name] = c
}

// load reads path, falling back to def when the file is missing or empty.
// fill adds missing keys; the fallback is persisted with them. A broken
// file is left alone and the defaults are served in its place.
func (s *Store) load(path string, def Config, fill func(Config)) (Config, error) {
	if path == "" {
		if def == nil {
			def = make(Config)
		}
		fill(def)
		return def, nil
	}
	cfg, err := readFile(path)
	switch {
	case err != nil:
		log.Printf("config: %v", err)
		cfg = make(Config)
		fill(cfg)
		return cfg, err
	case len(cfg) > 0:
		fill(cfg)
		debugLog.Printf("config: loaded %s", path)
		return cfg, nil
	}

	if def == nil {
		def = make(Config)
	}
	fill(def)
	if err := writeFile(path, def); err != nil {
		log.Printf("config: write defaults: %v", err)
		return def, fmt.Errorf("config: write defaults: %w", err)
	}
	debugLog.Printf("config: wrote defaults to %s", path)
	return def, nil
}
