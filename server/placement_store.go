// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/placement_store.go
// Summary: SQLite store remembering the last geometry of each window title.
// Usage: The compositor saves on move and show, and restores on create when
//        the client leaves the placement to the server.

package server

import (
	"database/sql"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const placementSchemaVersion = 1

const placementSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS placements (
    title      TEXT PRIMARY KEY,
    min_x      INTEGER NOT NULL,
    min_y      INTEGER NOT NULL,
    max_x      INTEGER NOT NULL,
    max_y      INTEGER NOT NULL,
    updated_at INTEGER NOT NULL       -- UnixNano
);
`

// PlacementStore persists window placements keyed by title.
type PlacementStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenPlacementStore opens or creates the database at path.
func OpenPlacementStore(path string) (*PlacementStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("server: create placement dir: %w", err)
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(2000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("server: open placement store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: connect placement store: %w", err)
	}
	if _, err := db.Exec(placementSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: create placement schema: %w", err)
	}
	if err := migratePlacements(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PlacementStore{db: db}, nil
}

func migratePlacements(db *sql.DB) error {
	var current int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("server: read placement schema version: %w", err)
	}
	if current == placementSchemaVersion {
		return nil
	}
	log.Printf("server: placement schema %d -> %d", current, placementSchemaVersion)
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("server: reset placement schema version: %w", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", placementSchemaVersion); err != nil {
		return fmt.Errorf("server: write placement schema version: %w", err)
	}
	return nil
}

// Save records r as the placement of title. Empty titles and rectangles
// are ignored.
func (s *PlacementStore) Save(title string, r image.Rectangle) error {
	if s == nil || title == "" || r.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO placements (title, min_x, min_y, max_x, max_y, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(title) DO UPDATE SET
    min_x = excluded.min_x, min_y = excluded.min_y,
    max_x = excluded.max_x, max_y = excluded.max_y,
    updated_at = excluded.updated_at`,
		title, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("server: save placement %q: %w", title, err)
	}
	return nil
}

// Load returns the stored placement of title.
func (s *PlacementStore) Load(title string) (image.Rectangle, bool, error) {
	if s == nil || title == "" {
		return image.Rectangle{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var r image.Rectangle
	err := s.db.QueryRow("SELECT min_x, min_y, max_x, max_y FROM placements WHERE title = ?", title).
		Scan(&r.Min.X, &r.Min.Y, &r.Max.X, &r.Max.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return image.Rectangle{}, false, nil
	}
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("server: load placement %q: %w", title, err)
	}
	return r, true, nil
}

// Forget drops the placement of title.
func (s *PlacementStore) Forget(title string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM placements WHERE title = ?", title)
	return err
}

func (s *PlacementStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
