// Package store implements the persistence layer: a single SQLite database
// holding networks, baselines, readings, anomalies and expected values,
// shared by the simulator and monitor loops.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// ErrNetworkNotFound is returned by lookups for an unknown network id.
var ErrNetworkNotFound = errors.New("store: network not found")

// Store is a thread-safe handle over the waterline database. Bulk writes run
// in explicit transactions; the underlying connection is single-writer.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, applies pragmas and runs
// pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store mkdir %s: %w", dir, err)
		}
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// openDB opens a SQLite database with recommended pragmas: WAL journal
// mode, synchronous=NORMAL, foreign_keys=ON, busy_timeout=5000.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}

	// Single-writer: only one connection needed.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}

	return db, nil
}
