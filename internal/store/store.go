// Package store persists hosts, services, service history, and scan chunk
// lifecycle state in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// maxPoolConns bounds the shared connection pool. WAL journaling lets
// readers run concurrently with the one in-progress writer without
// blocking each other; this pool size just needs to be large enough that
// the engine's writer and a handful of concurrent readers (health checks,
// export queries) each get their own connection instead of queuing behind
// database/sql's pool itself.
const maxPoolConns = 8

// Store wraps a SQLite connection configured for a single writer with many
// concurrent readers.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path, enables WAL
// journaling, and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxPoolConns)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for packages that need direct access
// (health checks, export reports).
func (s *Store) DB() *sql.DB {
	return s.db
}

const (
	busyRetries   = 5
	busyBaseDelay = 20 * time.Millisecond
)

// isBusyErr reports whether err looks like SQLITE_BUSY, i.e. the writer
// held the lock past busy_timeout.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// WithRetry runs fn, retrying with bounded exponential backoff if it fails
// with SQLITE_BUSY. Intended for read-only callers (health checks, export
// queries) that share the pool with the engine's writer and can tolerate a
// few milliseconds of delay rather than failing outright.
func WithRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = fn()
		if err == nil || !isBusyErr(err) {
			return err
		}
		time.Sleep(busyBaseDelay * time.Duration(1<<attempt))
	}
	return err
}
