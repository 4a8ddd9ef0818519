// Package db provides the per-repository SQLite store.
//
// Each repository keeps its own database at .entirecontext/context.db,
// opened in WAL mode so hook ingestion, background sync, and interactive
// queries can run concurrently. The sync engine consumes this package only
// through the narrow session/checkpoint accessors and the sync_metadata
// helpers; it never issues SQL of its own.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// timeLayout is a fixed-width UTC timestamp. Fixed width keeps lexicographic
// TEXT comparison in SQL identical to chronological order, which the
// incremental export watermark depends on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NowISO returns the current UTC time in the store's timestamp format.
func NowISO() string {
	return time.Now().UTC().Format(timeLayout)
}

// ParseISO parses a stored timestamp.
func ParseISO(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// DB wraps the per-repository SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Path returns the canonical database path for a repository.
func Path(repoPath string) string {
	return filepath.Join(repoPath, ".entirecontext", "context.db")
}

// Open opens (creating if necessary) the database at path.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	// WAL for concurrent readers during writes
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// OpenRepo opens the database for the repository rooted at repoPath.
func OpenRepo(repoPath string) (*DB, error) {
	return Open(Path(repoPath))
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// DBPath returns the filesystem path of the database file.
func (db *DB) DBPath() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates all tables and indexes. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}
