// Package registry maintains the process-wide index of known repositories.
//
// The registry is a single SQLite database under the user's home directory
// (~/.entirecontext/global.db). It is modeled as an explicit service with
// its own lifecycle rather than a module-level singleton, so tests can point
// it at an isolated file.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Entry is one registered repository.
type Entry struct {
	RepoPath      string
	RepoName      string
	DBPath        string
	LastIndexedAt *string
	SessionCount  int
	TurnCount     int
}

// Registry wraps the global registry database.
type Registry struct {
	conn *sql.DB
	path string
}

// DefaultPath returns ~/.entirecontext/global.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".entirecontext", "global.db"), nil
}

// Open opens (creating if necessary) the registry at path.
//
// The caller MUST call Close() when done.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping registry: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS repo_index (
		repo_path TEXT PRIMARY KEY,
		repo_name TEXT,
		db_path TEXT NOT NULL,
		last_indexed_at TEXT,
		session_count INTEGER DEFAULT 0,
		turn_count INTEGER DEFAULT 0
	);
	`
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create registry schema: %w", err)
	}

	return &Registry{conn: conn, path: path}, nil
}

// OpenDefault opens the registry at its default home-directory location.
func OpenDefault() (*Registry, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Close closes the registry connection.
func (r *Registry) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// Register inserts or refreshes a repository entry. Entries are never
// deleted automatically; a vanished db_path is skipped at read time instead.
func (r *Registry) Register(repoPath, repoName, dbPath string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.conn.Exec(
		`INSERT INTO repo_index (repo_path, repo_name, db_path, last_indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_path) DO UPDATE SET
			repo_name = excluded.repo_name,
			db_path = excluded.db_path,
			last_indexed_at = excluded.last_indexed_at`,
		repoPath, repoName, dbPath, now)
	if err != nil {
		return fmt.Errorf("failed to register repo: %w", err)
	}
	return nil
}

// UpdateCounts refreshes the cached session/turn counts for a repository.
func (r *Registry) UpdateCounts(repoPath string, sessions, turns int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.conn.Exec(
		`UPDATE repo_index
		SET session_count = ?, turn_count = ?, last_indexed_at = ?
		WHERE repo_path = ?`,
		sessions, turns, now, repoPath)
	if err != nil {
		return fmt.Errorf("failed to update repo counts: %w", err)
	}
	return nil
}

// List returns every registered repository, ordered by name. Entries whose
// database file no longer exists are unreachable and silently skipped.
// A non-empty names filter keeps only the named repositories.
func (r *Registry) List(names []string) ([]Entry, error) {
	rows, err := r.conn.Query(
		`SELECT repo_path, repo_name, db_path, last_indexed_at, session_count, turn_count
		FROM repo_index ORDER BY repo_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repos: %w", err)
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.RepoPath, &e.RepoName, &e.DBPath, &e.LastIndexedAt,
			&e.SessionCount, &e.TurnCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repo entry: %w", err)
		}
		if _, statErr := os.Stat(e.DBPath); statErr != nil {
			continue
		}
		if len(wanted) > 0 && !wanted[e.RepoName] {
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
