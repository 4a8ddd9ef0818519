package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const checkpointColumns = `id, session_id, git_commit_hash, git_branch,
	parent_checkpoint_id, files_snapshot, diff_summary, created_at, metadata`

// CreateCheckpoint inserts a checkpoint row. A zero ID gets a fresh UUID;
// an empty CreatedAt defaults to now.
func (db *DB) CreateCheckpoint(c *Checkpoint) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt == "" {
		c.CreatedAt = NowISO()
	}

	_, err := db.conn.Exec(
		`INSERT INTO checkpoints
		(id, session_id, git_commit_hash, git_branch, parent_checkpoint_id,
		 files_snapshot, diff_summary, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.GitCommitHash, c.GitBranch, c.ParentCheckpointID,
		c.FilesSnapshot, c.DiffSummary, c.CreatedAt, c.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	return nil
}

func scanCheckpoint(row interface{ Scan(...any) error }) (*Checkpoint, error) {
	var c Checkpoint
	err := row.Scan(
		&c.ID, &c.SessionID, &c.GitCommitHash, &c.GitBranch, &c.ParentCheckpointID,
		&c.FilesSnapshot, &c.DiffSummary, &c.CreatedAt, &c.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCheckpoint returns a checkpoint by id, or nil when absent.
func (db *DB) GetCheckpoint(id string) (*Checkpoint, error) {
	row := db.conn.QueryRow("SELECT "+checkpointColumns+" FROM checkpoints WHERE id = ?", id)
	c, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return c, nil
}

// GetCheckpointByPrefix resolves a checkpoint by full id or unique prefix.
func (db *DB) GetCheckpointByPrefix(prefix string) (*Checkpoint, error) {
	row := db.conn.QueryRow(
		"SELECT "+checkpointColumns+" FROM checkpoints WHERE id = ? OR id LIKE ? LIMIT 1",
		prefix, prefix+"%")
	c, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return c, nil
}

// ListCheckpointsSince returns checkpoints created strictly after since.
// An empty since returns every checkpoint.
func (db *DB) ListCheckpointsSince(since string) ([]*Checkpoint, error) {
	query := "SELECT " + checkpointColumns + " FROM checkpoints"
	var args []any
	if since != "" {
		query += " WHERE created_at > ?"
		args = append(args, since)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, c)
	}
	return checkpoints, rows.Err()
}

// CountCheckpoints returns the total number of checkpoints.
func (db *DB) CountCheckpoints() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM checkpoints").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count checkpoints: %w", err)
	}
	return n, nil
}
