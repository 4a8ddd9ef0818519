package db

import (
	"context"
	"fmt"
)

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		repo_path TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		agent_id TEXT,
		session_type TEXT NOT NULL,
		workspace_path TEXT,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		last_activity_at TEXT NOT NULL,
		session_title TEXT,
		session_summary TEXT,
		total_turns INTEGER DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now')),
		metadata TEXT,
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity_at DESC);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		user_message TEXT,
		assistant_summary TEXT,
		turn_status TEXT,
		model_name TEXT,
		git_commit_hash TEXT,
		files_touched TEXT,
		tools_used TEXT,
		content_hash TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		UNIQUE(session_id, turn_number),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	CREATE INDEX IF NOT EXISTS idx_turns_timestamp ON turns(timestamp DESC);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		git_commit_hash TEXT NOT NULL,
		git_branch TEXT,
		parent_checkpoint_id TEXT,
		files_snapshot TEXT,
		diff_summary TEXT,
		created_at TEXT NOT NULL,
		metadata TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
		FOREIGN KEY (parent_checkpoint_id) REFERENCES checkpoints(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_created ON checkpoints(created_at DESC);

	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		checkpoint_id TEXT,
		verdict TEXT NOT NULL,
		impact_summary TEXT,
		roadmap_alignment TEXT,
		tidy_suggestion TEXT,
		diff_summary TEXT,
		model_name TEXT,
		feedback TEXT,
		feedback_reason TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (checkpoint_id) REFERENCES checkpoints(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at DESC);

	-- Singleton lock and watermark row for the sync engine.
	CREATE TABLE IF NOT EXISTS sync_metadata (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_export_at TEXT,
		last_import_at TEXT,
		sync_status TEXT DEFAULT 'idle',
		last_sync_error TEXT,
		last_sync_duration_ms INTEGER,
		sync_pid INTEGER
	);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
