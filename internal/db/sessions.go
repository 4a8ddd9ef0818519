package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// GetOrCreateProject returns the id of the project row for this repository,
// creating it on first use.
func (db *DB) GetOrCreateProject(name, repoPath string) (string, error) {
	var id string
	err := db.conn.QueryRow("SELECT id FROM projects LIMIT 1").Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to query project: %w", err)
	}

	id = uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO projects (id, name, repo_path) VALUES (?, ?, ?)",
		id, name, repoPath,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create project: %w", err)
	}
	return id, nil
}

// CreateSession inserts a session row. A zero SessionID gets a fresh UUID;
// empty timestamps default to now.
func (db *DB) CreateSession(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := NowISO()
	if s.StartedAt == "" {
		s.StartedAt = now
	}
	if s.LastActivityAt == "" {
		s.LastActivityAt = now
	}

	_, err := db.conn.Exec(
		`INSERT INTO sessions
		(id, project_id, agent_id, session_type, workspace_path, started_at,
		 ended_at, last_activity_at, session_title, session_summary, total_turns, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProjectID, s.AgentID, s.SessionType, s.WorkspacePath, s.StartedAt,
		s.EndedAt, s.LastActivityAt, s.SessionTitle, s.SessionSummary, s.TotalTurns, s.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, project_id, agent_id, session_type, workspace_path,
	started_at, ended_at, last_activity_at, session_title, session_summary,
	total_turns, metadata`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.AgentID, &s.SessionType, &s.WorkspacePath,
		&s.StartedAt, &s.EndedAt, &s.LastActivityAt, &s.SessionTitle,
		&s.SessionSummary, &s.TotalTurns, &s.Metadata,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession returns a session by id, or nil when absent.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.conn.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListSessions returns sessions ordered by recency.
func (db *DB) ListSessions(limit int) ([]*Session, error) {
	rows, err := db.conn.Query(
		"SELECT "+sessionColumns+" FROM sessions ORDER BY last_activity_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListSessionsSince returns sessions whose last activity is strictly after
// since. An empty since returns every session (full first export).
func (db *DB) ListSessionsSince(since string) ([]*Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions"
	var args []any
	if since != "" {
		query += " WHERE last_activity_at > ?"
		args = append(args, since)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]*Session, error) {
	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CountSessions returns the total number of sessions.
func (db *DB) CountSessions() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// CountTurns returns the total number of turns.
func (db *DB) CountTurns() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM turns").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return n, nil
}

// CreateTurn inserts a turn row.
func (db *DB) CreateTurn(t *Turn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp == "" {
		t.Timestamp = NowISO()
	}

	_, err := db.conn.Exec(
		`INSERT INTO turns
		(id, session_id, turn_number, user_message, assistant_summary, turn_status,
		 model_name, git_commit_hash, files_touched, tools_used, content_hash, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.TurnNumber, t.UserMessage, t.AssistantSummary, t.TurnStatus,
		t.ModelName, t.GitCommitHash, t.FilesTouched, t.ToolsUsed, t.ContentHash, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create turn: %w", err)
	}
	return nil
}

// ListTurns returns a session's turns in turn-number order.
func (db *DB) ListTurns(sessionID string) ([]*Turn, error) {
	rows, err := db.conn.Query(
		`SELECT id, session_id, turn_number, user_message, assistant_summary,
			turn_status, model_name, git_commit_hash, files_touched, tools_used,
			content_hash, timestamp
		FROM turns WHERE session_id = ? ORDER BY turn_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		var t Turn
		err := rows.Scan(
			&t.ID, &t.SessionID, &t.TurnNumber, &t.UserMessage, &t.AssistantSummary,
			&t.TurnStatus, &t.ModelName, &t.GitCommitHash, &t.FilesTouched, &t.ToolsUsed,
			&t.ContentHash, &t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// SearchTurns is the narrow federated-search contract: a substring match
// over user messages and assistant summaries, newest first.
func (db *DB) SearchTurns(query, since string, limit int) ([]*Turn, error) {
	sqlQuery := `SELECT id, session_id, turn_number, user_message, assistant_summary,
			turn_status, model_name, git_commit_hash, files_touched, tools_used,
			content_hash, timestamp
		FROM turns
		WHERE (user_message LIKE ? OR assistant_summary LIKE ?)`
	pattern := "%" + query + "%"
	args := []any{pattern, pattern}

	if since != "" {
		sqlQuery += " AND timestamp > ?"
		args = append(args, since)
	}
	sqlQuery += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		var t Turn
		err := rows.Scan(
			&t.ID, &t.SessionID, &t.TurnNumber, &t.UserMessage, &t.AssistantSummary,
			&t.TurnStatus, &t.ModelName, &t.GitCommitHash, &t.FilesTouched, &t.ToolsUsed,
			&t.ContentHash, &t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}
