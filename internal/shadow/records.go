// Package shadow maintains the orphan git branch used as a durable,
// human-inspectable log of exported sessions and checkpoints.
//
// Branch layout:
//
//	manifest.json
//	sessions/<uuid>/meta.json
//	sessions/<uuid>/transcript.jsonl
//	checkpoints/<uuid>.json
//
// Session and checkpoint files are append-only per id; the manifest is the
// one file rewritten (additively) every export cycle.
package shadow

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SessionRecord is the flat snapshot written to sessions/<id>/meta.json.
type SessionRecord struct {
	ID             string  `json:"id"`
	ProjectID      string  `json:"project_id,omitempty"`
	SessionType    string  `json:"session_type,omitempty"`
	StartedAt      string  `json:"started_at,omitempty"`
	EndedAt        *string `json:"ended_at,omitempty"`
	SessionTitle   *string `json:"session_title,omitempty"`
	SessionSummary *string `json:"session_summary,omitempty"`
	TotalTurns     int     `json:"total_turns,omitempty"`
}

// CheckpointRecord is the serialization of one checkpoint row. Nested JSON
// fields are embedded as raw values rather than double-encoded strings.
type CheckpointRecord struct {
	ID                 string          `json:"id"`
	SessionID          string          `json:"session_id"`
	GitCommitHash      string          `json:"git_commit_hash"`
	GitBranch          *string         `json:"git_branch,omitempty"`
	ParentCheckpointID *string         `json:"parent_checkpoint_id,omitempty"`
	FilesSnapshot      json.RawMessage `json:"files_snapshot,omitempty"`
	DiffSummary        *string         `json:"diff_summary,omitempty"`
	CreatedAt          string          `json:"created_at,omitempty"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
}

// Validate rejects records that cannot be keyed. Import skips, never
// aborts on, records that fail validation.
func (r *SessionRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("session record missing id")
	}
	return nil
}

// Validate rejects checkpoint records without a primary key or session link.
func (r *CheckpointRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("checkpoint record missing id")
	}
	if r.SessionID == "" {
		return fmt.Errorf("checkpoint record %s missing session_id", r.ID)
	}
	return nil
}

// EmbedJSON converts stored TEXT that already holds JSON into a raw value,
// falling back to a JSON string for anything unparseable.
func EmbedJSON(text *string) json.RawMessage {
	if text == nil || *text == "" {
		return nil
	}
	if json.Valid([]byte(*text)) {
		return json.RawMessage(*text)
	}
	quoted, _ := json.Marshal(*text)
	return quoted
}

// WriteSessionRecord writes meta.json for one session under root.
func WriteSessionRecord(root string, rec *SessionRecord) error {
	dir := filepath.Join(root, "sessions", rec.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	return writeJSON(filepath.Join(dir, "meta.json"), rec)
}

// WriteTranscript writes transcript.jsonl for one session: one JSON object
// per line, already in turn-number order.
func WriteTranscript(root, sessionID string, lines []string) error {
	dir := filepath.Join(root, "sessions", sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	path := filepath.Join(dir, "transcript.jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// WriteCheckpointRecord writes checkpoints/<id>.json under root.
func WriteCheckpointRecord(root string, rec *CheckpointRecord) error {
	dir := filepath.Join(root, "checkpoints")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return writeJSON(filepath.Join(dir, rec.ID+".json"), rec)
}

// ReadSessionRecords walks sessions/*/meta.json under root. Records that
// fail to parse or validate are skipped.
func ReadSessionRecords(root string) ([]*SessionRecord, error) {
	sessionsDir := filepath.Join(root, "sessions")
	entries, err := os.ReadDir(sessionsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var records []*SessionRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sessionsDir, entry.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var rec SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if err := rec.Validate(); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// ReadCheckpointRecords walks checkpoints/*.json under root, skipping
// malformed files.
func ReadCheckpointRecords(root string) ([]*CheckpointRecord, error) {
	dir := filepath.Join(root, "checkpoints")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	var records []*CheckpointRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec CheckpointRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if err := rec.Validate(); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// ReadTranscriptLines returns the raw JSONL lines of a session transcript.
func ReadTranscriptLines(root, sessionID string) ([]string, error) {
	path := filepath.Join(root, "sessions", sessionID, "transcript.jsonl")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
