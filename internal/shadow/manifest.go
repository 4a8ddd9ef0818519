package shadow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestVersion is the current manifest schema version.
const ManifestVersion = 1

// ManifestSession is the denormalized index entry for one session.
type ManifestSession struct {
	SessionType string `json:"session_type,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	TotalTurns  int    `json:"total_turns,omitempty"`
}

// ManifestCheckpoint is the denormalized index entry for one checkpoint.
type ManifestCheckpoint struct {
	SessionID  string `json:"session_id,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// Manifest indexes everything ever exported to the shadow branch. It grows
// additively and never shrinks.
type Manifest struct {
	Version     int                           `json:"version"`
	Sessions    map[string]ManifestSession    `json:"sessions"`
	Checkpoints map[string]ManifestCheckpoint `json:"checkpoints"`
	UpdatedAt   string                        `json:"updated_at,omitempty"`
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version:     ManifestVersion,
		Sessions:    make(map[string]ManifestSession),
		Checkpoints: make(map[string]ManifestCheckpoint),
	}
}

// LoadManifest reads manifest.json under root. A missing or corrupt file
// yields a fresh manifest rather than an error; the next write repairs it.
func LoadManifest(root string) *Manifest {
	data, err := os.ReadFile(filepath.Join(root, "manifest.json"))
	if err != nil {
		return NewManifest()
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return NewManifest()
	}
	if m.Sessions == nil {
		m.Sessions = make(map[string]ManifestSession)
	}
	if m.Checkpoints == nil {
		m.Checkpoints = make(map[string]ManifestCheckpoint)
	}
	if m.Version == 0 {
		m.Version = ManifestVersion
	}
	return &m
}

// Save writes the manifest with a refreshed updated_at stamp.
func (m *Manifest) Save(root string) error {
	m.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if err := writeJSON(filepath.Join(root, "manifest.json"), m); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// AddSession records or refreshes a session entry.
func (m *Manifest) AddSession(id string, entry ManifestSession) {
	m.Sessions[id] = entry
}

// AddCheckpoint records or refreshes a checkpoint entry.
func (m *Manifest) AddCheckpoint(id string, entry ManifestCheckpoint) {
	m.Checkpoints[id] = entry
}

// Merge unions another manifest into this one. Checkpoint entries are
// last-writer-wins; session entries keep whichever side has seen more
// turns, so a stale exporter cannot roll an index entry backwards.
func (m *Manifest) Merge(other *Manifest) {
	if other.Version > m.Version {
		m.Version = other.Version
	}
	for id, cp := range other.Checkpoints {
		m.Checkpoints[id] = cp
	}
	for id, s := range other.Sessions {
		if existing, ok := m.Sessions[id]; ok && existing.TotalTurns > s.TotalTurns {
			continue
		}
		m.Sessions[id] = s
	}
}
