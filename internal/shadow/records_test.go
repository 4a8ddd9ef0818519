package shadow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSessionRecordRoundTrip(t *testing.T) {
	root := t.TempDir()

	title := "investigate flaky test"
	rec := &SessionRecord{
		ID:           "sess-1",
		ProjectID:    "proj-1",
		SessionType:  "claude",
		StartedAt:    "2026-08-01T10:00:00.000000000Z",
		SessionTitle: &title,
		TotalTurns:   3,
	}
	if err := WriteSessionRecord(root, rec); err != nil {
		t.Fatalf("WriteSessionRecord failed: %v", err)
	}

	records, err := ReadSessionRecords(root)
	if err != nil {
		t.Fatalf("ReadSessionRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != rec.ID || got.TotalTurns != 3 {
		t.Errorf("Record not preserved: %+v", got)
	}
	if got.SessionTitle == nil || *got.SessionTitle != title {
		t.Errorf("Title not preserved: %v", got.SessionTitle)
	}
}

func TestReadSessionRecordsSkipsMalformed(t *testing.T) {
	root := t.TempDir()

	if err := WriteSessionRecord(root, &SessionRecord{ID: "good"}); err != nil {
		t.Fatalf("WriteSessionRecord failed: %v", err)
	}

	// A directory with unparseable meta.json and one whose record fails
	// validation must both be skipped, not abort the read.
	badDir := filepath.Join(root, "sessions", "bad")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "meta.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	noIDDir := filepath.Join(root, "sessions", "noid")
	if err := os.MkdirAll(noIDDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(noIDDir, "meta.json"), []byte(`{"total_turns": 2}`), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := ReadSessionRecords(root)
	if err != nil {
		t.Fatalf("ReadSessionRecords failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "good" {
		t.Errorf("Expected only the good record, got %d", len(records))
	}
}

func TestReadCheckpointRecordsSkipsMalformed(t *testing.T) {
	root := t.TempDir()

	good := &CheckpointRecord{ID: "cp-1", SessionID: "sess-1", GitCommitHash: "abc"}
	if err := WriteCheckpointRecord(root, good); err != nil {
		t.Fatalf("WriteCheckpointRecord failed: %v", err)
	}

	dir := filepath.Join(root, "checkpoints")
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("]["), 0644); err != nil {
		t.Fatal(err)
	}
	// Missing session_id fails validation.
	if err := os.WriteFile(filepath.Join(dir, "orphan.json"), []byte(`{"id":"cp-2"}`), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := ReadCheckpointRecords(root)
	if err != nil {
		t.Fatalf("ReadCheckpointRecords failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "cp-1" {
		t.Errorf("Expected only cp-1, got %d records", len(records))
	}
}

func TestEmbedJSON(t *testing.T) {
	obj := `{"files": ["a.go"]}`
	notJSON := `just some text`

	tests := []struct {
		name string
		in   *string
		want string
	}{
		{"nil input", nil, ""},
		{"valid json embedded raw", &obj, obj},
		{"plain text quoted", &notJSON, `"just some text"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EmbedJSON(tt.in)
			if string(got) != tt.want {
				t.Errorf("EmbedJSON = %q, want %q", got, tt.want)
			}
			if got != nil && !json.Valid(got) {
				t.Errorf("EmbedJSON produced invalid JSON: %q", got)
			}
		})
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	root := t.TempDir()

	lines := []string{`{"id":"t1","turn_number":1}`, `{"id":"t2","turn_number":2}`}
	if err := WriteTranscript(root, "sess-1", lines); err != nil {
		t.Fatalf("WriteTranscript failed: %v", err)
	}

	got, err := ReadTranscriptLines(root, "sess-1")
	if err != nil {
		t.Fatalf("ReadTranscriptLines failed: %v", err)
	}
	if len(got) != 2 || got[0] != lines[0] {
		t.Errorf("Transcript not preserved: %v", got)
	}

	missing, err := ReadTranscriptLines(root, "no-such-session")
	if err != nil {
		t.Fatalf("Expected nil error for missing transcript, got %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil lines for missing transcript, got %v", missing)
	}
}

func TestManifestLoadCorruptYieldsFresh(t *testing.T) {
	root := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, "manifest.json"), []byte("%%%"), 0644); err != nil {
		t.Fatal(err)
	}

	m := LoadManifest(root)
	if m.Version != ManifestVersion {
		t.Errorf("Expected fresh manifest version %d, got %d", ManifestVersion, m.Version)
	}
	if len(m.Sessions) != 0 || len(m.Checkpoints) != 0 {
		t.Error("Expected empty fresh manifest")
	}
}

func TestManifestMergeKeepsHigherTurnCount(t *testing.T) {
	local := NewManifest()
	local.AddSession("s1", ManifestSession{TotalTurns: 5})
	local.AddCheckpoint("c1", ManifestCheckpoint{SessionID: "s1", CommitHash: "old"})

	remote := NewManifest()
	remote.AddSession("s1", ManifestSession{TotalTurns: 3}) // stale exporter
	remote.AddSession("s2", ManifestSession{TotalTurns: 1})
	remote.AddCheckpoint("c1", ManifestCheckpoint{SessionID: "s1", CommitHash: "new"})

	local.Merge(remote)

	if local.Sessions["s1"].TotalTurns != 5 {
		t.Errorf("Merge rolled back turn count: %d", local.Sessions["s1"].TotalTurns)
	}
	if _, ok := local.Sessions["s2"]; !ok {
		t.Error("Merge dropped the new session")
	}
	if local.Checkpoints["c1"].CommitHash != "new" {
		t.Error("Checkpoint merge is last-writer-wins; expected remote entry")
	}
}

func TestMergeTranscriptsDedupsByTurnID(t *testing.T) {
	local := `{"id":"t1","user_message":"local"}
{"id":"t2"}
`
	remote := `{"id":"t1","user_message":"remote"}
{"id":"t3"}
not json at all
`

	merged := MergeTranscripts(local, remote)

	lines := strings.Split(strings.TrimSpace(merged), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 merged lines, got %d: %q", len(lines), merged)
	}
	// First-seen wins: the local t1 survives.
	if lines[0] != `{"id":"t1","user_message":"local"}` {
		t.Errorf("Expected local line to win for t1, got %q", lines[0])
	}
	if !strings.HasSuffix(merged, "\n") {
		t.Error("Merged transcript should end with a newline")
	}
}
