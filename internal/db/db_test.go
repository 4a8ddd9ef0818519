package db

import (
	"strings"
	"testing"
	"time"
)

// setupTestDB opens a fresh database in a temp directory with the schema
// initialized.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	d, err := OpenRepo(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.InitSchema(); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return d
}

// makeSession inserts a session and returns it.
func makeSession(t *testing.T, d *DB, projectID string) *Session {
	t.Helper()

	s := &Session{ProjectID: projectID, SessionType: "claude"}
	if err := d.CreateSession(s); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return s
}

func makeProject(t *testing.T, d *DB) string {
	t.Helper()

	id, err := d.GetOrCreateProject("myrepo", "/tmp/myrepo")
	if err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return id
}

func TestNowISOIsLexicographicallyOrdered(t *testing.T) {
	// Watermark comparisons happen as TEXT in SQL, so the timestamp
	// encoding must sort the same way time does.
	earlier := NowISO()
	time.Sleep(2 * time.Millisecond)
	later := NowISO()

	if len(earlier) != len(later) {
		t.Fatalf("Timestamps have different widths: %q vs %q", earlier, later)
	}
	if !(earlier < later) {
		t.Errorf("Expected %q < %q", earlier, later)
	}
	if _, err := ParseISO(later); err != nil {
		t.Errorf("NowISO output did not round-trip: %v", err)
	}
}

func TestGetOrCreateProjectIsIdempotent(t *testing.T) {
	d := setupTestDB(t)

	first, err := d.GetOrCreateProject("myrepo", "/tmp/myrepo")
	if err != nil {
		t.Fatalf("First call failed: %v", err)
	}
	second, err := d.GetOrCreateProject("myrepo", "/tmp/myrepo")
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected same project id, got %s and %s", first, second)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	d := setupTestDB(t)
	project := makeProject(t, d)

	title := "fix the parser"
	s := &Session{ProjectID: project, SessionType: "claude", SessionTitle: &title}
	if err := d.CreateSession(s); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if s.ID == "" {
		t.Fatal("CreateSession did not assign an id")
	}

	got, err := d.GetSession(s.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got == nil {
		t.Fatal("Session not found after create")
	}
	if got.SessionTitle == nil || *got.SessionTitle != title {
		t.Errorf("Title not preserved: %+v", got.SessionTitle)
	}
}

func TestGetSessionMissingReturnsNil(t *testing.T) {
	d := setupTestDB(t)

	got, err := d.GetSession("no-such-id")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing session, got %+v", got)
	}
}

func TestListSessionsSince(t *testing.T) {
	d := setupTestDB(t)
	project := makeProject(t, d)

	makeSession(t, d, project)
	cutoff := NowISO()
	time.Sleep(2 * time.Millisecond)
	late := makeSession(t, d, project)

	all, err := d.ListSessionsSince("")
	if err != nil {
		t.Fatalf("ListSessionsSince failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 sessions with empty since, got %d", len(all))
	}

	recent, err := d.ListSessionsSince(cutoff)
	if err != nil {
		t.Fatalf("ListSessionsSince failed: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != late.ID {
		t.Errorf("Expected only the late session after cutoff, got %d", len(recent))
	}
}

func TestSearchTurns(t *testing.T) {
	d := setupTestDB(t)
	project := makeProject(t, d)
	s := makeSession(t, d, project)

	msg := "please refactor the websocket handler"
	turn := &Turn{SessionID: s.ID, TurnNumber: 1, UserMessage: &msg}
	if err := d.CreateTurn(turn); err != nil {
		t.Fatalf("Failed to create turn: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"matching substring", "websocket", 1},
		{"case insensitive via LIKE", "WEBSOCKET", 1},
		{"no match", "kubernetes", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := d.SearchTurns(tt.query, "", 10)
			if err != nil {
				t.Fatalf("SearchTurns failed: %v", err)
			}
			if len(hits) != tt.want {
				t.Errorf("Expected %d hits for %q, got %d", tt.want, tt.query, len(hits))
			}
		})
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	d := setupTestDB(t)
	project := makeProject(t, d)
	s := makeSession(t, d, project)

	c := &Checkpoint{SessionID: s.ID, GitCommitHash: "abc123def"}
	if err := d.CreateCheckpoint(c); err != nil {
		t.Fatalf("Failed to create checkpoint: %v", err)
	}

	got, err := d.GetCheckpointByPrefix(c.ID[:8])
	if err != nil {
		t.Fatalf("GetCheckpointByPrefix failed: %v", err)
	}
	if got == nil || got.ID != c.ID {
		t.Errorf("Prefix lookup failed for %s", c.ID)
	}
}

func TestSyncLockCAS(t *testing.T) {
	d := setupTestDB(t)

	ok, err := d.TryAcquireSyncLock(1234)
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected first acquire to succeed")
	}

	// Second acquisition must lose the CAS while the first holds it.
	ok, err = d.TryAcquireSyncLock(5678)
	if err != nil {
		t.Fatalf("Second acquire errored: %v", err)
	}
	if ok {
		t.Fatal("Expected second acquire to fail while locked")
	}

	state, err := d.GetSyncState()
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state.SyncStatus != "syncing" {
		t.Errorf("Expected status syncing, got %s", state.SyncStatus)
	}
	if state.SyncPID == nil || *state.SyncPID != 1234 {
		t.Errorf("Expected holder pid 1234, got %v", state.SyncPID)
	}

	if err := d.ReleaseSyncLock(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	ok, err = d.TryAcquireSyncLock(5678)
	if err != nil || !ok {
		t.Fatalf("Acquire after release failed: ok=%v err=%v", ok, err)
	}
}

func TestWatermarkAdvanceClearsError(t *testing.T) {
	d := setupTestDB(t)

	if err := d.SetSyncError("push failed"); err != nil {
		t.Fatalf("SetSyncError failed: %v", err)
	}
	state, _ := d.GetSyncState()
	if state.LastSyncError == nil || !strings.Contains(*state.LastSyncError, "push failed") {
		t.Fatal("Expected error to be recorded")
	}

	ts := NowISO()
	if err := d.AdvanceExportWatermark(ts, 42); err != nil {
		t.Fatalf("AdvanceExportWatermark failed: %v", err)
	}

	state, err := d.GetSyncState()
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state.LastExportAt == nil || *state.LastExportAt != ts {
		t.Errorf("Watermark not advanced: %v", state.LastExportAt)
	}
	if state.LastSyncError != nil {
		t.Errorf("Expected clean cycle to clear last_sync_error, got %q", *state.LastSyncError)
	}
	if state.LastSyncDurationMS == nil || *state.LastSyncDurationMS != 42 {
		t.Errorf("Duration not recorded: %v", state.LastSyncDurationMS)
	}
}

func TestAssessmentFeedbackByPrefix(t *testing.T) {
	d := setupTestDB(t)

	a := &Assessment{Verdict: "narrow"}
	if err := d.CreateAssessment(a); err != nil {
		t.Fatalf("CreateAssessment failed: %v", err)
	}

	if err := d.AddAssessmentFeedback(a.ID[:8], "disagree", "verdict too harsh"); err != nil {
		t.Fatalf("AddAssessmentFeedback failed: %v", err)
	}

	list, err := d.ListAssessments("narrow", 10)
	if err != nil {
		t.Fatalf("ListAssessments failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 assessment, got %d", len(list))
	}
	if list[0].Feedback == nil || *list[0].Feedback != "disagree" {
		t.Errorf("Feedback not stored: %+v", list[0].Feedback)
	}
}
