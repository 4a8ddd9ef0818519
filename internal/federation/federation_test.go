package federation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teslamint/entirecontext/internal/db"
	"github.com/teslamint/entirecontext/internal/registry"
)

// setupRegistry points the global registry at a scratch home directory.
func setupRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	t.Setenv("HOME", t.TempDir())

	reg, err := registry.OpenDefault()
	if err != nil {
		t.Fatalf("Failed to open registry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

// addRepo creates a repo directory with a context database holding n
// sessions and registers it.
func addRepo(t *testing.T, reg *registry.Registry, name string, n int) string {
	t.Helper()

	repoPath := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(repoPath, 0755); err != nil {
		t.Fatal(err)
	}

	d, err := db.OpenRepo(repoPath)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.InitSchema(); err != nil {
		t.Fatal(err)
	}

	project, err := d.GetOrCreateProject(name, repoPath)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		title := fmt.Sprintf("%s session %d", name, i)
		s := &db.Session{ProjectID: project, SessionType: "claude", SessionTitle: &title}
		if err := d.CreateSession(s); err != nil {
			t.Fatal(err)
		}
		msg := fmt.Sprintf("work on %s feature %d", name, i)
		if err := d.CreateTurn(&db.Turn{SessionID: s.ID, TurnNumber: 1, UserMessage: &msg}); err != nil {
			t.Fatal(err)
		}
	}

	if err := reg.Register(repoPath, name, d.DBPath()); err != nil {
		t.Fatal(err)
	}
	return repoPath
}

// addBrokenRepo registers a repo whose database file exists but is not
// SQLite.
func addBrokenRepo(t *testing.T, reg *registry.Registry, name string) {
	t.Helper()

	repoPath := filepath.Join(t.TempDir(), name)
	dbPath := filepath.Join(repoPath, ".entirecontext", "context.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbPath, []byte("this is not a database"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(repoPath, name, dbPath); err != nil {
		t.Fatal(err)
	}
}

func TestCrossRepoSessions(t *testing.T) {
	reg := setupRegistry(t)
	addRepo(t, reg, "alpha", 2)
	addRepo(t, reg, "beta", 3)

	results, warnings, err := CrossRepoSessions(nil, 10)
	if err != nil {
		t.Fatalf("CrossRepoSessions failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", warnings)
	}
	if len(results) != 5 {
		t.Fatalf("Expected 5 sessions across repos, got %d", len(results))
	}

	// Newest first across all repos.
	for i := 1; i < len(results); i++ {
		if results[i-1].Session.LastActivityAt < results[i].Session.LastActivityAt {
			t.Errorf("Results not sorted by last activity at index %d", i)
		}
	}
}

func TestCrossRepoSessionsNameFilter(t *testing.T) {
	reg := setupRegistry(t)
	addRepo(t, reg, "alpha", 2)
	addRepo(t, reg, "beta", 3)

	results, _, err := CrossRepoSessions([]string{"beta"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 sessions from beta, got %d", len(results))
	}
	for _, r := range results {
		if r.RepoName != "beta" {
			t.Errorf("Filter leaked repo %s", r.RepoName)
		}
	}
}

func TestCrossRepoSessionsLimit(t *testing.T) {
	reg := setupRegistry(t)
	addRepo(t, reg, "alpha", 4)

	results, _, err := CrossRepoSessions(nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("Expected limit of 2, got %d", len(results))
	}
}

func TestBrokenRepoBecomesWarning(t *testing.T) {
	reg := setupRegistry(t)
	addRepo(t, reg, "alpha", 1)
	addBrokenRepo(t, reg, "broken")
	addRepo(t, reg, "gamma", 1)

	results, warnings, err := CrossRepoSessions(nil, 10)
	if err != nil {
		t.Fatalf("One broken repo must not fail the query: %v", err)
	}

	if len(results) != 2 {
		t.Errorf("Expected sessions from the 2 healthy repos, got %d", len(results))
	}
	if len(warnings) != 1 {
		t.Fatalf("Expected exactly 1 warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "broken") {
		t.Errorf("Warning does not name the failing repo: %q", warnings[0])
	}
}

func TestMissingDBPathSkippedSilently(t *testing.T) {
	reg := setupRegistry(t)
	addRepo(t, reg, "alpha", 1)

	// db_path that never existed: filtered at registry level, no warning.
	if err := reg.Register("/tmp/ghost-repo", "ghost", "/tmp/ghost-repo/.entirecontext/context.db"); err != nil {
		t.Fatal(err)
	}

	results, warnings, err := CrossRepoSessions(nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("Vanished repos should be skipped silently, got %v", warnings)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 session, got %d", len(results))
	}
}

func TestCrossRepoSearch(t *testing.T) {
	reg := setupRegistry(t)
	addRepo(t, reg, "alpha", 2)
	addRepo(t, reg, "beta", 2)

	results, warnings, err := CrossRepoSearch("feature", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", warnings)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 matching turns, got %d", len(results))
	}

	none, _, err := CrossRepoSearch("zebra-no-match", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no matches, got %d", len(none))
	}
}

func TestRefreshCounts(t *testing.T) {
	reg := setupRegistry(t)
	repoPath := addRepo(t, reg, "alpha", 3)

	if err := RefreshCounts(repoPath); err != nil {
		t.Fatalf("RefreshCounts failed: %v", err)
	}

	entries, err := reg.List(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].SessionCount != 3 || entries[0].TurnCount != 3 {
		t.Errorf("Counts not refreshed: %+v", entries[0])
	}
}
