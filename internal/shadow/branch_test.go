package shadow

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/teslamint/entirecontext/internal/git"
)

// setupTestRepo creates a real git repository with one commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, output)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"add", "main.go"},
		{"commit", "-q", "-m", "initial"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, output)
		}
	}
	return dir
}

func countWorktrees(t *testing.T, repoPath string) int {
	t.Helper()

	repo, err := git.Open(repoPath)
	if err != nil {
		t.Fatal(err)
	}
	paths, err := repo.ListWorktrees(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return len(paths)
}

func TestEnsureBranch(t *testing.T) {
	repoPath := setupTestRepo(t)

	if BranchExists(repoPath) {
		t.Fatal("Shadow branch should not exist before EnsureBranch")
	}

	if err := EnsureBranch(repoPath); err != nil {
		t.Fatalf("EnsureBranch failed: %v", err)
	}
	if !BranchExists(repoPath) {
		t.Fatal("Shadow branch missing after EnsureBranch")
	}

	// Idempotent.
	if err := EnsureBranch(repoPath); err != nil {
		t.Fatalf("Second EnsureBranch failed: %v", err)
	}

	// Bootstrap must not leak its worktree.
	if n := countWorktrees(t, repoPath); n != 1 {
		t.Errorf("Expected only the primary worktree, got %d", n)
	}

	// The user's checkout is untouched.
	repo, _ := git.Open(repoPath)
	branch, _ := repo.CurrentBranch(context.Background())
	if branch == Branch {
		t.Error("EnsureBranch switched the primary checkout onto the shadow branch")
	}
	if _, err := os.Stat(filepath.Join(repoPath, "manifest.json")); !os.IsNotExist(err) {
		t.Error("Shadow branch files leaked into the primary checkout")
	}
}

func TestEnsureBranchSeedsLayout(t *testing.T) {
	repoPath := setupTestRepo(t)
	if err := EnsureBranch(repoPath); err != nil {
		t.Fatal(err)
	}

	err := WithWorktree(repoPath, "ec-test-", func(wt *git.Worktree) error {
		if _, err := os.Stat(filepath.Join(wt.Path(), "manifest.json")); err != nil {
			t.Errorf("manifest.json missing on shadow branch: %v", err)
		}
		m := LoadManifest(wt.Path())
		if m.Version != ManifestVersion {
			t.Errorf("Expected manifest version %d, got %d", ManifestVersion, m.Version)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithWorktree failed: %v", err)
	}
}

func TestWithWorktreeCleansUpOnError(t *testing.T) {
	repoPath := setupTestRepo(t)
	if err := EnsureBranch(repoPath); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	var leakedPath string
	err := WithWorktree(repoPath, "ec-test-", func(wt *git.Worktree) error {
		leakedPath = wt.Path()
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected callback error to propagate, got %v", err)
	}

	if _, statErr := os.Stat(leakedPath); !os.IsNotExist(statErr) {
		t.Error("Worktree directory survived a failing callback")
	}
	if n := countWorktrees(t, repoPath); n != 1 {
		t.Errorf("Expected only the primary worktree, got %d", n)
	}
}
