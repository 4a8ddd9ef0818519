// Package git wraps the git executable for shadow-branch sync operations.
//
// All state the sync engine keeps in git flows through this package:
// repository discovery, branch management, disposable worktrees, and the
// fetch/push/commit cycle. Every invocation runs with an explicit working
// directory and a context deadline, and never relies on shell interpolation.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Command timeouts. Worktree and commit operations are local and fast;
// fetch/push cross the network and get more headroom.
const (
	QuickTimeout   = 10 * time.Second
	LocalTimeout   = 30 * time.Second
	NetworkTimeout = 60 * time.Second
)

// Repo is a handle on one git repository, identified by its root directory.
type Repo struct {
	root string
}

// Open resolves the repository containing path. Returns ErrNotARepo when
// path is not inside a git working copy.
func Open(path string) (*Repo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), QuickTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = absPath
	output, err := cmd.Output()
	if err != nil {
		return nil, ErrNotARepo
	}

	root := strings.TrimSpace(string(output))
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	return &Repo{root: root}, nil
}

// Root returns the repository root directory.
func (r *Repo) Root() string {
	return r.root
}

// run executes a git command in dir, folding combined output into the error.
func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, string(output))
	}

	return output, nil
}

// runQuiet executes a git command and reports only success or failure.
func runQuiet(ctx context.Context, dir string, args ...string) bool {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Run() == nil
}

// BranchExists reports whether a local branch exists. Never touches the
// network.
func (r *Repo) BranchExists(ctx context.Context, name string) bool {
	return runQuiet(ctx, r.root, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
}

// CurrentBranch returns the checked-out branch name, or empty string in
// detached HEAD state.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "symbolic-ref", "--short", "HEAD")
	cmd.Dir = r.root

	output, err := cmd.Output()
	if err != nil {
		return "", nil // detached HEAD
	}

	return strings.TrimSpace(string(output)), nil
}

// CommitHash resolves a ref to its commit hash.
func (r *Repo) CommitHash(ctx context.Context, ref string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", ref)
	cmd.Dir = r.root

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve ref %s: %w", ref, err)
	}

	return strings.TrimSpace(string(output)), nil
}

// HasRemote reports whether any remote is configured. Sync treats a missing
// remote as local-only mode, not an error.
func (r *Repo) HasRemote(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "remote")
	cmd.Dir = r.root

	output, err := cmd.Output()
	if err != nil {
		return false
	}

	return len(strings.TrimSpace(string(output))) > 0
}

// StagedDiff returns the staged changes as unified diff text. An empty
// string means nothing is staged.
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--staged")
	cmd.Dir = r.root

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to read staged diff: %w", err)
	}

	return string(output), nil
}

// Fetch fetches a ref from origin. Skipped silently when no remote is
// configured.
func (r *Repo) Fetch(ctx context.Context, ref string) error {
	if !r.HasRemote(ctx) {
		return nil
	}

	args := []string{"fetch", "origin"}
	if ref != "" {
		args = append(args, ref)
	}

	if _, err := run(ctx, r.root, args...); err != nil {
		return err
	}
	return nil
}
