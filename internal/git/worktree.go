package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Worktree is a disposable checkout of one branch in its own directory,
// used so shadow-branch file I/O never disturbs the primary working tree.
type Worktree struct {
	repo   *Repo
	path   string
	branch string
}

// AddWorktree checks out branch into a fresh temporary directory and
// returns the worktree handle. The caller must Remove it, normally in a
// defer, so a failed sync cycle cannot leak a registered worktree.
func (r *Repo) AddWorktree(ctx context.Context, prefix, branch string) (*Worktree, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create worktree directory: %w", err)
	}

	if _, err := run(ctx, r.root, "worktree", "add", dir, branch); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &Worktree{repo: r, path: dir, branch: branch}, nil
}

// AddDetachedWorktree checks out HEAD detached into a fresh temporary
// directory. Used to bootstrap an orphan branch without touching the
// primary checkout. Requires at least one commit in the repository.
func (r *Repo) AddDetachedWorktree(ctx context.Context, prefix string) (*Worktree, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create worktree directory: %w", err)
	}

	if _, err := run(ctx, r.root, "worktree", "add", "--detach", dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &Worktree{repo: r, path: dir}, nil
}

// CheckoutOrphan switches the worktree onto a new orphan branch and clears
// the inherited index and tree, leaving an empty staging area.
func (w *Worktree) CheckoutOrphan(ctx context.Context, branch string) error {
	if _, err := run(ctx, w.path, "checkout", "--orphan", branch); err != nil {
		return err
	}

	// Inherited files are staged after --orphan; rm may legitimately find
	// nothing when the source tree was empty.
	cmd := exec.CommandContext(ctx, "git", "rm", "-rf", "-q", ".")
	cmd.Dir = w.path
	_ = cmd.Run()

	w.branch = branch
	return nil
}

// Path returns the filesystem path of the worktree.
func (w *Worktree) Path() string {
	return w.path
}

// Branch returns the branch this worktree has checked out.
func (w *Worktree) Branch() string {
	return w.branch
}

// Remove unregisters and deletes the worktree. Errors from git are
// downgraded to a manual directory removal plus prune, so cleanup succeeds
// even when the worktree is already half-gone.
func (w *Worktree) Remove(ctx context.Context) error {
	if _, err := run(ctx, w.repo.root, "worktree", "remove", "--force", w.path); err != nil {
		if removeErr := os.RemoveAll(w.path); removeErr != nil {
			return fmt.Errorf("failed to remove worktree: %w (git error: %v)", removeErr, err)
		}
		_, _ = run(ctx, w.repo.root, "worktree", "prune")
	}
	return nil
}

// HasChanges reports whether the worktree has uncommitted changes.
func (w *Worktree) HasChanges(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = w.path

	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}

	return len(strings.TrimSpace(string(output))) > 0, nil
}

// AddAll stages every change in the worktree.
func (w *Worktree) AddAll(ctx context.Context) error {
	_, err := run(ctx, w.path, "add", "-A")
	return err
}

// Commit creates a commit in the worktree.
func (w *Worktree) Commit(ctx context.Context, message string) error {
	if message == "" {
		return fmt.Errorf("commit message is required")
	}
	_, err := run(ctx, w.path, "commit", "-m", message)
	return err
}

// Push pushes the worktree's branch to origin. Returns an error on any
// non-zero exit; callers in disconnected workflows treat this as
// best-effort.
func (w *Worktree) Push(ctx context.Context) error {
	_, err := run(ctx, w.path, "push", "origin", w.branch)
	return err
}

// ListWorktrees returns the paths of all worktrees registered against the
// repository, including the primary checkout.
func (r *Repo) ListWorktrees(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "worktree", "list", "--porcelain")
	cmd.Dir = r.root

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			p := strings.TrimSpace(strings.TrimPrefix(line, "worktree "))
			paths = append(paths, filepath.Clean(p))
		}
	}

	return paths, nil
}
