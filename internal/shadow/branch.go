package shadow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/teslamint/entirecontext/internal/git"
)

// Branch is the orphan branch holding the replicated log.
const Branch = "entirecontext/checkpoints/v1"

// BranchExists reports whether the local shadow branch exists. Never
// touches the network.
func BranchExists(repoPath string) bool {
	repo, err := git.Open(repoPath)
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), git.QuickTimeout)
	defer cancel()
	return repo.BranchExists(ctx, Branch)
}

// EnsureBranch creates the shadow branch if it does not exist: an orphan
// checkout seeded with an empty manifest and record directories. All work
// happens inside a disposable detached worktree so the caller's primary
// checkout and index are never disturbed.
func EnsureBranch(repoPath string) error {
	repo, err := git.Open(repoPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), git.LocalTimeout)
	defer cancel()

	if repo.BranchExists(ctx, Branch) {
		return nil
	}

	wt, err := repo.AddDetachedWorktree(ctx, "ec-init-")
	if err != nil {
		return fmt.Errorf("failed to create init worktree: %w", err)
	}
	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), git.QuickTimeout)
		defer cleanupCancel()
		_ = wt.Remove(cleanupCtx)
	}()

	if err := wt.CheckoutOrphan(ctx, Branch); err != nil {
		return err
	}

	if err := NewManifest().Save(wt.Path()); err != nil {
		return err
	}
	for _, dir := range []string{"sessions", "checkpoints"} {
		if err := os.MkdirAll(filepath.Join(wt.Path(), dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	if err := wt.AddAll(ctx); err != nil {
		return err
	}
	if err := wt.Commit(ctx, "Initialize EntireContext shadow branch"); err != nil {
		return err
	}

	return nil
}

// WithWorktree runs fn inside a scoped worktree checked out on the shadow
// branch. The worktree is unconditionally removed afterwards, including on
// error; worktree leakage on crash is the failure mode this guards.
func WithWorktree(repoPath, prefix string, fn func(wt *git.Worktree) error) error {
	repo, err := git.Open(repoPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), git.LocalTimeout)
	defer cancel()

	wt, err := repo.AddWorktree(ctx, prefix, Branch)
	if err != nil {
		return fmt.Errorf("failed to create worktree: %w", err)
	}
	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), git.QuickTimeout)
		defer cleanupCancel()
		_ = wt.Remove(cleanupCtx)
	}()

	return fn(wt)
}
