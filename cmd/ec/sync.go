package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/teslamint/entirecontext/internal/federation"
	ecsync "github.com/teslamint/entirecontext/internal/sync"
	"github.com/teslamint/entirecontext/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Export local context to the shadow branch",
	Long: `Run one export cycle: serialize sessions and checkpoints newer than
the export watermark onto the shadow branch, commit, and push when a
remote is configured.

Only one sync runs per repository at a time; a cycle that finds the lock
held by a live process skips quietly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := ecsync.RunSync(repoPath)
		if errors.Is(err, ecsync.ErrLocked) {
			fmt.Printf("%s Sync already in progress, skipping\n", ui.RenderWarn("⚠"))
			return nil
		}
		if err != nil {
			return err
		}

		if !result.Committed {
			fmt.Printf("%s Nothing new to sync\n", ui.RenderDim("·"))
			return nil
		}

		fmt.Printf("%s Synced in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Sessions: %d\n", result.ExportedSessions)
		fmt.Printf("   Checkpoints: %d\n", result.ExportedCheckpoints)
		if result.Pushed {
			fmt.Printf("   Pushed to origin\n")
		}

		// Refresh the registry counts so cross-repo listings stay honest.
		_ = federation.RefreshCounts(repoPath)
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import context from the shadow branch",
	Long: `Fetch the shadow branch and import any sessions or checkpoints this
repository's database has not seen. Records are immutable, so repeated
pulls are idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		result, err := ecsync.RunPull(repoPath)
		if errors.Is(err, ecsync.ErrLocked) {
			fmt.Printf("%s Sync already in progress, skipping\n", ui.RenderWarn("⚠"))
			return nil
		}
		if errors.Is(err, ecsync.ErrNoShadowBranch) {
			fmt.Printf("%s No shadow branch yet; run 'ec sync' first\n", ui.RenderWarn("⚠"))
			return nil
		}
		if err != nil {
			return err
		}

		if result.ImportedSessions == 0 && result.ImportedCheckpoints == 0 {
			fmt.Printf("%s Already up to date\n", ui.RenderPass("✓"))
			return nil
		}

		fmt.Printf("%s Imported %d sessions, %d checkpoints\n",
			ui.RenderPass("✓"), result.ImportedSessions, result.ImportedCheckpoints)

		_ = federation.RefreshCounts(repoPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pullCmd)
}
