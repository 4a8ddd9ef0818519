package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teslamint/entirecontext/internal/ui"
	"github.com/teslamint/entirecontext/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Manage the background sync worker",
	Long: `The worker is a detached 'ec watch' process that syncs this
repository in the background. Its PID is tracked in
.entirecontext/worker.pid.`,
}

var workerLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch the background worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		if status := worker.GetStatus(repoPath); status.Running {
			fmt.Printf("%s Worker already running (pid %d)\n",
				ui.RenderWarn("⚠"), status.PID)
			return nil
		}

		exe, err := os.Executable()
		if err != nil {
			return err
		}

		pid, err := worker.Launch(repoPath, []string{exe, "watch"})
		if err != nil {
			return err
		}

		fmt.Printf("%s Worker launched (pid %d)\n", ui.RenderPass("✓"), pid)
		return nil
	},
}

var workerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show background worker status",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		status := worker.GetStatus(repoPath)
		switch {
		case status.Running:
			fmt.Printf("%s Worker running (pid %d)\n", ui.RenderPass("✓"), status.PID)
		case status.Stale:
			fmt.Printf("%s Worker pid %d is dead (stale sentinel)\n",
				ui.RenderWarn("⚠"), status.PID)
		default:
			fmt.Printf("%s No worker\n", ui.RenderDim("·"))
		}
		return nil
	},
}

var workerStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		outcome, err := worker.Stop(repoPath)
		if err != nil {
			return err
		}

		switch outcome {
		case worker.StopKilled:
			fmt.Printf("%s Worker stopped\n", ui.RenderPass("✓"))
		case worker.StopStale:
			fmt.Printf("%s Worker was already gone; cleaned up sentinel\n",
				ui.RenderWarn("⚠"))
		default:
			fmt.Printf("%s No worker to stop\n", ui.RenderDim("·"))
		}
		return nil
	},
}

func init() {
	workerCmd.AddCommand(workerLaunchCmd)
	workerCmd.AddCommand(workerStatusCmd)
	workerCmd.AddCommand(workerStopCmd)
	rootCmd.AddCommand(workerCmd)
}
