package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teslamint/entirecontext/internal/daemon"
)

var watchForeground bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch this repository and sync automatically",
	Long: `Run the auto-sync daemon: watch the context database for writes and
export to the shadow branch whenever the cooldown allows.

Normally started detached via 'ec worker launch'; use --foreground to
log to stderr instead of the rolling log file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		cfg := daemon.DefaultConfig(repoPath)
		if watchForeground {
			cfg.Logger = daemon.NewStderrLogger()
		}

		d, err := daemon.NewWithConfig(repoPath, cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return d.Start(ctx)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchForeground, "foreground", false,
		"log to stderr instead of the log file")
	rootCmd.AddCommand(watchCmd)
}
