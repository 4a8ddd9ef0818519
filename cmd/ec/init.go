package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/teslamint/entirecontext/internal/db"
	"github.com/teslamint/entirecontext/internal/registry"
	"github.com/teslamint/entirecontext/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize context capture for this repository",
	Long: `Create the .entirecontext directory, initialize the local context
database, and register this repository in the global index so cross-repo
queries can find it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		d, err := db.OpenRepo(repoPath)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.InitSchema(); err != nil {
			return err
		}

		repoName := filepath.Base(repoPath)
		if _, err := d.GetOrCreateProject(repoName, repoPath); err != nil {
			return err
		}

		reg, err := registry.OpenDefault()
		if err != nil {
			return err
		}
		defer reg.Close()

		if err := reg.Register(repoPath, repoName, d.DBPath()); err != nil {
			return err
		}

		fmt.Printf("%s Initialized context capture for %s\n", ui.RenderPass("✓"), repoName)
		fmt.Printf("   Database: %s\n", d.DBPath())

		sessions, _ := d.CountSessions()
		checkpoints, _ := d.CountCheckpoints()
		if sessions > 0 || checkpoints > 0 {
			fmt.Printf("   Existing data: %d sessions, %d checkpoints\n", sessions, checkpoints)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
