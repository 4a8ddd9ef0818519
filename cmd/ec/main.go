// Command ec captures and federates coding-assistant session context.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teslamint/entirecontext/internal/git"
)

var rootCmd = &cobra.Command{
	Use:   "ec",
	Short: "Local-first context capture for coding sessions",
	Long: `EntireContext records coding-assistant sessions in a per-repository
SQLite database and syncs them through a shadow git branch, so context
travels with the repository and can be queried across every registered
repository on this machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// currentRepo resolves the repository containing the working directory.
func currentRepo() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	repo, err := git.Open(cwd)
	if err != nil {
		return "", fmt.Errorf("not inside a git repository")
	}
	return repo.Root(), nil
}
