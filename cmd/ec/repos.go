package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teslamint/entirecontext/internal/federation"
	"github.com/teslamint/entirecontext/internal/ui"
)

var (
	reposFilter []string
	reposLimit  int
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Query context across registered repositories",
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := federation.ListRepos(reposFilter)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Printf("%s No repositories registered; run 'ec init' inside one\n",
				ui.RenderWarn("⚠"))
			return nil
		}

		fmt.Printf("%s\n", ui.RenderBold(fmt.Sprintf("%d registered repositories:", len(entries))))
		for _, e := range entries {
			fmt.Printf("  %s  %s\n", ui.RenderAccent(e.RepoName), ui.RenderDim(e.RepoPath))
			fmt.Printf("     %d sessions, %d turns\n", e.SessionCount, e.TurnCount)
		}
		return nil
	},
}

var reposSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent sessions across repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, warnings, err := federation.CrossRepoSessions(reposFilter, reposLimit)
		if err != nil {
			return err
		}
		printWarnings(warnings)

		if len(results) == 0 {
			fmt.Printf("%s No sessions found\n", ui.RenderDim("·"))
			return nil
		}

		for _, r := range results {
			title := "(untitled)"
			if r.Session.SessionTitle != nil {
				title = *r.Session.SessionTitle
			}
			fmt.Printf("%s %s  %s\n",
				ui.RenderAccent(fmt.Sprintf("[%s]", r.RepoName)),
				ui.RenderDim(shortID(r.Session.ID)), title)
			fmt.Printf("   %s, %d turns\n", r.Session.StartedAt, r.Session.TotalTurns)
		}
		return nil
	},
}

var reposSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search turn text across repositories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, warnings, err := federation.CrossRepoSearch(args[0], reposFilter, reposLimit)
		if err != nil {
			return err
		}
		printWarnings(warnings)

		if len(results) == 0 {
			fmt.Printf("%s No matches\n", ui.RenderDim("·"))
			return nil
		}

		for _, r := range results {
			fmt.Printf("%s %s  %s\n",
				ui.RenderAccent(fmt.Sprintf("[%s]", r.RepoName)),
				ui.RenderDim(r.Turn.Timestamp), snippet(r.Turn.UserMessage))
		}
		return nil
	},
}

// printWarnings surfaces per-repo failures without failing the command.
func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn("⚠"), w)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func snippet(s *string) string {
	if s == nil {
		return "(no message)"
	}
	text := strings.Join(strings.Fields(*s), " ")
	if len(text) > 80 {
		return text[:80] + "…"
	}
	return text
}

func init() {
	reposCmd.PersistentFlags().StringSliceVar(&reposFilter, "repo", nil,
		"limit to the named repositories (repeatable)")
	reposCmd.PersistentFlags().IntVar(&reposLimit, "limit", 20,
		"maximum results to show")

	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposSessionsCmd)
	reposCmd.AddCommand(reposSearchCmd)
	rootCmd.AddCommand(reposCmd)
}
