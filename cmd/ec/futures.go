package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teslamint/entirecontext/internal/db"
	"github.com/teslamint/entirecontext/internal/futures"
	"github.com/teslamint/entirecontext/internal/ui"
)

var (
	assessCheckpoint string
	futuresVerdict   string
	futuresLimit     int
	feedbackReason   string
)

var futuresCmd = &cobra.Command{
	Use:   "futures",
	Short: "Assess changes against the project roadmap",
	Long: `Ask the configured model whether a change expands the project's
future option space, narrows it, or is neutral. Verdicts are stored in
the local context database.

Requires ANTHROPIC_API_KEY in the environment.`,
}

var futuresAssessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess the staged diff (or a checkpoint's diff)",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		var assessment *db.Assessment
		if assessCheckpoint != "" {
			assessment, err = futures.AssessCheckpoint(repoPath, assessCheckpoint)
		} else {
			assessment, err = futures.AssessStaged(repoPath)
		}
		if err != nil {
			return err
		}

		printAssessment(assessment)
		return nil
	},
}

var futuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored assessments",
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

		assessments, err := d.ListAssessments(futuresVerdict, futuresLimit)
		if err != nil {
			return err
		}
		if len(assessments) == 0 {
			fmt.Printf("%s No assessments yet\n", ui.RenderDim("·"))
			return nil
		}

		for _, a := range assessments {
			fmt.Printf("%s %s %s\n", ui.RenderDim(shortID(a.ID)),
				renderVerdict(a.Verdict), ui.RenderDim(a.CreatedAt))
			if a.ImpactSummary != nil {
				fmt.Printf("   %s\n", *a.ImpactSummary)
			}
			if a.Feedback != nil {
				fmt.Printf("   feedback: %s\n", *a.Feedback)
			}
		}
		return nil
	},
}

var futuresFeedbackCmd = &cobra.Command{
	Use:   "feedback <assessment-id> <agree|disagree>",
	Short: "Record agreement or disagreement with a verdict",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[1] != "agree" && args[1] != "disagree" {
			return fmt.Errorf("feedback must be 'agree' or 'disagree'")
		}

		repoPath, err := currentRepo()
		if err != nil {
			return err
		}

		d, err := db.OpenRepo(repoPath)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.AddAssessmentFeedback(args[0], args[1], feedbackReason); err != nil {
			return err
		}

		fmt.Printf("%s Feedback recorded\n", ui.RenderPass("✓"))
		return nil
	},
}

func printAssessment(a *db.Assessment) {
	fmt.Printf("%s %s\n", ui.RenderBold("Verdict:"), renderVerdict(a.Verdict))
	if a.ImpactSummary != nil {
		fmt.Printf("%s %s\n", ui.RenderBold("Impact:"), *a.ImpactSummary)
	}
	if a.RoadmapAlignment != nil {
		fmt.Printf("%s %s\n", ui.RenderBold("Roadmap:"), *a.RoadmapAlignment)
	}
	if a.TidySuggestion != nil {
		fmt.Printf("%s %s\n", ui.RenderBold("Tidy first:"), *a.TidySuggestion)
	}
	fmt.Printf("%s\n", ui.RenderDim("id: "+shortID(a.ID)))
}

func renderVerdict(v string) string {
	switch v {
	case futures.VerdictExpand:
		return ui.RenderPass(v)
	case futures.VerdictNarrow:
		return ui.RenderFail(v)
	default:
		return ui.RenderDim(v)
	}
}

func init() {
	futuresAssessCmd.Flags().StringVar(&assessCheckpoint, "checkpoint", "",
		"assess a stored checkpoint (ID prefix) instead of the staged diff")
	futuresListCmd.Flags().StringVar(&futuresVerdict, "verdict", "",
		"filter by verdict (expand, narrow, neutral)")
	futuresListCmd.Flags().IntVar(&futuresLimit, "limit", 20, "maximum results")
	futuresFeedbackCmd.Flags().StringVar(&feedbackReason, "reason", "",
		"why the verdict was right or wrong")

	futuresCmd.AddCommand(futuresAssessCmd)
	futuresCmd.AddCommand(futuresListCmd)
	futuresCmd.AddCommand(futuresFeedbackCmd)
	rootCmd.AddCommand(futuresCmd)
}
