// Package futures assesses code changes against the project roadmap.
//
// An assessment asks a model one structured question about a diff: does
// this change expand the project's future option space, narrow it, or
// leave it neutral? Verdicts are stored alongside the checkpoint they
// describe so later feedback can calibrate the prompt.
package futures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/teslamint/entirecontext/internal/config"
	"github.com/teslamint/entirecontext/internal/db"
	"github.com/teslamint/entirecontext/internal/git"
)

// Verdict values. Anything else from the model is coerced to neutral.
const (
	VerdictExpand  = "expand"
	VerdictNarrow  = "narrow"
	VerdictNeutral = "neutral"
)

// ErrEmptyDiff indicates there was nothing to assess.
var ErrEmptyDiff = errors.New("nothing to assess: diff is empty")

// maxDiffBytes caps how much diff text is sent per assessment. Oversized
// diffs are truncated from the tail; the head carries the file headers the
// verdict mostly hinges on.
const maxDiffBytes = 48 * 1024

const systemPrompt = `You assess code changes for a software project.
Given a roadmap and a diff, judge whether the change expands the project's
future option space, narrows it, or is neutral. Favor "narrow" for changes
that hard-code assumptions, couple unrelated modules, or foreclose items on
the roadmap. Respond with a single JSON object and nothing else:
{"verdict": "expand"|"narrow"|"neutral", "impact_summary": "...",
"roadmap_alignment": "...", "tidy_suggestion": "..."}
tidy_suggestion names one small structural cleanup that would make the
change easier to build on, or is empty.`

// Assessor runs roadmap assessments through the configured model.
type Assessor struct {
	client anthropic.Client
	model  string
}

// NewAssessor builds an assessor from the futures configuration. The API
// key is read from the environment by the SDK.
func NewAssessor(cfg *config.Config) *Assessor {
	return &Assessor{
		client: anthropic.NewClient(),
		model:  cfg.Futures.Model,
	}
}

// result mirrors the JSON object the model is instructed to return.
type result struct {
	Verdict          string `json:"verdict"`
	ImpactSummary    string `json:"impact_summary"`
	RoadmapAlignment string `json:"roadmap_alignment"`
	TidySuggestion   string `json:"tidy_suggestion"`
}

// AssessDiff runs one assessment over diff text and returns an unstored
// assessment row.
func (a *Assessor) AssessDiff(ctx context.Context, diff, roadmap string) (*db.Assessment, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, ErrEmptyDiff
	}
	if len(diff) > maxDiffBytes {
		diff = diff[:maxDiffBytes] + "\n... (truncated)"
	}
	if roadmap == "" {
		roadmap = "(no roadmap file found)"
	}

	prompt := fmt.Sprintf("ROADMAP:\n%s\n\nDIFF:\n%s", roadmap, diff)

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("assessment request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		text.WriteString(block.Text)
	}

	parsed, err := parseResult(text.String())
	if err != nil {
		return nil, err
	}

	summary := summarizeDiff(diff)
	assessment := &db.Assessment{
		ID:          uuid.NewString(),
		Verdict:     parsed.Verdict,
		DiffSummary: &summary,
		ModelName:   &a.model,
		CreatedAt:   db.NowISO(),
	}
	if parsed.ImpactSummary != "" {
		assessment.ImpactSummary = &parsed.ImpactSummary
	}
	if parsed.RoadmapAlignment != "" {
		assessment.RoadmapAlignment = &parsed.RoadmapAlignment
	}
	if parsed.TidySuggestion != "" {
		assessment.TidySuggestion = &parsed.TidySuggestion
	}
	return assessment, nil
}

// parseResult extracts the JSON verdict from model output, tolerating
// surrounding prose or a markdown fence.
func parseResult(text string) (*result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("assessment response contained no JSON object")
	}

	var r result
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("failed to decode assessment response: %w", err)
	}

	switch r.Verdict {
	case VerdictExpand, VerdictNarrow, VerdictNeutral:
	default:
		r.Verdict = VerdictNeutral
	}
	return &r, nil
}

// summarizeDiff reduces a diff to its file headers plus a size line, which
// is what gets persisted with the verdict.
func summarizeDiff(diff string) string {
	var files []string
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			files = append(files, strings.TrimPrefix(line, "+++ b/"))
		}
	}
	if len(files) == 0 {
		return fmt.Sprintf("%d bytes", len(diff))
	}
	return fmt.Sprintf("%s (%d bytes)", strings.Join(files, ", "), len(diff))
}

// LoadRoadmap reads the configured roadmap file from the repository root.
// A missing roadmap is not an error; the assessment just runs without one.
func LoadRoadmap(repoPath string, cfg *config.Config) string {
	data, err := os.ReadFile(filepath.Join(repoPath, cfg.Futures.Roadmap))
	if err != nil {
		return ""
	}
	return string(data)
}

// AssessStaged assesses the currently staged changes and stores the
// verdict.
func AssessStaged(repoPath string) (*db.Assessment, error) {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(repoPath)
	if err != nil {
		return nil, err
	}

	diffCtx, cancel := context.WithTimeout(context.Background(), git.LocalTimeout)
	diff, err := repo.StagedDiff(diffCtx)
	cancel()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	assessment, err := NewAssessor(cfg).AssessDiff(ctx, diff, LoadRoadmap(repoPath, cfg))
	if err != nil {
		return nil, err
	}
	return assessment, store(repoPath, assessment)
}

// AssessCheckpoint assesses the stored diff summary of a checkpoint
// (matched by ID prefix) and links the verdict to it.
func AssessCheckpoint(repoPath, checkpointPrefix string) (*db.Assessment, error) {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return nil, err
	}

	d, err := db.OpenRepo(repoPath)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	if err := d.InitSchema(); err != nil {
		return nil, err
	}

	checkpoint, err := d.GetCheckpointByPrefix(checkpointPrefix)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, fmt.Errorf("no checkpoint matches %q", checkpointPrefix)
	}

	diff := ""
	if checkpoint.DiffSummary != nil {
		diff = *checkpoint.DiffSummary
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	assessment, err := NewAssessor(cfg).AssessDiff(ctx, diff, LoadRoadmap(repoPath, cfg))
	if err != nil {
		return nil, err
	}
	assessment.CheckpointID = &checkpoint.ID

	return assessment, d.CreateAssessment(assessment)
}

func store(repoPath string, a *db.Assessment) error {
	d, err := db.OpenRepo(repoPath)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.InitSchema(); err != nil {
		return err
	}
	return d.CreateAssessment(a)
}
