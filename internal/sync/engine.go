package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/teslamint/entirecontext/internal/config"
	"github.com/teslamint/entirecontext/internal/db"
	"github.com/teslamint/entirecontext/internal/git"
	"github.com/teslamint/entirecontext/internal/shadow"
)

// ErrNoShadowBranch indicates an import was requested before any export
// ever created the shadow branch.
var ErrNoShadowBranch = errors.New("no shadow branch")

// ExportResult summarizes one export cycle.
type ExportResult struct {
	ExportedSessions    int
	ExportedCheckpoints int
	Committed           bool
	Pushed              bool
	DurationMS          int64
}

// ImportResult summarizes one import cycle.
type ImportResult struct {
	ImportedSessions    int
	ImportedCheckpoints int
}

// PerformExport runs one export cycle: ensure the shadow branch, serialize
// every session/checkpoint newer than the watermark into a scoped worktree,
// rewrite the manifest additively, commit, and push best-effort.
//
// The watermark advances only after a clean cycle, so a failed cycle is
// retried from the same window. The caller holds the sync lock.
func PerformExport(d *db.DB, repoPath string, cfg *config.Config) (*ExportResult, error) {
	start := time.Now()
	result := &ExportResult{}
	finish := func(err error) (*ExportResult, error) {
		result.DurationMS = time.Since(start).Milliseconds()
		if err != nil {
			_ = d.SetSyncError(err.Error())
		}
		return result, err
	}

	if err := shadow.EnsureBranch(repoPath); err != nil {
		return finish(err)
	}

	state, err := d.GetSyncState()
	if err != nil {
		return finish(err)
	}
	since := ""
	if state.LastExportAt != nil {
		since = *state.LastExportAt
	}

	redactor := NewRedactor(cfg.Security)

	err = shadow.WithWorktree(repoPath, "ec-sync-", func(wt *git.Worktree) error {
		if err := exportSessions(d, wt.Path(), since, redactor, result); err != nil {
			return err
		}
		if err := exportCheckpoints(d, wt.Path(), since, redactor, result); err != nil {
			return err
		}

		// The manifest save stamps updated_at, so rewriting it on a cycle
		// that exported nothing would manufacture an empty commit.
		if result.ExportedSessions > 0 || result.ExportedCheckpoints > 0 {
			if err := rewriteManifest(d, wt.Path()); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), git.LocalTimeout)
		defer cancel()

		if err := wt.AddAll(ctx); err != nil {
			return err
		}

		dirty, err := wt.HasChanges(ctx)
		if err != nil {
			return err
		}
		if !dirty {
			return nil // nothing new this cycle, not an error
		}

		msg := fmt.Sprintf("ec sync: %d sessions, %d checkpoints",
			result.ExportedSessions, result.ExportedCheckpoints)
		if err := wt.Commit(ctx, msg); err != nil {
			return err
		}
		result.Committed = true

		if cfg.Sync.PushOnSync {
			pushCtx, pushCancel := context.WithTimeout(context.Background(), git.NetworkTimeout)
			defer pushCancel()
			// Push failure is expected in disconnected workflows.
			result.Pushed = wt.Push(pushCtx) == nil
		}
		return nil
	})
	if err != nil {
		return finish(err)
	}

	result.DurationMS = time.Since(start).Milliseconds()
	if err := d.AdvanceExportWatermark(db.NowISO(), result.DurationMS); err != nil {
		return finish(err)
	}
	return result, nil
}

func exportSessions(d *db.DB, root, since string, redactor *Redactor, result *ExportResult) error {
	sessions, err := d.ListSessionsSince(since)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		rec := &shadow.SessionRecord{
			ID:             s.ID,
			ProjectID:      s.ProjectID,
			SessionType:    s.SessionType,
			StartedAt:      s.StartedAt,
			EndedAt:        s.EndedAt,
			SessionTitle:   redactor.RedactPtr(s.SessionTitle),
			SessionSummary: redactor.RedactPtr(s.SessionSummary),
			TotalTurns:     s.TotalTurns,
		}
		if err := shadow.WriteSessionRecord(root, rec); err != nil {
			return err
		}

		turns, err := d.ListTurns(s.ID)
		if err != nil {
			return err
		}
		lines := make([]string, 0, len(turns))
		for _, t := range turns {
			redacted := *t
			redacted.UserMessage = redactor.RedactPtr(t.UserMessage)
			redacted.AssistantSummary = redactor.RedactPtr(t.AssistantSummary)
			line, err := json.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("failed to encode turn %s: %w", t.ID, err)
			}
			lines = append(lines, string(line))
		}

		// Another machine may have exported turns for this session that the
		// local store never saw. Union by turn id instead of overwriting.
		existing, err := shadow.ReadTranscriptLines(root, s.ID)
		if err != nil {
			return err
		}
		merged := shadow.MergeTranscripts(
			strings.Join(lines, "\n"), strings.Join(existing, "\n"))
		var mergedLines []string
		if merged != "" {
			mergedLines = strings.Split(strings.TrimSpace(merged), "\n")
		}
		if err := shadow.WriteTranscript(root, s.ID, mergedLines); err != nil {
			return err
		}

		result.ExportedSessions++
	}
	return nil
}

func exportCheckpoints(d *db.DB, root, since string, redactor *Redactor, result *ExportResult) error {
	checkpoints, err := d.ListCheckpointsSince(since)
	if err != nil {
		return err
	}

	for _, c := range checkpoints {
		rec := &shadow.CheckpointRecord{
			ID:                 c.ID,
			SessionID:          c.SessionID,
			GitCommitHash:      c.GitCommitHash,
			GitBranch:          c.GitBranch,
			ParentCheckpointID: c.ParentCheckpointID,
			FilesSnapshot:      shadow.EmbedJSON(c.FilesSnapshot),
			DiffSummary:        redactor.RedactPtr(c.DiffSummary),
			CreatedAt:          c.CreatedAt,
			Metadata:           shadow.EmbedJSON(c.Metadata),
		}
		if err := shadow.WriteCheckpointRecord(root, rec); err != nil {
			return err
		}
		result.ExportedCheckpoints++
	}
	return nil
}

// rewriteManifest folds every known session and checkpoint into the
// manifest already on the branch. The merge keeps whichever side has seen
// more of a session, so a stale local store cannot roll entries backwards.
// The manifest only ever grows.
func rewriteManifest(d *db.DB, root string) error {
	local := shadow.NewManifest()

	sessions, err := d.ListSessionsSince("")
	if err != nil {
		return err
	}
	for _, s := range sessions {
		local.AddSession(s.ID, shadow.ManifestSession{
			SessionType: s.SessionType,
			StartedAt:   s.StartedAt,
			TotalTurns:  s.TotalTurns,
		})
	}

	checkpoints, err := d.ListCheckpointsSince("")
	if err != nil {
		return err
	}
	for _, c := range checkpoints {
		local.AddCheckpoint(c.ID, shadow.ManifestCheckpoint{
			SessionID:  c.SessionID,
			CommitHash: c.GitCommitHash,
			CreatedAt:  c.CreatedAt,
		})
	}

	manifest := shadow.LoadManifest(root)
	manifest.Merge(local)
	return manifest.Save(root)
}

// PerformImport runs one import cycle: fetch the shadow branch best-effort,
// then walk its records and insert any the local store has not seen.
// Records are immutable once created, so insert-if-absent keyed by UUID
// makes repeated imports idempotent and conflict-free. Unparseable records
// are skipped by the codec without aborting the batch.
func PerformImport(d *db.DB, repoPath string, cfg *config.Config) (*ImportResult, error) {
	result := &ImportResult{}

	if !shadow.BranchExists(repoPath) {
		return result, ErrNoShadowBranch
	}

	if repo, err := git.Open(repoPath); err == nil {
		fetchCtx, cancel := context.WithTimeout(context.Background(), git.NetworkTimeout)
		// Absence of a remote or an unreachable one is expected.
		_ = repo.Fetch(fetchCtx, shadow.Branch)
		cancel()
	}

	projectID, err := d.GetOrCreateProject(repoName(repoPath), repoPath)
	if err != nil {
		return result, err
	}

	err = shadow.WithWorktree(repoPath, "ec-pull-", func(wt *git.Worktree) error {
		if err := importSessions(d, wt.Path(), projectID, result); err != nil {
			return err
		}
		return importCheckpoints(d, wt.Path(), result)
	})
	if err != nil {
		_ = d.SetSyncError(err.Error())
		return result, err
	}

	// Even a cycle with zero new records refreshes the staleness clock.
	if err := d.AdvanceImportWatermark(db.NowISO()); err != nil {
		return result, err
	}
	return result, nil
}

func importSessions(d *db.DB, root, projectID string, result *ImportResult) error {
	records, err := shadow.ReadSessionRecords(root)
	if err != nil {
		return err
	}

	for _, rec := range records {
		existing, err := d.GetSession(rec.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		// Project ids are per-database; imported sessions always attach to
		// this repo's own project row.
		sessionType := rec.SessionType
		if sessionType == "" {
			sessionType = "claude"
		}
		session := &db.Session{
			ID:             rec.ID,
			ProjectID:      projectID,
			SessionType:    sessionType,
			StartedAt:      rec.StartedAt,
			EndedAt:        rec.EndedAt,
			LastActivityAt: rec.StartedAt,
			SessionTitle:   rec.SessionTitle,
			SessionSummary: rec.SessionSummary,
			TotalTurns:     rec.TotalTurns,
		}
		if err := d.CreateSession(session); err != nil {
			return err
		}
		result.ImportedSessions++
	}
	return nil
}

func importCheckpoints(d *db.DB, root string, result *ImportResult) error {
	records, err := shadow.ReadCheckpointRecords(root)
	if err != nil {
		return err
	}

	// Oldest first so parent checkpoints land before their children.
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt < records[j].CreatedAt
	})

	for _, rec := range records {
		existing, err := d.GetCheckpoint(rec.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		// Imported checkpoints may reference sessions this repo never saw;
		// such orphans are skipped and picked up once their session lands.
		if session, err := d.GetSession(rec.SessionID); err != nil || session == nil {
			continue
		}

		parent := rec.ParentCheckpointID
		if parent != nil {
			if p, err := d.GetCheckpoint(*parent); err != nil || p == nil {
				parent = nil // lineage repaired on a later import
			}
		}

		checkpoint := &db.Checkpoint{
			ID:                 rec.ID,
			SessionID:          rec.SessionID,
			GitCommitHash:      rec.GitCommitHash,
			GitBranch:          rec.GitBranch,
			ParentCheckpointID: parent,
			FilesSnapshot:      rawToText(rec.FilesSnapshot),
			DiffSummary:        rec.DiffSummary,
			CreatedAt:          rec.CreatedAt,
			Metadata:           rawToText(rec.Metadata),
		}
		if err := d.CreateCheckpoint(checkpoint); err != nil {
			return err
		}
		result.ImportedCheckpoints++
	}
	return nil
}

func repoName(repoPath string) string {
	return filepath.Base(filepath.Clean(repoPath))
}

func rawToText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	text := string(raw)
	return &text
}
