package db

import (
	"fmt"

	"github.com/google/uuid"
)

// CreateAssessment inserts a futures assessment.
func (db *DB) CreateAssessment(a *Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt == "" {
		a.CreatedAt = NowISO()
	}

	_, err := db.conn.Exec(
		`INSERT INTO assessments
		(id, checkpoint_id, verdict, impact_summary, roadmap_alignment,
		 tidy_suggestion, diff_summary, model_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CheckpointID, a.Verdict, a.ImpactSummary, a.RoadmapAlignment,
		a.TidySuggestion, a.DiffSummary, a.ModelName, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

// ListAssessments returns assessments newest first, optionally filtered by
// verdict.
func (db *DB) ListAssessments(verdict string, limit int) ([]*Assessment, error) {
	query := `SELECT id, checkpoint_id, verdict, impact_summary, roadmap_alignment,
			tidy_suggestion, diff_summary, model_name, feedback, feedback_reason, created_at
		FROM assessments`
	var args []any
	if verdict != "" {
		query += " WHERE verdict = ?"
		args = append(args, verdict)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var assessments []*Assessment
	for rows.Next() {
		var a Assessment
		err := rows.Scan(
			&a.ID, &a.CheckpointID, &a.Verdict, &a.ImpactSummary, &a.RoadmapAlignment,
			&a.TidySuggestion, &a.DiffSummary, &a.ModelName, &a.Feedback,
			&a.FeedbackReason, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		assessments = append(assessments, &a)
	}
	return assessments, rows.Err()
}

// AddAssessmentFeedback records agree/disagree feedback on an assessment.
func (db *DB) AddAssessmentFeedback(id, feedback, reason string) error {
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}

	res, err := db.conn.Exec(
		"UPDATE assessments SET feedback = ?, feedback_reason = ? WHERE id = ? OR id LIKE ?",
		feedback, reasonArg, id, id+"%")
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("assessment not found: %s", id)
	}
	return nil
}
