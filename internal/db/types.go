package db

// Session is one captured coding-assistant session.
type Session struct {
	ID             string  `json:"id"`
	ProjectID      string  `json:"project_id"`
	AgentID        *string `json:"agent_id,omitempty"`
	SessionType    string  `json:"session_type"`
	WorkspacePath  *string `json:"workspace_path,omitempty"`
	StartedAt      string  `json:"started_at"`
	EndedAt        *string `json:"ended_at,omitempty"`
	LastActivityAt string  `json:"last_activity_at"`
	SessionTitle   *string `json:"session_title,omitempty"`
	SessionSummary *string `json:"session_summary,omitempty"`
	TotalTurns     int     `json:"total_turns"`
	Metadata       *string `json:"metadata,omitempty"`
}

// Turn is one exchange within a session, ordered by TurnNumber.
type Turn struct {
	ID               string  `json:"id"`
	SessionID        string  `json:"session_id"`
	TurnNumber       int     `json:"turn_number"`
	UserMessage      *string `json:"user_message,omitempty"`
	AssistantSummary *string `json:"assistant_summary,omitempty"`
	TurnStatus       *string `json:"turn_status,omitempty"`
	ModelName        *string `json:"model_name,omitempty"`
	GitCommitHash    *string `json:"git_commit_hash,omitempty"`
	FilesTouched     *string `json:"files_touched,omitempty"`
	ToolsUsed        *string `json:"tools_used,omitempty"`
	ContentHash      string  `json:"content_hash"`
	Timestamp        string  `json:"timestamp"`
}

// Checkpoint links a session to a git commit with optional snapshots.
// FilesSnapshot and Metadata hold JSON text as stored.
type Checkpoint struct {
	ID                 string  `json:"id"`
	SessionID          string  `json:"session_id"`
	GitCommitHash      string  `json:"git_commit_hash"`
	GitBranch          *string `json:"git_branch,omitempty"`
	ParentCheckpointID *string `json:"parent_checkpoint_id,omitempty"`
	FilesSnapshot      *string `json:"files_snapshot,omitempty"`
	DiffSummary        *string `json:"diff_summary,omitempty"`
	CreatedAt          string  `json:"created_at"`
	Metadata           *string `json:"metadata,omitempty"`
}

// Assessment is one futures verdict over a diff.
type Assessment struct {
	ID               string  `json:"id"`
	CheckpointID     *string `json:"checkpoint_id,omitempty"`
	Verdict          string  `json:"verdict"`
	ImpactSummary    *string `json:"impact_summary,omitempty"`
	RoadmapAlignment *string `json:"roadmap_alignment,omitempty"`
	TidySuggestion   *string `json:"tidy_suggestion,omitempty"`
	DiffSummary      *string `json:"diff_summary,omitempty"`
	ModelName        *string `json:"model_name,omitempty"`
	Feedback         *string `json:"feedback,omitempty"`
	FeedbackReason   *string `json:"feedback_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// SyncState is the singleton sync_metadata row: the durable lock and
// watermark for one repository.
type SyncState struct {
	LastExportAt       *string
	LastImportAt       *string
	SyncStatus         string
	LastSyncError      *string
	LastSyncDurationMS *int64
	SyncPID            *int
}
