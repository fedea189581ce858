package model

import "time"

// RunStatus represents the state of an extraction run in the run ledger.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one pipeline execution for a source URL.
type Run struct {
	ID           string    `json:"id"`
	SourceURL    string    `json:"source_url"`
	CacheKey     string    `json:"cache_key"`
	Status       RunStatus `json:"status"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	Cached       bool      `json:"cached"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RunOutcome is the final state written to a run when it finishes.
type RunOutcome struct {
	Status       RunStatus
	ErrorCode    string
	ErrorMessage string
	Strategy     string
	Cached       bool
	Duration     time.Duration
}
