package model

import "time"

// AttemptStatus represents the state of a single enrichment attempt.
type AttemptStatus string

const (
	AttemptStatusRunning   AttemptStatus = "running"
	AttemptStatusCompleted AttemptStatus = "completed"
	AttemptStatusFailed    AttemptStatus = "failed"
)

// PhaseStatus represents the outcome of an orchestrator phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// Attempt is one enrichment run for a record. A record may accumulate
// several attempts through explicit re-enrichment; each is metered once.
type Attempt struct {
	ID          string        `json:"id"`
	RecordID    string        `json:"record_id"`
	AccountID   string        `json:"account_id"`
	Status      AttemptStatus `json:"status"`
	UsedPremium bool          `json:"used_premium"`
	CostUSD     float64       `json:"cost_usd"`
	Error       string        `json:"error,omitempty"`
	Phases      []PhaseResult `json:"phases,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PhaseResult records the outcome of a single phase within an attempt.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
