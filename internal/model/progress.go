package model

// Progress phase names, in emission order. Terminal events use
// PhaseComplete or PhaseError.
const (
	PhaseAutoFill   = "autofill"
	PhaseReputation = "reputation"
	PhaseProfile    = "profile"
	PhaseContact    = "contact"
	PhaseResearch   = "research"
	PhaseSocial     = "social"
	PhaseInsight    = "insight"
	PhaseSync       = "sync"
	PhaseComplete   = "complete"
	PhaseError      = "error"
)

// ProgressEvent is one step of incremental progress streamed to a caller
// while an enrichment attempt is in flight. Events are ephemeral and are
// never persisted.
type ProgressEvent struct {
	Phase   string         `json:"phase"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Terminal reports whether this event ends the stream.
func (e ProgressEvent) Terminal() bool {
	return e.Phase == PhaseComplete || e.Phase == PhaseError
}
