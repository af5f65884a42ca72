package entity

import "time"

// Phase is the pipeline controller state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseExtracting Phase = "extracting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Failure reasons recorded on a failed run.
const (
	ReasonCancelled         = "cancelled"
	ReasonSessionLost       = "session_lost"
	ReasonCollectionAborted = "collection_aborted"
	ReasonNoJobsFound       = "no_jobs_found"
)

// RunSnapshot is a read-only copy of a run's state, safe to hand to pollers.
type RunSnapshot struct {
	RunID          string      `json:"run_id"`
	Phase          Phase       `json:"phase"`
	FailureReason  string      `json:"failure_reason,omitempty"`
	CollectedCount int         `json:"collected_count"`
	ExtractedCount int         `json:"extracted_count"`
	FailedCount    int         `json:"failed_count"`
	LogTail        []LogEntry  `json:"log_tail"`
	Spec           SearchSpec  `json:"spec"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
	Records        []JobRecord `json:"-"`
}
