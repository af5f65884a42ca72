package entity

import "time"

// LogKind classifies a run log entry. The non-progress kinds mirror the
// pipeline's error taxonomy.
type LogKind string

const (
	LogProgress             LogKind = "progress"
	LogNavigationError      LogKind = "navigation_error"
	LogVerificationRequired LogKind = "verification_required"
	LogPageSkipped          LogKind = "page_skipped"
	LogCollectionAborted    LogKind = "collection_aborted"
	LogNoJobsFound          LogKind = "no_jobs_found"
	LogExtractionError      LogKind = "extraction_error"
	LogCancelled            LogKind = "cancelled"
	LogSessionLost          LogKind = "session_lost"
)

// LogLevel is the severity of a run log entry.
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is one line of a run log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   LogLevel  `json:"level"`
	Kind    LogKind   `json:"kind"`
	JobID   JobID     `json:"job_id,omitempty"`
	Message string    `json:"message"`
}
