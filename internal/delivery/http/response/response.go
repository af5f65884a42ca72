package response

import (
	"time"

	"github.com/user/jobscraper-service/internal/entity"
)

type StartRunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// RunStatusResponse is the polling view of a run.
type RunStatusResponse struct {
	RunID          string            `json:"run_id"`
	Phase          entity.Phase      `json:"phase"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	CollectedCount int               `json:"collected_count"`
	ExtractedCount int               `json:"extracted_count"`
	FailedCount    int               `json:"failed_count"`
	LogTail        []entity.LogEntry `json:"log_tail"`
	Spec           entity.SearchSpec `json:"spec"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
}

type JobsResponse struct {
	RunID string             `json:"run_id"`
	Count int                `json:"count"`
	Jobs  []entity.JobRecord `json:"jobs"`
}

type ActionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewRunStatus maps a snapshot onto the response DTO.
func NewRunStatus(s *entity.RunSnapshot) RunStatusResponse {
	logTail := s.LogTail
	if logTail == nil {
		logTail = []entity.LogEntry{}
	}
	return RunStatusResponse{
		RunID:          s.RunID,
		Phase:          s.Phase,
		FailureReason:  s.FailureReason,
		CollectedCount: s.CollectedCount,
		ExtractedCount: s.ExtractedCount,
		FailedCount:    s.FailedCount,
		LogTail:        logTail,
		Spec:           s.Spec,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
	}
}
