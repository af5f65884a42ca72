package repository

import (
	"context"

	"github.com/user/jobscraper-service/internal/entity"
)

// JobRecordRepository stores the dataset produced by a run.
type JobRecordRepository interface {
	// SaveAll stores the records of a run, replacing rows with the same job id.
	SaveAll(ctx context.Context, runID string, records []entity.JobRecord) error
	// FindByRun returns a run's records in extraction order.
	FindByRun(ctx context.Context, runID string) ([]entity.JobRecord, error)
}
