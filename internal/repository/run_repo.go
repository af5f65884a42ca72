package repository

import (
	"context"

	"github.com/user/jobscraper-service/internal/entity"
)

// RunRepository stores finished runs and their logs.
type RunRepository interface {
	// Save creates or updates the run summary and appends its log.
	Save(ctx context.Context, snap *entity.RunSnapshot, log []entity.LogEntry) error
	// FindByID returns a stored run summary with its log tail; ErrNotFound if unknown.
	FindByID(ctx context.Context, runID string, tail int) (*entity.RunSnapshot, error)
}
