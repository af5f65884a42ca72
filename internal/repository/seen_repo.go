package repository

import (
	"context"
	"time"

	"github.com/user/jobscraper-service/internal/entity"
)

// SeenRepository remembers job ids extracted by earlier runs.
type SeenRepository interface {
	// MarkSeen marks job ids as extracted with a specific expiry time.
	MarkSeen(ctx context.Context, ids []entity.JobID, expiry time.Duration) error
	// FilterUnseen returns the ids not marked as seen, preserving order.
	FilterUnseen(ctx context.Context, ids []entity.JobID) ([]entity.JobID, error)
}
