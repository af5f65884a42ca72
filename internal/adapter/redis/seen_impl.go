package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/jobscraper-service/internal/entity"
)

const seenJobPrefix = "jobscraper:seen:"

// SeenRepoImpl provides a concrete implementation for the SeenRepository interface using Redis.
type SeenRepoImpl struct {
	client *redis.Client
}

// NewSeenRepo creates a new instance of SeenRepoImpl.
func NewSeenRepo(client *redis.Client) *SeenRepoImpl {
	return &SeenRepoImpl{client: client}
}

func seenKey(id entity.JobID) string {
	return seenJobPrefix + string(id)
}

// MarkSeen sets one expiring key per job id in a single round trip.
func (r *SeenRepoImpl) MarkSeen(ctx context.Context, ids []entity.JobID, expiry time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Set(ctx, seenKey(id), "1", expiry)
		}
		return nil
	})
	return err
}

// FilterUnseen returns the ids without a live key, preserving order.
func (r *SeenRepoImpl) FilterUnseen(ctx context.Context, ids []entity.JobID) ([]entity.JobID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.IntCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Exists(ctx, seenKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	unseen := make([]entity.JobID, 0, len(ids))
	for i, cmd := range cmds {
		// EXISTS returns 1 if the key exists, 0 otherwise.
		if cmd.Val() == 0 {
			unseen = append(unseen, ids[i])
		}
	}
	return unseen, nil
}

// Ping checks the connection for health reporting.
func (r *SeenRepoImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
