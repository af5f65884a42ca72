package usecase

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer spaces out requests against the target site. It is advisory: it
// lowers the request rate, it does not guarantee the session stays unblocked.
type Pacer interface {
	// Wait blocks for the next pacing interval or until ctx is done.
	Wait(ctx context.Context) error
}

// JitterPacer waits a uniformly random duration in [Min, Max].
type JitterPacer struct {
	Min time.Duration
	Max time.Duration
}

// NewJitterPacer returns a pacer for the given range. A zero range never waits.
func NewJitterPacer(min, max time.Duration) *JitterPacer {
	if max < min {
		max = min
	}
	return &JitterPacer{Min: min, Max: max}
}

func (p *JitterPacer) Wait(ctx context.Context) error {
	return sleepCtx(ctx, p.next())
}

func (p *JitterPacer) next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + rand.N(p.Max-p.Min+1)
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
