package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/repository"
	"github.com/user/jobscraper-service/pkg/metrics"
	"go.uber.org/zap"
)

// PipelineConfig groups the per-component settings of a run.
type PipelineConfig struct {
	Navigator   NavigatorConfig
	Collector   CollectorConfig
	Extractor   ExtractorConfig
	LogTailSize int
}

// Controller drives one run through
// idle -> collecting -> extracting -> done | failed.
//
// All run state is owned by the goroutine calling Run. Other goroutines
// only read published snapshots and may signal verification clearance.
type Controller struct {
	runID      string
	spec       entity.SearchSpec
	browser    repository.Browser
	cfg        PipelineConfig
	classifier *Classifier
	pacer      Pacer
	seen       repository.SeenRepository
	logger     *zap.Logger
	now        func() time.Time

	cleared  chan struct{}
	snapshot atomic.Pointer[entity.RunSnapshot]

	phase      entity.Phase
	reason     string
	collected  int
	extracted  int
	failed     int
	records    []entity.JobRecord
	log        []entity.LogEntry
	startedAt  time.Time
	finishedAt *time.Time
}

// NewController prepares a run over an exclusively owned browser session.
// seen may be nil.
func NewController(
	runID string,
	spec entity.SearchSpec,
	browser repository.Browser,
	cfg PipelineConfig,
	classifier *Classifier,
	pacer Pacer,
	seen repository.SeenRepository,
	logger *zap.Logger,
) *Controller {
	if cfg.LogTailSize <= 0 {
		cfg.LogTailSize = 50
	}
	c := &Controller{
		runID:      runID,
		spec:       spec,
		browser:    browser,
		cfg:        cfg,
		classifier: classifier,
		pacer:      pacer,
		seen:       seen,
		logger:     logger.With(zap.String("run_id", runID)),
		now:        time.Now,
		cleared:    make(chan struct{}, 1),
		phase:      entity.PhaseIdle,
	}
	c.startedAt = c.now().UTC()
	c.publish()
	return c
}

// Snapshot returns the latest published state. The caller owns the copy.
func (c *Controller) Snapshot() *entity.RunSnapshot {
	return c.snapshot.Load()
}

// ClearVerification reports that a human has cleared a verification wall.
// It never blocks.
func (c *Controller) ClearVerification() {
	select {
	case c.cleared <- struct{}{}:
	default:
	}
}

// AwaitClearance implements VerificationGate for the run's navigator.
func (c *Controller) AwaitClearance(ctx context.Context, url string) error {
	// A signal sent before the wall appeared does not count.
	select {
	case <-c.cleared:
	default:
	}
	c.Log(entity.LevelWarn, entity.LogVerificationRequired, "",
		fmt.Sprintf("verification wall at %s, waiting for it to be cleared in the browser window", url))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.cleared:
		return nil
	}
}

// Collected implements Reporter.
func (c *Controller) Collected(entity.JobID) {
	c.collected++
	c.publish()
}

// Log implements Reporter. Entries are mirrored to the service logger.
func (c *Controller) Log(level entity.LogLevel, kind entity.LogKind, id entity.JobID, msg string) {
	c.log = append(c.log, entity.LogEntry{
		Time:    c.now().UTC(),
		Level:   level,
		Kind:    kind,
		JobID:   id,
		Message: msg,
	})

	fields := []zap.Field{zap.String("kind", string(kind))}
	if id != "" {
		fields = append(fields, zap.String("job_id", string(id)))
	}
	switch level {
	case entity.LevelError:
		c.logger.Error(msg, fields...)
	case entity.LevelWarn:
		c.logger.Warn(msg, fields...)
	default:
		c.logger.Info(msg, fields...)
	}
	c.publish()
}

// Run executes the pipeline and returns the final snapshot and the full run
// log. Cancelling ctx stops the run at the next wait. Run must be called at
// most once.
func (c *Controller) Run(ctx context.Context) (*entity.RunSnapshot, []entity.LogEntry) {
	nav := NewNavigator(c.browser, c.cfg.Navigator, c, c.logger)

	c.setPhase(entity.PhaseCollecting)
	ids, err := c.discover(ctx, nav)
	if err != nil {
		c.fail(ctx, err)
		return c.finish()
	}
	if len(ids) == 0 {
		c.Log(entity.LevelError, entity.LogNoJobsFound, "", "no job ids found")
		c.failWith(entity.ReasonNoJobsFound)
		return c.finish()
	}

	c.setPhase(entity.PhaseExtracting)
	c.Log(entity.LevelInfo, entity.LogProgress, "", fmt.Sprintf("extracting %d jobs", len(ids)))
	extractor := NewExtractor(nav, c.classifier, c.cfg.Extractor, c.logger)

	for i, id := range ids {
		if i > 0 {
			if err := c.pacer.Wait(ctx); err != nil {
				c.fail(ctx, err)
				return c.finish()
			}
		}

		rec, err := extractor.Extract(ctx, id)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, repository.ErrSessionLost) {
				c.fail(ctx, err)
				return c.finish()
			}
			metrics.JobsExtracted.WithLabelValues("failure").Inc()
			c.failed++
			c.Log(entity.LevelError, jobErrorKind(err), id, err.Error())
			continue
		}

		metrics.JobsExtracted.WithLabelValues("success").Inc()
		c.records = append(c.records, rec)
		c.extracted++
		c.publish()
	}

	c.Log(entity.LevelInfo, entity.LogProgress, "",
		fmt.Sprintf("run finished: %d extracted, %d failed", c.extracted, c.failed))
	c.setPhase(entity.PhaseDone)
	return c.finish()
}

func (c *Controller) discover(ctx context.Context, nav *Navigator) ([]entity.JobID, error) {
	var ids []entity.JobID
	if c.spec.HasManualIDs() {
		ids = append(ids, c.spec.ManualJobIDs...)
		c.collected = len(ids)
		c.Log(entity.LevelInfo, entity.LogProgress, "",
			fmt.Sprintf("using %d manually supplied job ids", len(ids)))
	} else {
		collector := NewCollector(nav, c.pacer, c.cfg.Collector, c, c.logger)
		var err error
		ids, err = collector.Collect(ctx, c.spec)
		if err != nil {
			return nil, err
		}
		c.Log(entity.LevelInfo, entity.LogProgress, "", fmt.Sprintf("collected %d job ids", len(ids)))
	}

	if c.spec.SkipSeen && c.seen != nil && len(ids) > 0 {
		unseen, err := c.seen.FilterUnseen(ctx, ids)
		if err != nil {
			c.logger.Warn("seen-job lookup failed, keeping all ids", zap.Error(err))
			return ids, nil
		}
		if skipped := len(ids) - len(unseen); skipped > 0 {
			c.collected = len(unseen)
			c.Log(entity.LevelInfo, entity.LogProgress, "",
				fmt.Sprintf("skipped %d jobs extracted by earlier runs", skipped))
		}
		ids = unseen
	}
	return ids, nil
}

func jobErrorKind(err error) entity.LogKind {
	switch {
	case errors.Is(err, repository.ErrExtractionFailed):
		return entity.LogExtractionError
	case errors.Is(err, repository.ErrVerificationRequired):
		return entity.LogVerificationRequired
	default:
		return entity.LogNavigationError
	}
}

// fail classifies a fatal error and moves the run to failed. Anything that
// is neither a stop nor a lost session aborts collection.
func (c *Controller) fail(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		c.Log(entity.LevelWarn, entity.LogCancelled, "", "run stopped")
		c.failWith(entity.ReasonCancelled)
	case errors.Is(err, repository.ErrSessionLost):
		c.Log(entity.LevelError, entity.LogSessionLost, "", err.Error())
		c.failWith(entity.ReasonSessionLost)
	default:
		c.Log(entity.LevelError, entity.LogCollectionAborted, "", err.Error())
		c.failWith(entity.ReasonCollectionAborted)
	}
}

func (c *Controller) failWith(reason string) {
	c.reason = reason
	c.setPhase(entity.PhaseFailed)
}

func (c *Controller) setPhase(p entity.Phase) {
	c.phase = p
	if p.Terminal() {
		t := c.now().UTC()
		c.finishedAt = &t
	}
	c.publish()
}

func (c *Controller) finish() (*entity.RunSnapshot, []entity.LogEntry) {
	log := make([]entity.LogEntry, len(c.log))
	copy(log, c.log)
	return c.Snapshot(), log
}

// publish swaps in a fresh snapshot. Records are append-only, so the
// published slice is clipped rather than copied.
func (c *Controller) publish() {
	tail := c.log
	if len(tail) > c.cfg.LogTailSize {
		tail = tail[len(tail)-c.cfg.LogTailSize:]
	}
	logTail := make([]entity.LogEntry, len(tail))
	copy(logTail, tail)

	n := len(c.records)
	c.snapshot.Store(&entity.RunSnapshot{
		RunID:          c.runID,
		Phase:          c.phase,
		FailureReason:  c.reason,
		CollectedCount: c.collected,
		ExtractedCount: c.extracted,
		FailedCount:    c.failed,
		LogTail:        logTail,
		Spec:           c.spec,
		StartedAt:      c.startedAt,
		FinishedAt:     c.finishedAt,
		Records:        c.records[:n:n],
	})
}
