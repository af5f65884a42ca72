package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/repository"
	"github.com/user/jobscraper-service/pkg/metrics"
	"go.uber.org/zap"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrShuttingDown  = errors.New("run manager is shutting down")
	ErrRunNotFound   = errors.New("run not found")
	ErrRunNotActive  = errors.New("run is not active")
)

const persistTimeout = 15 * time.Second

// RunManager starts runs and answers questions about them.
type RunManager interface {
	Start(ctx context.Context, spec entity.SearchSpec) (string, error)
	Snapshot(ctx context.Context, runID string) (*entity.RunSnapshot, error)
	Current() (*entity.RunSnapshot, error)
	Records(ctx context.Context, runID string) ([]entity.JobRecord, error)
	Stop(runID string) error
	ClearVerification(runID string) error
	Shutdown(ctx context.Context) error
}

// RunManagerConfig holds the settings shared by every run.
type RunManagerConfig struct {
	Pipeline   PipelineConfig
	RunHistory int           // finished runs kept in memory
	SeenTTL    time.Duration // how long extracted ids are skipped by later runs
}

// RunManagerDeps are the collaborators of the run manager. The repositories
// are optional; nil disables persistence or seen-job tracking.
type RunManagerDeps struct {
	Browsers   repository.BrowserFactory
	Classifier *Classifier
	Pacer      Pacer
	Runs       repository.RunRepository
	Records    repository.JobRecordRepository
	Seen       repository.SeenRepository
	Logger     *zap.Logger
}

type runHandle struct {
	ctrl   *Controller
	cancel context.CancelFunc
	done   chan struct{}
}

type runManager struct {
	cfg  RunManagerConfig
	deps RunManagerDeps

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	active   *runHandle
	starting bool // a browser session is being opened for the next run
	runs   map[string]*runHandle
	order  []string // run ids, oldest first
}

// NewRunManager creates a RunManager that executes at most one run at a time.
func NewRunManager(cfg RunManagerConfig, deps RunManagerDeps) RunManager {
	if cfg.RunHistory < 1 {
		cfg.RunHistory = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &runManager{
		cfg:        cfg,
		deps:       deps,
		baseCtx:    ctx,
		baseCancel: cancel,
		runs:       make(map[string]*runHandle),
	}
}

// Start validates spec, opens a browser session for the run and executes
// it in the background. ctx only bounds opening the session. The manager
// lock is not held while the browser starts, so polling and stop requests
// for other runs are served meanwhile.
func (m *runManager) Start(ctx context.Context, spec entity.SearchSpec) (string, error) {
	spec, err := spec.Validate()
	if err != nil {
		return "", err
	}

	if err := m.claim(); err != nil {
		return "", err
	}
	browser, err := m.deps.Browsers.Open(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false
	if err != nil {
		return "", fmt.Errorf("open browser session: %w", err)
	}
	if m.baseCtx.Err() != nil {
		if cerr := browser.Close(); cerr != nil {
			m.deps.Logger.Warn("failed to close browser session", zap.Error(cerr))
		}
		return "", ErrShuttingDown
	}

	runID := uuid.NewString()
	ctrl := NewController(runID, spec, browser, m.cfg.Pipeline, m.deps.Classifier, m.deps.Pacer, m.deps.Seen, m.deps.Logger)
	runCtx, cancel := context.WithCancel(m.baseCtx)
	h := &runHandle{ctrl: ctrl, cancel: cancel, done: make(chan struct{})}

	m.active = h
	m.runs[runID] = h
	m.order = append(m.order, runID)
	m.evictLocked()

	metrics.ActiveRuns.Inc()
	m.deps.Logger.Info("run started",
		zap.String("run_id", runID),
		zap.String("search_url", spec.SearchURL),
		zap.Int("max_jobs", spec.MaxJobs),
		zap.Int("manual_ids", len(spec.ManualJobIDs)),
	)

	m.wg.Add(1)
	go m.execute(runCtx, h, browser)
	return runID, nil
}

// claim reserves the single run slot for a run that is about to start.
func (m *runManager) claim() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.baseCtx.Err() != nil:
		return ErrShuttingDown
	case m.active != nil:
		return fmt.Errorf("%w: %s", ErrRunInProgress, m.active.ctrl.runID)
	case m.starting:
		return fmt.Errorf("%w: a browser session is starting", ErrRunInProgress)
	}
	m.starting = true
	return nil
}

func (m *runManager) execute(ctx context.Context, h *runHandle, browser repository.Browser) {
	defer m.wg.Done()
	defer close(h.done)
	defer h.cancel()

	snap, log := h.ctrl.Run(ctx)
	if err := browser.Close(); err != nil {
		m.deps.Logger.Warn("failed to close browser session", zap.String("run_id", snap.RunID), zap.Error(err))
	}

	m.persist(snap, log)

	outcome := string(snap.Phase)
	if snap.FailureReason != "" {
		outcome = snap.FailureReason
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()
	metrics.ActiveRuns.Dec()
	m.deps.Logger.Info("run finished",
		zap.String("run_id", snap.RunID),
		zap.String("phase", string(snap.Phase)),
		zap.String("reason", snap.FailureReason),
		zap.Int("extracted", snap.ExtractedCount),
		zap.Int("failed", snap.FailedCount),
	)

	m.mu.Lock()
	if m.active == h {
		m.active = nil
	}
	m.mu.Unlock()
}

// persist stores the finished run. Failures are logged, never fatal: the
// in-memory copy stays available.
func (m *runManager) persist(snap *entity.RunSnapshot, log []entity.LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if m.deps.Runs != nil {
		if err := m.deps.Runs.Save(ctx, snap, log); err != nil {
			m.deps.Logger.Error("failed to save run", zap.String("run_id", snap.RunID), zap.Error(err))
		}
	}
	if len(snap.Records) == 0 {
		return
	}
	if m.deps.Records != nil {
		if err := m.deps.Records.SaveAll(ctx, snap.RunID, snap.Records); err != nil {
			m.deps.Logger.Error("failed to save job records", zap.String("run_id", snap.RunID), zap.Error(err))
		}
	}
	if m.deps.Seen != nil {
		ids := make([]entity.JobID, 0, len(snap.Records))
		for _, r := range snap.Records {
			ids = append(ids, r.JobID)
		}
		if err := m.deps.Seen.MarkSeen(ctx, ids, m.cfg.SeenTTL); err != nil {
			m.deps.Logger.Warn("failed to mark jobs as seen", zap.String("run_id", snap.RunID), zap.Error(err))
		}
	}
}

// evictLocked drops the oldest finished runs beyond RunHistory.
func (m *runManager) evictLocked() {
	for len(m.order) > m.cfg.RunHistory {
		evicted := false
		for i, id := range m.order {
			if h := m.runs[id]; h == m.active {
				continue
			}
			delete(m.runs, id)
			m.order = append(m.order[:i], m.order[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

func (m *runManager) lookup(runID string) (*runHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.runs[runID]
	return h, ok
}

func (m *runManager) Snapshot(ctx context.Context, runID string) (*entity.RunSnapshot, error) {
	if h, ok := m.lookup(runID); ok {
		return h.ctrl.Snapshot(), nil
	}
	if m.deps.Runs == nil {
		return nil, ErrRunNotFound
	}
	snap, err := m.deps.Runs.FindByID(ctx, runID, m.cfg.Pipeline.LogTailSize)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return snap, nil
}

// Current returns the active run, or the most recent one if none is active.
func (m *runManager) Current() (*entity.RunSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return m.active.ctrl.Snapshot(), nil
	}
	if len(m.order) == 0 {
		return nil, ErrRunNotFound
	}
	return m.runs[m.order[len(m.order)-1]].ctrl.Snapshot(), nil
}

// Records returns the records extracted so far, in extraction order.
func (m *runManager) Records(ctx context.Context, runID string) ([]entity.JobRecord, error) {
	if h, ok := m.lookup(runID); ok {
		recs := h.ctrl.Snapshot().Records
		out := make([]entity.JobRecord, len(recs))
		copy(out, recs)
		return out, nil
	}
	if _, err := m.Snapshot(ctx, runID); err != nil {
		return nil, err
	}
	if m.deps.Records == nil {
		return []entity.JobRecord{}, nil
	}
	recs, err := m.deps.Records.FindByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load records of run %s: %w", runID, err)
	}
	return recs, nil
}

// Stop asks the run to cancel at its next wait. It does not wait for it.
func (m *runManager) Stop(runID string) error {
	h, ok := m.lookup(runID)
	if !ok {
		return ErrRunNotFound
	}
	if h.ctrl.Snapshot().Phase.Terminal() {
		return ErrRunNotActive
	}
	h.cancel()
	return nil
}

func (m *runManager) ClearVerification(runID string) error {
	h, ok := m.lookup(runID)
	if !ok {
		return ErrRunNotFound
	}
	if h.ctrl.Snapshot().Phase.Terminal() {
		return ErrRunNotActive
	}
	h.ctrl.ClearVerification()
	return nil
}

// Shutdown cancels any active run and waits for it to be persisted.
func (m *runManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.baseCancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
