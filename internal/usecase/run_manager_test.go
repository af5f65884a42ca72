package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/repository"
	"go.uber.org/zap"
)

type memSeen struct {
	mu  sync.Mutex
	ids map[entity.JobID]time.Duration
}

func newMemSeen(ids ...string) *memSeen {
	s := &memSeen{ids: make(map[entity.JobID]time.Duration)}
	for _, id := range ids {
		s.ids[entity.JobID(id)] = time.Hour
	}
	return s
}

func (s *memSeen) MarkSeen(_ context.Context, ids []entity.JobID, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = expiry
	}
	return nil
}

func (s *memSeen) FilterUnseen(_ context.Context, ids []entity.JobID) ([]entity.JobID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.JobID
	for _, id := range ids {
		if _, ok := s.ids[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string]*entity.RunSnapshot
	logs map[string][]entity.LogEntry
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]*entity.RunSnapshot), logs: make(map[string][]entity.LogEntry)}
}

func (r *memRuns) Save(_ context.Context, snap *entity.RunSnapshot, log []entity.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[snap.RunID] = snap
	r.logs[snap.RunID] = log
	return nil
}

func (r *memRuns) FindByID(_ context.Context, runID string, _ int) (*entity.RunSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.runs[runID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return snap, nil
}

type memRecords struct {
	mu   sync.Mutex
	recs map[string][]entity.JobRecord
}

func (r *memRecords) SaveAll(_ context.Context, runID string, records []entity.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recs == nil {
		r.recs = make(map[string][]entity.JobRecord)
	}
	r.recs[runID] = append([]entity.JobRecord(nil), records...)
	return nil
}

func (r *memRecords) FindByRun(_ context.Context, runID string) ([]entity.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recs[runID], nil
}

type fakeFactory struct {
	browser *fakeBrowser
	err     error
	opened  int
}

func (f *fakeFactory) Open(context.Context) (repository.Browser, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.opened++
	return f.browser, nil
}

// gatedFactory blocks Open until release is closed.
type gatedFactory struct {
	inner   *fakeFactory
	entered chan struct{}
	release chan struct{}
}

func (g *gatedFactory) Open(ctx context.Context) (repository.Browser, error) {
	close(g.entered)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.Open(ctx)
}

type managerFixture struct {
	mgr     *runManager
	browser *fakeBrowser
	factory *fakeFactory
	runs    *memRuns
	records *memRecords
	seen    *memSeen
}

func newManagerFixture(t *testing.T, pacer Pacer, history int) *managerFixture {
	t.Helper()
	b := newFakeBrowser()
	addPostings(b, seqIDs(1, 5))
	f := &managerFixture{
		browser: b,
		factory: &fakeFactory{browser: b},
		runs:    newMemRuns(),
		records: &memRecords{},
		seen:    newMemSeen(),
	}
	f.mgr = NewRunManager(
		RunManagerConfig{Pipeline: testPipelineConfig(), RunHistory: history, SeenTTL: 48 * time.Hour},
		RunManagerDeps{
			Browsers:   f.factory,
			Classifier: NewClassifier(entity.DefaultCloudProviderTable()),
			Pacer:      pacer,
			Runs:       f.runs,
			Records:    f.records,
			Seen:       f.seen,
			Logger:     zap.NewNop(),
		},
	).(*runManager)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.mgr.Shutdown(ctx)
	})
	return f
}

func (f *managerFixture) wait(t *testing.T, runID string) {
	t.Helper()
	h, ok := f.mgr.lookup(runID)
	require.True(t, ok)
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("run %s did not finish", runID)
	}
}

func manualSpec(ids ...string) entity.SearchSpec {
	return entity.SearchSpec{ManualJobIDs: toJobIDs(ids)}
}

func TestRunManager_RunToCompletion(t *testing.T) {
	f := newManagerFixture(t, noWait{}, 5)

	runID, err := f.mgr.Start(context.Background(), manualSpec("1", "2", "3"))
	require.NoError(t, err)
	f.wait(t, runID)

	snap, err := f.mgr.Snapshot(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseDone, snap.Phase)
	assert.Equal(t, 3, snap.ExtractedCount)

	recs, err := f.mgr.Records(context.Background(), runID)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	assert.True(t, f.browser.isClosed(), "browser session is released")
	assert.Contains(t, f.runs.runs, runID)
	assert.Len(t, f.records.recs[runID], 3)
	assert.Equal(t, 48*time.Hour, f.seen.ids["2"])

	current, err := f.mgr.Current()
	require.NoError(t, err)
	assert.Equal(t, runID, current.RunID)
}

func TestRunManager_OneRunAtATime(t *testing.T) {
	f := newManagerFixture(t, blockingPacer{}, 5)

	runID, err := f.mgr.Start(context.Background(), manualSpec("1", "2"))
	require.NoError(t, err)

	_, err = f.mgr.Start(context.Background(), manualSpec("3"))
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, 1, f.factory.opened)

	require.Eventually(t, func() bool {
		snap, err := f.mgr.Snapshot(context.Background(), runID)
		return err == nil && snap.ExtractedCount == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, f.mgr.Stop(runID))
	f.wait(t, runID)

	snap, err := f.mgr.Snapshot(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseFailed, snap.Phase)
	assert.Equal(t, entity.ReasonCancelled, snap.FailureReason)
	assert.Len(t, snap.Records, 1)

	assert.ErrorIs(t, f.mgr.Stop(runID), ErrRunNotActive)
	assert.ErrorIs(t, f.mgr.ClearVerification(runID), ErrRunNotActive)

	_, err = f.mgr.Start(context.Background(), manualSpec("3"))
	assert.NoError(t, err)
}

func TestRunManager_InvalidSpec(t *testing.T) {
	f := newManagerFixture(t, noWait{}, 5)

	_, err := f.mgr.Start(context.Background(), entity.SearchSpec{MaxJobs: 5})
	assert.ErrorIs(t, err, entity.ErrInvalidSearchSpec)
	assert.Zero(t, f.factory.opened)
}

func TestRunManager_BrowserOpenFails(t *testing.T) {
	f := newManagerFixture(t, noWait{}, 5)
	f.factory.err = errors.New("chrome not found")

	_, err := f.mgr.Start(context.Background(), manualSpec("1"))
	assert.ErrorContains(t, err, "chrome not found")

	_, err = f.mgr.Current()
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunManager_UnknownRun(t *testing.T) {
	f := newManagerFixture(t, noWait{}, 5)

	_, err := f.mgr.Snapshot(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = f.mgr.Records(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, f.mgr.Stop("nope"), ErrRunNotFound)
	assert.ErrorIs(t, f.mgr.ClearVerification("nope"), ErrRunNotFound)
}

func TestRunManager_EvictedRunsFallBackToRepository(t *testing.T) {
	f := newManagerFixture(t, noWait{}, 1)

	first, err := f.mgr.Start(context.Background(), manualSpec("1", "2"))
	require.NoError(t, err)
	f.wait(t, first)

	second, err := f.mgr.Start(context.Background(), manualSpec("3"))
	require.NoError(t, err)
	f.wait(t, second)

	_, inMemory := f.mgr.lookup(first)
	assert.False(t, inMemory)

	snap, err := f.mgr.Snapshot(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseDone, snap.Phase)

	recs, err := f.mgr.Records(context.Background(), first)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRunManager_ShutdownCancelsActiveRun(t *testing.T) {
	f := newManagerFixture(t, blockingPacer{}, 5)

	runID, err := f.mgr.Start(context.Background(), manualSpec("1", "2"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.mgr.Shutdown(ctx))

	snap, err := f.mgr.Snapshot(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReasonCancelled, snap.FailureReason)

	_, err = f.mgr.Start(context.Background(), manualSpec("3"))
	assert.Error(t, err)
}

func TestRunManager_PollingWhileBrowserStarts(t *testing.T) {
	f := newManagerFixture(t, noWait{}, 5)
	first, err := f.mgr.Start(context.Background(), manualSpec("1"))
	require.NoError(t, err)
	f.wait(t, first)

	gated := &gatedFactory{inner: f.factory, entered: make(chan struct{}), release: make(chan struct{})}
	f.mgr.deps.Browsers = gated

	type startResult struct {
		runID string
		err   error
	}
	started := make(chan startResult, 1)
	go func() {
		runID, err := f.mgr.Start(context.Background(), manualSpec("2"))
		started <- startResult{runID, err}
	}()
	select {
	case <-gated.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("browser session was never opened")
	}

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		current, err := f.mgr.Current()
		if assert.NoError(t, err) {
			assert.Equal(t, first, current.RunID)
		}
		_, err = f.mgr.Snapshot(context.Background(), first)
		assert.NoError(t, err)
		assert.ErrorIs(t, f.mgr.Stop(first), ErrRunNotActive)
		assert.ErrorIs(t, f.mgr.Stop("x"), ErrRunNotFound)
		_, err = f.mgr.Start(context.Background(), manualSpec("3"))
		assert.ErrorIs(t, err, ErrRunInProgress)
	}()
	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("manager calls blocked while a browser session was starting")
	}

	close(gated.release)
	var res startResult
	select {
	case res = <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("start did not return after the browser opened")
	}
	require.NoError(t, res.err)
	f.wait(t, res.runID)

	snap, err := f.mgr.Snapshot(context.Background(), res.runID)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseDone, snap.Phase)
}

func TestRunManager_ShutdownDuringBrowserStart(t *testing.T) {
	f := newManagerFixture(t, noWait{}, 5)
	gated := &gatedFactory{inner: f.factory, entered: make(chan struct{}), release: make(chan struct{})}
	f.mgr.deps.Browsers = gated

	started := make(chan error, 1)
	go func() {
		_, err := f.mgr.Start(context.Background(), manualSpec("1"))
		started <- err
	}()
	<-gated.entered

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.mgr.Shutdown(ctx))
	close(gated.release)

	select {
	case err := <-started:
		assert.ErrorIs(t, err, ErrShuttingDown)
	case <-time.After(5 * time.Second):
		t.Fatal("start did not return")
	}
	assert.True(t, f.browser.isClosed(), "session opened during shutdown is released")
	_, err := f.mgr.Current()
	assert.ErrorIs(t, err, ErrRunNotFound)
}
