package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/repository"
)

// testPool connects to the database named by TEST_POSTGRES_URL. Tests that
// need it are skipped when it is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	require.NoError(t, EnsureSchema(ctx, pool), "schema creation is idempotent")
	return pool
}

func cleanupRun(t *testing.T, pool *pgxpool.Pool, runID string) {
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM job_records WHERE run_id = $1`, runID)
		_, _ = pool.Exec(ctx, `DELETE FROM scrape_runs WHERE run_id = $1`, runID)
	})
}

func TestProviderStrings(t *testing.T) {
	assert.Equal(t, []string{"AWS", "GCP"}, providerStrings([]entity.ProviderTag{entity.ProviderAWS, entity.ProviderGCP}))
	assert.Equal(t, []string{}, providerStrings(nil))
}

func TestRunRepo_SaveAndFind(t *testing.T) {
	pool := testPool(t)
	repo := NewRunRepo(pool)
	ctx := context.Background()

	runID := uuid.NewString()
	cleanupRun(t, pool, runID)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := &entity.RunSnapshot{
		RunID:          runID,
		Phase:          entity.PhaseExtracting,
		CollectedCount: 3,
		Spec:           entity.SearchSpec{SearchURL: "https://www.linkedin.com/jobs/search/?keywords=go", MaxJobs: 3},
		StartedAt:      started,
	}
	log := []entity.LogEntry{
		{Time: started, Level: entity.LevelInfo, Kind: entity.LogProgress, Message: "collected 3 job ids"},
		{Time: started.Add(time.Second), Level: entity.LevelError, Kind: entity.LogExtractionError, JobID: "2", Message: "title not found"},
	}
	require.NoError(t, repo.Save(ctx, snap, log))

	finished := started.Add(time.Minute)
	snap.Phase = entity.PhaseDone
	snap.ExtractedCount = 2
	snap.FailedCount = 1
	snap.FinishedAt = &finished
	log = append(log, entity.LogEntry{Time: finished, Level: entity.LevelInfo, Kind: entity.LogProgress, Message: "run finished"})
	require.NoError(t, repo.Save(ctx, snap, log))

	got, err := repo.FindByID(ctx, runID, 2)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseDone, got.Phase)
	assert.Equal(t, 3, got.CollectedCount)
	assert.Equal(t, 2, got.ExtractedCount)
	assert.Equal(t, 1, got.FailedCount)
	assert.Equal(t, snap.Spec, got.Spec)
	assert.True(t, started.Equal(got.StartedAt))
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	require.Len(t, got.LogTail, 2)
	assert.Equal(t, entity.LogExtractionError, got.LogTail[0].Kind)
	assert.Equal(t, entity.JobID("2"), got.LogTail[0].JobID)
	assert.Equal(t, "run finished", got.LogTail[1].Message)
}

func TestRunRepo_NotFound(t *testing.T) {
	repo := NewRunRepo(testPool(t))

	_, err := repo.FindByID(context.Background(), uuid.NewString(), 10)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestJobRecordRepo_SaveAllKeepsOrder(t *testing.T) {
	pool := testPool(t)
	repo := NewJobRecordRepo(pool)
	ctx := context.Background()

	runID := uuid.NewString()
	cleanupRun(t, pool, runID)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []entity.JobRecord{
		{JobID: "30", Title: "SRE", Company: "Acme", Country: entity.CountryUnknown, URL: "https://www.linkedin.com/jobs/view/30/", ExtractedAt: at},
		{JobID: "10", Title: "Cloud Engineer", Company: "Globex", Location: "Berlin, Germany", Country: "Germany",
			Description: "Run workloads on AWS", Providers: []entity.ProviderTag{entity.ProviderAWS},
			URL: "https://www.linkedin.com/jobs/view/10/", ExtractedAt: at},
	}
	require.NoError(t, repo.SaveAll(ctx, runID, records))
	require.NoError(t, repo.SaveAll(ctx, runID, records), "saving twice upserts")

	got, err := repo.FindByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entity.JobID("30"), got[0].JobID)
	assert.Empty(t, got[0].Providers)
	assert.Equal(t, entity.JobID("10"), got[1].JobID)
	assert.Equal(t, []entity.ProviderTag{entity.ProviderAWS}, got[1].Providers)
	assert.Equal(t, "Germany", got[1].Country)
	assert.True(t, at.Equal(got[1].ExtractedAt))

	empty, err := repo.FindByRun(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
