package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/repository"
)

// RunRepoImpl provides a concrete implementation for the RunRepository interface using PostgreSQL.
type RunRepoImpl struct {
	db *pgxpool.Pool
}

// NewRunRepo creates a new instance of RunRepoImpl.
func NewRunRepo(db *pgxpool.Pool) *RunRepoImpl {
	return &RunRepoImpl{db: db}
}

// Save creates or updates the run summary and appends log entries not
// stored yet.
func (r *RunRepoImpl) Save(ctx context.Context, snap *entity.RunSnapshot, log []entity.LogEntry) error {
	specJSON, err := json.Marshal(snap.Spec)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO scrape_runs (run_id, phase, failure_reason, collected_count, extracted_count, failed_count, spec, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			failure_reason = EXCLUDED.failure_reason,
			collected_count = EXCLUDED.collected_count,
			extracted_count = EXCLUDED.extracted_count,
			failed_count = EXCLUDED.failed_count,
			finished_at = EXCLUDED.finished_at;
	`
	_, err = tx.Exec(ctx, query,
		snap.RunID,
		string(snap.Phase),
		snap.FailureReason,
		snap.CollectedCount,
		snap.ExtractedCount,
		snap.FailedCount,
		specJSON,
		snap.StartedAt,
		snap.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if len(log) > 0 {
		batch := &pgx.Batch{}
		for i, e := range log {
			batch.Queue(`INSERT INTO run_log_entries (run_id, seq, logged_at, level, kind, job_id, message)
			             VALUES ($1, $2, $3, $4, $5, $6, $7)
			             ON CONFLICT (run_id, seq) DO NOTHING`,
				snap.RunID, i, e.Time, string(e.Level), string(e.Kind), string(e.JobID), e.Message)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert run log: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// FindByID retrieves a run summary with its last tail log entries.
func (r *RunRepoImpl) FindByID(ctx context.Context, runID string, tail int) (*entity.RunSnapshot, error) {
	query := `
		SELECT run_id, phase, failure_reason, collected_count, extracted_count, failed_count, spec, started_at, finished_at
		FROM scrape_runs
		WHERE run_id = $1;
	`
	var (
		snap     entity.RunSnapshot
		phase    string
		specJSON []byte
	)
	err := r.db.QueryRow(ctx, query, runID).Scan(
		&snap.RunID,
		&phase,
		&snap.FailureReason,
		&snap.CollectedCount,
		&snap.ExtractedCount,
		&snap.FailedCount,
		&specJSON,
		&snap.StartedAt,
		&snap.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	snap.Phase = entity.Phase(phase)
	if err := json.Unmarshal(specJSON, &snap.Spec); err != nil {
		return nil, fmt.Errorf("decode spec of run %s: %w", runID, err)
	}

	snap.LogTail, err = r.logTail(ctx, runID, tail)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *RunRepoImpl) logTail(ctx context.Context, runID string, tail int) ([]entity.LogEntry, error) {
	query := `
		SELECT logged_at, level, kind, job_id, message
		FROM (
			SELECT seq, logged_at, level, kind, job_id, message
			FROM run_log_entries
			WHERE run_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) t
		ORDER BY seq ASC;
	`
	rows, err := r.db.Query(ctx, query, runID, tail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []entity.LogEntry{}
	for rows.Next() {
		var e entity.LogEntry
		var level, kind, jobID string
		if err := rows.Scan(&e.Time, &level, &kind, &jobID, &e.Message); err != nil {
			return nil, err
		}
		e.Level = entity.LogLevel(level)
		e.Kind = entity.LogKind(kind)
		e.JobID = entity.JobID(jobID)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
