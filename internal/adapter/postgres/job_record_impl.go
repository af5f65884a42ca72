package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/jobscraper-service/internal/entity"
)

// JobRecordRepoImpl provides a concrete implementation for the JobRecordRepository interface using PostgreSQL.
type JobRecordRepoImpl struct {
	db *pgxpool.Pool
}

// NewJobRecordRepo creates a new instance of JobRecordRepoImpl.
func NewJobRecordRepo(db *pgxpool.Pool) *JobRecordRepoImpl {
	return &JobRecordRepoImpl{db: db}
}

// SaveAll stores a run's records in one transaction.
func (r *JobRecordRepoImpl) SaveAll(ctx context.Context, runID string, records []entity.JobRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO job_records (run_id, job_id, position, title, company, location, country, description, providers, url, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, job_id) DO UPDATE SET
			position = EXCLUDED.position,
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			country = EXCLUDED.country,
			description = EXCLUDED.description,
			providers = EXCLUDED.providers,
			url = EXCLUDED.url,
			extracted_at = EXCLUDED.extracted_at;
	`
	batch := &pgx.Batch{}
	for i, rec := range records {
		batch.Queue(query,
			runID,
			string(rec.JobID),
			i,
			rec.Title,
			rec.Company,
			rec.Location,
			rec.Country,
			rec.Description,
			providerStrings(rec.Providers),
			rec.URL,
			rec.ExtractedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert job records: %w", err)
	}
	return tx.Commit(ctx)
}

// FindByRun retrieves a run's records in extraction order.
func (r *JobRecordRepoImpl) FindByRun(ctx context.Context, runID string) ([]entity.JobRecord, error) {
	query := `
		SELECT job_id, title, company, location, country, description, providers, url, extracted_at
		FROM job_records
		WHERE run_id = $1
		ORDER BY position ASC;
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []entity.JobRecord{}
	for rows.Next() {
		var (
			rec       entity.JobRecord
			jobID     string
			providers []string
		)
		if err := rows.Scan(
			&jobID,
			&rec.Title,
			&rec.Company,
			&rec.Location,
			&rec.Country,
			&rec.Description,
			&providers,
			&rec.URL,
			&rec.ExtractedAt,
		); err != nil {
			return nil, err
		}
		rec.JobID = entity.JobID(jobID)
		rec.Providers = make([]entity.ProviderTag, 0, len(providers))
		for _, p := range providers {
			rec.Providers = append(rec.Providers, entity.ProviderTag(p))
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func providerStrings(tags []entity.ProviderTag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}
