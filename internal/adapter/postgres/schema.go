package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS scrape_runs (
	run_id          TEXT PRIMARY KEY,
	phase           TEXT NOT NULL,
	failure_reason  TEXT NOT NULL DEFAULT '',
	collected_count INTEGER NOT NULL DEFAULT 0,
	extracted_count INTEGER NOT NULL DEFAULT 0,
	failed_count    INTEGER NOT NULL DEFAULT 0,
	spec            JSONB NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_log_entries (
	run_id    TEXT NOT NULL REFERENCES scrape_runs (run_id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	logged_at TIMESTAMPTZ NOT NULL,
	level     TEXT NOT NULL,
	kind      TEXT NOT NULL,
	job_id    TEXT NOT NULL DEFAULT '',
	message   TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS job_records (
	run_id       TEXT NOT NULL,
	job_id       TEXT NOT NULL,
	position     INTEGER NOT NULL,
	title        TEXT NOT NULL,
	company      TEXT NOT NULL,
	location     TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	providers    TEXT[] NOT NULL DEFAULT '{}',
	url          TEXT NOT NULL,
	extracted_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, job_id)
);

CREATE INDEX IF NOT EXISTS job_records_job_id_idx ON job_records (job_id);
`

// EnsureSchema creates the tables used by the repositories if they are missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
