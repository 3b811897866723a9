package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the two logical tables described by the persisted-state
// layout: canonical records plus append-mostly run bookkeeping.
const schema = `
CREATE TABLE IF NOT EXISTS subsidies (
	id                TEXT PRIMARY KEY,
	external_id       TEXT NOT NULL,
	name              TEXT NOT NULL,
	short_name        TEXT NOT NULL,
	department        TEXT NOT NULL,
	summary           TEXT NOT NULL,
	description       TEXT NOT NULL,
	max_amount        BIGINT,
	min_amount        BIGINT,
	subsidy_rate      TEXT NOT NULL,
	deadline          TIMESTAMPTZ,
	deadline_text     TEXT NOT NULL DEFAULT '',
	window_start      TIMESTAMPTZ,
	window_end        TIMESTAMPTZ,
	enrichment        JSONB NOT NULL,
	extractor_version TEXT NOT NULL DEFAULT '',
	reference_url     TEXT NOT NULL DEFAULT '',
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	source            TEXT NOT NULL,
	raw_payload       JSONB,
	last_updated      TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_subsidies_external_id ON subsidies (external_id);
CREATE INDEX IF NOT EXISTS idx_subsidies_deadline ON subsidies (deadline) WHERE is_active;

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	fetched       INTEGER NOT NULL DEFAULT 0,
	upserted      INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	error_count   INTEGER NOT NULL DEFAULT 0,
	error_details JSONB NOT NULL DEFAULT '[]',
	metadata      JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started_at ON ingestion_runs (started_at DESC);
`

// EnsureSchema applies the table definitions, safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
