package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"subsidyscan/internal/domain"
	"subsidyscan/internal/ports"
)

// psql builds statements with Postgres-style $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres persists canonical records and run bookkeeping via pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ ports.SubsidyStore = (*Postgres)(nil)
	_ ports.RunStore     = (*Postgres)(nil)
)

// NewPostgres wires a connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Upsert inserts or replaces the record keyed by its internal id. Content
// columns are overwritten wholesale, so repeating the call with equal
// content leaves the row unchanged apart from updated_at.
func (p *Postgres) Upsert(ctx context.Context, record domain.SubsidyRecord, provenance []byte) error {
	enrichment, err := json.Marshal(record.Enrichment)
	if err != nil {
		return fmt.Errorf("marshal enrichment: %w", err)
	}

	var windowStart, windowEnd *time.Time
	if record.ApplicationWindow != nil {
		windowStart = record.ApplicationWindow.Start
		windowEnd = record.ApplicationWindow.End
	}

	query, args, err := psql.Insert("subsidies").
		Columns(
			"id", "external_id", "name", "short_name", "department",
			"summary", "description", "max_amount", "min_amount",
			"subsidy_rate", "deadline", "deadline_text", "window_start",
			"window_end", "enrichment", "extractor_version",
			"reference_url", "is_active", "source", "raw_payload",
			"last_updated",
		).
		Values(
			record.ID, record.ExternalID, record.Name, record.ShortName,
			record.Department, record.Summary, record.Description,
			record.MaxAmount, record.MinAmount, record.SubsidyRate,
			record.Deadline, record.DeadlineText, windowStart, windowEnd,
			enrichment, record.ExtractorVersion, record.ReferenceURL,
			record.IsActive, record.SourceKind, provenance,
			record.LastUpdated,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			name = EXCLUDED.name,
			short_name = EXCLUDED.short_name,
			department = EXCLUDED.department,
			summary = EXCLUDED.summary,
			description = EXCLUDED.description,
			max_amount = EXCLUDED.max_amount,
			min_amount = EXCLUDED.min_amount,
			subsidy_rate = EXCLUDED.subsidy_rate,
			deadline = EXCLUDED.deadline,
			deadline_text = EXCLUDED.deadline_text,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			enrichment = EXCLUDED.enrichment,
			extractor_version = EXCLUDED.extractor_version,
			reference_url = EXCLUDED.reference_url,
			is_active = EXCLUDED.is_active,
			source = EXCLUDED.source,
			raw_payload = EXCLUDED.raw_payload,
			last_updated = EXCLUDED.last_updated,
			updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert subsidy %s: %w", record.ID, err)
	}
	return nil
}

// GetByID loads one record, or nil when the id is unknown.
func (p *Postgres) GetByID(ctx context.Context, id string) (*domain.SubsidyRecord, error) {
	query, args, err := psql.Select(
		"id", "external_id", "name", "short_name", "department",
		"summary", "description", "max_amount", "min_amount",
		"subsidy_rate", "deadline", "deadline_text", "window_start",
		"window_end", "enrichment", "extractor_version", "reference_url",
		"is_active", "source", "last_updated",
	).From("subsidies").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		record      domain.SubsidyRecord
		enrichment  []byte
		windowStart *time.Time
		windowEnd   *time.Time
	)
	row := p.pool.QueryRow(ctx, query, args...)
	err = row.Scan(
		&record.ID, &record.ExternalID, &record.Name, &record.ShortName,
		&record.Department, &record.Summary, &record.Description,
		&record.MaxAmount, &record.MinAmount, &record.SubsidyRate,
		&record.Deadline, &record.DeadlineText, &windowStart, &windowEnd,
		&enrichment, &record.ExtractorVersion, &record.ReferenceURL,
		&record.IsActive, &record.SourceKind, &record.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select subsidy %s: %w", id, err)
	}

	if windowStart != nil || windowEnd != nil {
		record.ApplicationWindow = &domain.DateWindow{Start: windowStart, End: windowEnd}
	}
	if err := json.Unmarshal(enrichment, &record.Enrichment); err != nil {
		return nil, fmt.Errorf("unmarshal enrichment for %s: %w", id, err)
	}

	return &record, nil
}

// DeactivateExpired flips is_active off for every record whose deadline has
// passed and returns the affected row count.
func (p *Postgres) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	query, args, err := psql.Update("subsidies").
		Set("is_active", false).
		Set("updated_at", now).
		Where(sq.Eq{"is_active": true}).
		Where(sq.Lt{"deadline": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build deactivate: %w", err)
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Create inserts a new run row.
func (p *Postgres) Create(ctx context.Context, run *domain.IngestionRun) error {
	details, metadata, err := marshalRunBlobs(run)
	if err != nil {
		return err
	}

	query, args, err := psql.Insert("ingestion_runs").
		Columns("id", "status", "started_at", "finished_at",
			"fetched", "upserted", "skipped", "error_count",
			"error_details", "metadata").
		Values(run.ID, run.Status, run.StartedAt, run.FinishedAt,
			run.Fetched, run.Upserted, run.Skipped, run.ErrorCount,
			details, metadata).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing run row.
func (p *Postgres) Update(ctx context.Context, run *domain.IngestionRun) error {
	details, metadata, err := marshalRunBlobs(run)
	if err != nil {
		return err
	}

	query, args, err := psql.Update("ingestion_runs").
		Set("status", run.Status).
		Set("finished_at", run.FinishedAt).
		Set("fetched", run.Fetched).
		Set("upserted", run.Upserted).
		Set("skipped", run.Skipped).
		Set("error_count", run.ErrorCount).
		Set("error_details", details).
		Set("metadata", metadata).
		Where(sq.Eq{"id": run.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run update: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	return nil
}

// GetLatest returns the most recently started run, or nil when the table is
// empty.
func (p *Postgres) GetLatest(ctx context.Context) (*domain.IngestionRun, error) {
	query, args, err := psql.Select(
		"id", "status", "started_at", "finished_at",
		"fetched", "upserted", "skipped", "error_count",
		"error_details", "metadata",
	).From("ingestion_runs").OrderBy("started_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest run select: %w", err)
	}

	var (
		run      domain.IngestionRun
		details  []byte
		metadata []byte
	)
	row := p.pool.QueryRow(ctx, query, args...)
	err = row.Scan(&run.ID, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.Fetched, &run.Upserted, &run.Skipped, &run.ErrorCount,
		&details, &metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select latest run: %w", err)
	}

	if len(details) > 0 {
		if err := json.Unmarshal(details, &run.ErrorDetails); err != nil {
			return nil, fmt.Errorf("unmarshal run error details: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &run.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal run metadata: %w", err)
		}
	}

	return &run, nil
}

func marshalRunBlobs(run *domain.IngestionRun) ([]byte, []byte, error) {
	details, err := json.Marshal(run.ErrorDetails)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal run error details: %w", err)
	}
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal run metadata: %w", err)
	}
	return details, metadata, nil
}
