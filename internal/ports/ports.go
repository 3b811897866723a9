package ports

import (
	"context"
	"time"

	"subsidyscan/internal/domain"
)

// ListFilter carries the opaque query parameters accepted by the upstream
// list endpoint.
type ListFilter struct {
	Keyword        string
	Sort           string
	AcceptanceOnly bool
}

// ListResult is the full, unpaginated upstream result set. Slicing it into
// resumable batches is the orchestrator's job, not the adapter's.
type ListResult struct {
	Programs   []domain.ProgramSummary
	TotalCount int
}

// RegistrySource pulls program records from the upstream subsidy registry.
type RegistrySource interface {
	ListPrograms(ctx context.Context, filter ListFilter) (ListResult, error)
	GetProgramDetail(ctx context.Context, externalID string) (*domain.ProgramDetail, error)
}

// Extractor fills the fields the mapper cannot determine deterministically.
// It returns a result and the extractor version that produced it; it errors
// only on transport failures, never on malformed service output.
type Extractor interface {
	Extract(ctx context.Context, detail *domain.ProgramDetail) (domain.Enrichment, string, error)
}

// SubsidyStore persists canonical records, keyed by internal id. Upsert must
// be idempotent: repeating it with equal content leaves the store unchanged.
type SubsidyStore interface {
	Upsert(ctx context.Context, record domain.SubsidyRecord, provenance []byte) error
	GetByID(ctx context.Context, id string) (*domain.SubsidyRecord, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}

// RunStore keeps the per-invocation bookkeeping rows.
type RunStore interface {
	Create(ctx context.Context, run *domain.IngestionRun) error
	Update(ctx context.Context, run *domain.IngestionRun) error
	GetLatest(ctx context.Context) (*domain.IngestionRun, error)
}

// Scheduler controls when pipeline invocations execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
