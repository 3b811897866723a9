package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"subsidyscan/internal/domain"
	"subsidyscan/internal/mapper"
	"subsidyscan/internal/ports"
	"subsidyscan/internal/quality"
)

const (
	defaultBatchSize = 10
	// defaultTimeBudget stays measurably under the host's 60s hard kill so
	// the cursor checkpoint always lands before the invocation dies.
	defaultTimeBudget = 50 * time.Second

	maxMergedTags = 10
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source    ports.RegistrySource
	Extractor ports.Extractor
	Subsidies ports.SubsidyStore
	Runs      ports.RunStore

	Filter     ports.ListFilter
	BatchSize  int
	TimeBudget time.Duration

	// Now is swappable so the time-box logic stays testable; nil means
	// time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Pipeline drives one ingestion invocation: list, batch, per-record
// fetch-map-extract-check-upsert, checkpoint, finalize. It is the only
// component aware of the wall-clock budget.
type Pipeline struct {
	source    ports.RegistrySource
	extractor ports.Extractor
	subsidies ports.SubsidyStore
	runs      ports.RunStore

	filter     ports.ListFilter
	batchSize  int
	timeBudget time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component with defaults applied.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:     deps.Source,
		extractor:  deps.Extractor,
		subsidies:  deps.Subsidies,
		runs:       deps.Runs,
		filter:     deps.Filter,
		batchSize:  deps.BatchSize,
		timeBudget: deps.TimeBudget,
		now:        deps.Now,
		logger:     deps.Logger,
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.timeBudget <= 0 {
		p.timeBudget = defaultTimeBudget
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// RunOnce executes a single invocation and returns its bookkeeping record.
// A non-nil error means the run itself failed; per-record failures are
// absorbed into the run counters instead.
func (p *Pipeline) RunOnce(ctx context.Context) (*domain.IngestionRun, error) {
	started := p.now()

	// The previous run's cursor is read before this run is created, so the
	// resumption input is explicit rather than "latest row minus one".
	cursor := 0
	previous, err := p.runs.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	if previous != nil && previous.Status == domain.RunPartial {
		cursor = previous.Cursor()
	}

	run := &domain.IngestionRun{
		ID:        uuid.NewString(),
		Status:    domain.RunRunning,
		StartedAt: started,
		Metadata:  map[string]any{domain.MetaCursor: cursor},
	}
	if err := p.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	p.info("run started", "run_id", run.ID, "cursor", cursor)

	list, err := p.source.ListPrograms(ctx, p.filter)
	if err != nil {
		p.fail(ctx, run, fmt.Errorf("list programs: %w", err))
		return run, fmt.Errorf("list programs: %w", err)
	}

	total := len(list.Programs)
	run.Metadata[domain.MetaTotalCount] = list.TotalCount
	if cursor > total {
		// Upstream shrank between invocations; clamp instead of slicing
		// out of range.
		cursor = total
	}

	end := cursor + p.batchSize
	if end > total {
		end = total
	}

	processed := 0
	timedOut := false
	for _, summary := range list.Programs[cursor:end] {
		if p.now().Sub(started) >= p.timeBudget {
			timedOut = true
			p.info("time budget reached", "run_id", run.ID, "processed", processed)
			break
		}
		p.processRecord(ctx, run, summary)
		processed++
	}

	newCursor := cursor + processed
	run.Metadata[domain.MetaCursor] = newCursor

	if timedOut || newCursor < total {
		run.Status = domain.RunPartial
	} else {
		deactivated, err := p.subsidies.DeactivateExpired(ctx, p.now())
		if err != nil {
			p.fail(ctx, run, fmt.Errorf("deactivate expired: %w", err))
			return run, fmt.Errorf("deactivate expired: %w", err)
		}
		run.Metadata[domain.MetaDeactivated] = deactivated
		run.Status = domain.RunCompleted
	}

	finished := p.now()
	run.FinishedAt = &finished
	if err := p.runs.Update(ctx, run); err != nil {
		return run, fmt.Errorf("checkpoint run: %w", err)
	}

	p.info("run finished", "run_id", run.ID, "status", run.Status,
		"fetched", run.Fetched, "upserted", run.Upserted,
		"skipped", run.Skipped, "errors", run.ErrorCount, "cursor", newCursor)

	return run, nil
}

// processRecord handles one upstream program end to end. Every failure in
// here is about the content of this record, so it is absorbed into the run
// counters and never stops the batch.
func (p *Pipeline) processRecord(ctx context.Context, run *domain.IngestionRun, summary domain.ProgramSummary) {
	detail, err := p.source.GetProgramDetail(ctx, summary.ExternalID)
	if err != nil {
		run.AddError(fmt.Sprintf("detail %s: %v", summary.ExternalID, err))
		return
	}
	run.Fetched++

	record := mapper.MapDetail(detail, p.now())

	enrichment, version, err := p.extractor.Extract(ctx, detail)
	if err != nil {
		run.AddError(fmt.Sprintf("extract %s: %v", summary.ExternalID, err))
		return
	}
	mergeEnrichment(&record, enrichment, version)

	report := quality.Check(&record)
	for _, warning := range report.Warnings {
		p.warn("quality warning", "external_id", summary.ExternalID, "warning", warning)
	}
	if !report.Passed {
		run.Skipped++
		for _, reason := range report.Errors {
			run.AddDetail(fmt.Sprintf("rejected %s: %s", summary.ExternalID, reason))
		}
		return
	}

	stored, err := p.subsidies.GetByID(ctx, record.ID)
	if err != nil {
		run.AddError(fmt.Sprintf("load previous %s: %v", summary.ExternalID, err))
		return
	}
	if stored != nil {
		if anomaly, detail := quality.DetectAnomaly(record.MaxAmount, stored.MaxAmount); anomaly {
			p.warn("amount anomaly", "external_id", summary.ExternalID, "detail", detail)
		}
	}

	provenance, err := json.Marshal(detail)
	if err != nil {
		run.AddError(fmt.Sprintf("provenance %s: %v", summary.ExternalID, err))
		return
	}
	if err := p.subsidies.Upsert(ctx, record, provenance); err != nil {
		run.AddError(fmt.Sprintf("upsert %s: %v", summary.ExternalID, err))
		return
	}
	run.Upserted++
}

// mergeEnrichment overwrites the provisional enrichment with the extraction
// result, keeping deterministic tags the mapper seeded.
func mergeEnrichment(record *domain.SubsidyRecord, enrichment domain.Enrichment, version string) {
	seeded := record.Enrichment.Tags
	record.Enrichment = enrichment
	record.Enrichment.Tags = mergeTags(seeded, enrichment.Tags)
	record.ExtractorVersion = version
}

func mergeTags(seeded, extracted []string) []string {
	seen := make(map[string]bool, len(seeded)+len(extracted))
	merged := make([]string, 0, len(seeded)+len(extracted))
	for _, tag := range append(append([]string{}, seeded...), extracted...) {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}
	if len(merged) > maxMergedTags {
		merged = merged[:maxMergedTags]
	}
	return merged
}

// fail finalizes the run row before the fatal error propagates to the
// caller.
func (p *Pipeline) fail(ctx context.Context, run *domain.IngestionRun, cause error) {
	run.Status = domain.RunFailed
	run.AddError(cause.Error())
	finished := p.now()
	run.FinishedAt = &finished
	if err := p.runs.Update(ctx, run); err != nil {
		p.warn("update failed run", "run_id", run.ID, "error", err)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
