package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsidyscan/internal/domain"
	"subsidyscan/internal/infrastructure/storage"
	"subsidyscan/internal/ports"
)

type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.current }
func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

type fakeSource struct {
	programs   []domain.ProgramSummary
	details    map[string]*domain.ProgramDetail
	listErr    error
	detailErr  map[string]error
	fetchCount map[string]int
	onDetail   func()
}

var _ ports.RegistrySource = (*fakeSource)(nil)

func (f *fakeSource) ListPrograms(context.Context, ports.ListFilter) (ports.ListResult, error) {
	if f.listErr != nil {
		return ports.ListResult{}, f.listErr
	}
	return ports.ListResult{Programs: f.programs, TotalCount: len(f.programs)}, nil
}

func (f *fakeSource) GetProgramDetail(_ context.Context, externalID string) (*domain.ProgramDetail, error) {
	if f.onDetail != nil {
		f.onDetail()
	}
	if f.fetchCount == nil {
		f.fetchCount = map[string]int{}
	}
	f.fetchCount[externalID]++
	if err := f.detailErr[externalID]; err != nil {
		return nil, err
	}
	return f.details[externalID], nil
}

type fakeExtractor struct {
	err   error
	calls int
}

var _ ports.Extractor = (*fakeExtractor)(nil)

func (f *fakeExtractor) Extract(context.Context, *domain.ProgramDetail) (domain.Enrichment, string, error) {
	f.calls++
	if f.err != nil {
		return domain.Enrichment{}, "", f.err
	}
	return domain.DefaultEnrichment(), "v1-fallback", nil
}

func makeSource(n int) *fakeSource {
	source := &fakeSource{details: map[string]*domain.ProgramDetail{}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ext-%02d", i)
		source.programs = append(source.programs, domain.ProgramSummary{ExternalID: id})
		source.details[id] = &domain.ProgramDetail{
			ExternalID:         id,
			Title:              fmt.Sprintf("補助金 %02d", i),
			CompetentAuthority: "経済産業省",
			Overview:           "設備投資を支援する。",
			SubsidyMaxLimit:    "1,000万円",
			SubsidyRateText:    "1/2以内",
			AcceptanceEnd:      "2026-12-31",
		}
	}
	return source
}

type fixture struct {
	pipeline  *Pipeline
	source    *fakeSource
	extractor *fakeExtractor
	store     *storage.Memory
	clock     *fakeClock
}

func newFixture(source *fakeSource, batchSize int, budget time.Duration) *fixture {
	f := &fixture{
		source:    source,
		extractor: &fakeExtractor{},
		store:     storage.NewMemory(),
		clock:     newFakeClock(),
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Source:     source,
		Extractor:  f.extractor,
		Subsidies:  f.store,
		Runs:       f.store,
		BatchSize:  batchSize,
		TimeBudget: budget,
		Now:        f.clock.Now,
	})
	return f
}

func TestRunOnceCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(makeSource(3), 10, 50*time.Second)

	run, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 3, run.Fetched)
	assert.Equal(t, 3, run.Upserted)
	assert.Equal(t, 0, run.Skipped)
	assert.Equal(t, 0, run.ErrorCount)
	assert.Equal(t, 3, run.Cursor())
	assert.Equal(t, 3, run.Metadata[domain.MetaTotalCount])
	assert.Contains(t, run.Metadata, domain.MetaDeactivated)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 3, f.store.Count())
}

func TestRunOnceResumesAcrossInvocations(t *testing.T) {
	t.Parallel()

	source := makeSource(25)
	f := newFixture(source, 10, 50*time.Second)
	ctx := context.Background()

	first, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, first.Status)
	assert.Equal(t, 10, first.Cursor())

	second, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, second.Status)
	assert.Equal(t, 20, second.Cursor())

	third, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, third.Status)
	assert.Equal(t, 25, third.Cursor())

	// Every upstream record visited exactly once across the sweep.
	assert.Equal(t, 25, f.store.Count())
	for id, count := range source.fetchCount {
		assert.Equalf(t, 1, count, "record %s fetched %d times", id, count)
	}
}

func TestRunOnceTimeBox(t *testing.T) {
	t.Parallel()

	source := makeSource(10)
	f := newFixture(source, 10, 50*time.Second)
	// Each detail fetch burns 10s of wall clock; the check before the 6th
	// record finds the budget spent.
	source.onDetail = func() { f.clock.Advance(10 * time.Second) }

	run, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunPartial, run.Status)
	assert.Equal(t, 5, run.Upserted+run.Skipped+run.ErrorCount)
	assert.Equal(t, 5, run.Cursor())
	assert.Equal(t, 5, f.store.Count())
}

func TestRunOnceResumesAfterTimeBox(t *testing.T) {
	t.Parallel()

	source := makeSource(10)
	f := newFixture(source, 10, 50*time.Second)
	source.onDetail = func() { f.clock.Advance(10 * time.Second) }

	ctx := context.Background()
	first, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.RunPartial, first.Status)

	second, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, second.Status)
	assert.Equal(t, 10, second.Cursor())
	assert.Equal(t, 10, f.store.Count())
}

func TestRunOnceListFailureFailsRun(t *testing.T) {
	t.Parallel()

	source := makeSource(0)
	source.listErr = errors.New("registry unreachable")
	f := newFixture(source, 10, 50*time.Second)

	run, err := f.pipeline.RunOnce(context.Background())
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, 1, run.ErrorCount)

	// The failure is checkpointed before the error propagates.
	runs := f.store.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunFailed, runs[0].Status)
}

func TestRunOnceFailedRunDoesNotResume(t *testing.T) {
	t.Parallel()

	source := makeSource(5)
	source.listErr = errors.New("registry unreachable")
	f := newFixture(source, 10, 50*time.Second)
	ctx := context.Background()

	_, err := f.pipeline.RunOnce(ctx)
	require.Error(t, err)

	source.listErr = nil
	run, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 5, run.Upserted)
}

func TestRunOncePerRecordFailuresContinue(t *testing.T) {
	t.Parallel()

	source := makeSource(4)
	source.detailErr = map[string]error{"ext-01": errors.New("detail 503")}
	f := newFixture(source, 10, 50*time.Second)

	run, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 3, run.Upserted)
	assert.Equal(t, 1, run.ErrorCount)
	require.Len(t, run.ErrorDetails, 1)
	assert.Contains(t, run.ErrorDetails[0], "ext-01")
}

func TestRunOnceExtractTransportFailureSkipsRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(makeSource(2), 10, 50*time.Second)
	f.extractor.err = errors.New("dial tcp: timeout")

	run, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 0, run.Upserted)
	assert.Equal(t, 2, run.ErrorCount)
	assert.Equal(t, 0, f.store.Count())
}

func TestRunOnceGateRejectionCountsSkipped(t *testing.T) {
	t.Parallel()

	source := makeSource(3)
	source.details["ext-01"].CompetentAuthority = ""

	f := newFixture(source, 10, 50*time.Second)
	run, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 2, run.Upserted)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 0, run.ErrorCount)
	require.NotEmpty(t, run.ErrorDetails)
	assert.Contains(t, run.ErrorDetails[0], "department")
	assert.Equal(t, 2, f.store.Count())
}

func TestRunOnceRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(makeSource(3), 10, 50*time.Second)
	ctx := context.Background()

	_, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	before, err := f.store.GetByID(ctx, domain.RecordID("ext-00"))
	require.NoError(t, err)

	// A manual rerun after a completed sweep revisits everything; upserts
	// must leave the store in the same observable state.
	run, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 3, f.store.Count())

	after, err := f.store.GetByID(ctx, domain.RecordID("ext-00"))
	require.NoError(t, err)
	before.LastUpdated = after.LastUpdated
	assert.Equal(t, before, after)
}

func TestRunOnceDeactivatesExpiredOnCompletion(t *testing.T) {
	t.Parallel()

	source := makeSource(2)
	source.details["ext-00"].AcceptanceEnd = "2026-01-15"

	f := newFixture(source, 10, 50*time.Second)
	run, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	// The record mapped as already expired and was stored inactive; the
	// completion sweep has nothing further to flip.
	assert.Equal(t, 0, run.Metadata[domain.MetaDeactivated])

	record, err := f.store.GetByID(context.Background(), domain.RecordID("ext-00"))
	require.NoError(t, err)
	assert.False(t, record.IsActive)
}
