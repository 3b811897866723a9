package storage

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsidyscan/internal/domain"
)

func sampleRecord(externalID string, deadline *time.Time) domain.SubsidyRecord {
	return domain.SubsidyRecord{
		ID:          domain.RecordID(externalID),
		ExternalID:  externalID,
		Name:        "テスト補助金",
		Department:  "テスト省",
		Summary:     "概要",
		Description: "説明",
		SubsidyRate: "1/2",
		Deadline:    deadline,
		Enrichment:  domain.DefaultEnrichment(),
		IsActive:    true,
		LastUpdated: time.Now().UTC(),
		SourceKind:  domain.SourceRegistry,
	}
}

func TestMemoryUpsertIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	record := sampleRecord("ext-1", nil)

	require.NoError(t, store.Upsert(ctx, record, []byte(`{"id":"ext-1"}`)))
	first, err := store.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, store.Upsert(ctx, record, []byte(`{"id":"ext-1"}`)))
	second, err := store.GetByID(ctx, record.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Count())
}

func TestMemoryGetByIDMissing(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	got, err := store.GetByID(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryDeactivateExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)

	require.NoError(t, store.Upsert(ctx, sampleRecord("expired", &past), nil))
	require.NoError(t, store.Upsert(ctx, sampleRecord("open", &future), nil))
	require.NoError(t, store.Upsert(ctx, sampleRecord("rolling", nil), nil))

	count, err := store.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := store.GetByID(ctx, domain.RecordID("expired"))
	require.NoError(t, err)
	assert.False(t, expired.IsActive)

	wantActive := []string{domain.RecordID("open"), domain.RecordID("rolling")}
	sort.Strings(wantActive)
	assert.Equal(t, wantActive, store.ActiveIDs())

	// Already-inactive rows are not counted again.
	count, err = store.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryRunLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	run := &domain.IngestionRun{
		ID:        "run-1",
		Status:    domain.RunRunning,
		StartedAt: time.Now().UTC(),
		Metadata:  map[string]any{domain.MetaCursor: 0},
	}
	require.NoError(t, store.Create(ctx, run))

	run.Status = domain.RunPartial
	run.Metadata[domain.MetaCursor] = 10
	require.NoError(t, store.Update(ctx, run))

	latest, err = store.GetLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.RunPartial, latest.Status)
	assert.Equal(t, 10, latest.Cursor())

	// The stored copy is isolated from later caller mutation.
	run.Metadata[domain.MetaCursor] = 99
	latest, err = store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, latest.Cursor())
}
