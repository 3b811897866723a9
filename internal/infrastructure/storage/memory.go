package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"subsidyscan/internal/domain"
	"subsidyscan/internal/ports"
)

// Memory is a map-backed implementation of both stores, used by tests and
// by credential-less local runs. The pipeline itself is single-threaded, but
// the mutex keeps the store safe for callers that are not.
type Memory struct {
	mu       sync.Mutex
	records  map[string]domain.SubsidyRecord
	payloads map[string][]byte
	runs     map[string]domain.IngestionRun
	runOrder []string
}

var (
	_ ports.SubsidyStore = (*Memory)(nil)
	_ ports.RunStore     = (*Memory)(nil)
)

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records:  map[string]domain.SubsidyRecord{},
		payloads: map[string][]byte{},
		runs:     map[string]domain.IngestionRun{},
	}
}

// Upsert stores the record keyed by its internal id, replacing any previous
// version wholesale so repeated calls with equal content are no-ops.
func (m *Memory) Upsert(_ context.Context, record domain.SubsidyRecord, provenance []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.ID] = record
	m.payloads[record.ID] = provenance
	return nil
}

// GetByID returns the stored record or nil when absent.
func (m *Memory) GetByID(_ context.Context, id string) (*domain.SubsidyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// DeactivateExpired flips IsActive off for records whose deadline has passed
// and returns how many records changed.
func (m *Memory) DeactivateExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, record := range m.records {
		if record.IsActive && record.Deadline != nil && record.Deadline.Before(now) {
			record.IsActive = false
			m.records[id] = record
			count++
		}
	}
	return count, nil
}

// Count reports how many records the store holds.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Create stores a new run row.
func (m *Memory) Create(_ context.Context, run *domain.IngestionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = cloneRun(run)
	m.runOrder = append(m.runOrder, run.ID)
	return nil
}

// Update overwrites the stored state of an existing run.
func (m *Memory) Update(_ context.Context, run *domain.IngestionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = cloneRun(run)
	return nil
}

// GetLatest returns the most recently created run, or nil when none exists.
func (m *Memory) GetLatest(_ context.Context) (*domain.IngestionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.runOrder) == 0 {
		return nil, nil
	}
	run := m.runs[m.runOrder[len(m.runOrder)-1]]
	copied := cloneRun(&run)
	return &copied, nil
}

// Runs returns every run ordered by creation, newest last.
func (m *Memory) Runs() []domain.IngestionRun {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.IngestionRun, 0, len(m.runOrder))
	for _, id := range m.runOrder {
		out = append(out, cloneRun(ptrRun(m.runs[id])))
	}
	return out
}

// ActiveIDs returns the ids of active records, sorted for stable assertions.
func (m *Memory) ActiveIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, record := range m.records {
		if record.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func ptrRun(run domain.IngestionRun) *domain.IngestionRun { return &run }

// cloneRun deep-copies the mutable slices and map so later mutation by the
// pipeline cannot leak into stored state.
func cloneRun(run *domain.IngestionRun) domain.IngestionRun {
	copied := *run
	copied.ErrorDetails = append([]string(nil), run.ErrorDetails...)
	if run.Metadata != nil {
		copied.Metadata = make(map[string]any, len(run.Metadata))
		for k, v := range run.Metadata {
			copied.Metadata[k] = v
		}
	}
	return copied
}
