package domain

import "time"

// RunStatus enumerates ingestion-run outcomes.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Metadata keys recorded on every run.
const (
	MetaCursor      = "cursor"
	MetaTotalCount  = "totalCount"
	MetaDeactivated = "deactivated"
)

// maxErrorDetails bounds the per-run failure log so a pathological sweep
// cannot grow the run row without limit.
const maxErrorDetails = 20

// IngestionRun is the bookkeeping record of a single pipeline invocation.
type IngestionRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	Fetched    int `json:"fetched"`
	Upserted   int `json:"upserted"`
	Skipped    int `json:"skipped"`
	ErrorCount int `json:"errorCount"`

	ErrorDetails []string       `json:"errorDetails,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AddError counts a failure and appends its description, keeping the detail
// list bounded.
func (r *IngestionRun) AddError(detail string) {
	r.ErrorCount++
	r.AddDetail(detail)
}

// AddDetail appends a human-readable note without touching the error
// counter; used for gate rejections, which land in the skipped counter
// instead.
func (r *IngestionRun) AddDetail(detail string) {
	if len(r.ErrorDetails) < maxErrorDetails {
		r.ErrorDetails = append(r.ErrorDetails, detail)
	}
}

// Cursor reads the resumption cursor stored in the run metadata, tolerating
// the numeric widening that happens on a JSON round-trip.
func (r *IngestionRun) Cursor() int {
	if r == nil || r.Metadata == nil {
		return 0
	}
	switch v := r.Metadata[MetaCursor].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
