package quality

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsidyscan/internal/domain"
)

func ptr(n int64) *int64 { return &n }

func validRecord() domain.SubsidyRecord {
	deadline := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	return domain.SubsidyRecord{
		ID:           domain.RecordID("ext-1"),
		ExternalID:   "ext-1",
		Name:         "省エネ設備導入支援補助金",
		ShortName:    "省エネ設備導入支援補助金",
		Department:   "経済産業省",
		Summary:      "省エネ設備への更新を支援",
		Description:  "高効率設備への入替えに対する補助。",
		SubsidyRate:  "2/3以内",
		MaxAmount:    ptr(1000),
		Deadline:     &deadline,
		DeadlineText: "2026-03-31",
		Enrichment:   domain.DefaultEnrichment(),
		IsActive:     true,
		SourceKind:   domain.SourceRegistry,
	}
}

func TestCheckPasses(t *testing.T) {
	t.Parallel()

	record := validRecord()
	report := Check(&record)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
}

func TestCheckRejectsInvalidCategory(t *testing.T) {
	t.Parallel()

	record := validRecord()
	record.Enrichment.Categories = []domain.Category{"NOT_A_REAL_CATEGORY"}

	report := Check(&record)
	require.False(t, report.Passed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "NOT_A_REAL_CATEGORY")
}

func TestCheckRejectsInvertedAmounts(t *testing.T) {
	t.Parallel()

	record := validRecord()
	record.MinAmount = ptr(500)
	record.MaxAmount = ptr(100)

	report := Check(&record)
	require.False(t, report.Passed)
	assert.Contains(t, strings.Join(report.Errors, "; "), "exceeds maxAmount")
}

func TestCheckRejectsMissingFields(t *testing.T) {
	t.Parallel()

	record := validRecord()
	record.Department = ""
	record.SubsidyRate = "   "

	report := Check(&record)
	require.False(t, report.Passed)
	assert.Len(t, report.Errors, 2)
}

func TestCheckRejectsNegativeAmount(t *testing.T) {
	t.Parallel()

	record := validRecord()
	record.MaxAmount = ptr(-5)

	report := Check(&record)
	assert.False(t, report.Passed)
}

func TestCheckRejectsUnparseableDeadline(t *testing.T) {
	t.Parallel()

	record := validRecord()
	record.Deadline = nil
	record.DeadlineText = "令和8年3月末"

	report := Check(&record)
	require.False(t, report.Passed)
	assert.Contains(t, report.Errors[0], "令和8年3月末")
}

func TestCheckWarnings(t *testing.T) {
	t.Parallel()

	record := validRecord()
	record.Enrichment.Categories = nil
	record.MaxAmount = ptr(largeAmountWarn + 1)
	record.Enrichment.PopularityScore = 140

	report := Check(&record)
	assert.True(t, report.Passed, "warnings must not block persistence")
	assert.Len(t, report.Warnings, 3)
}

func TestDetectAnomaly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		newVal   *int64
		prevVal  *int64
		expected bool
	}{
		{name: "exact boundary flagged", newVal: ptr(150), prevVal: ptr(100), expected: true},
		{name: "small change not flagged", newVal: ptr(120), prevVal: ptr(100), expected: false},
		{name: "halving flagged", newVal: ptr(50), prevVal: ptr(100), expected: true},
		{name: "missing previous", newVal: ptr(100), prevVal: nil, expected: false},
		{name: "missing new", newVal: nil, prevVal: ptr(100), expected: false},
		{name: "zero previous", newVal: ptr(100), prevVal: ptr(0), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anomaly, detail := DetectAnomaly(tt.newVal, tt.prevVal)
			assert.Equal(t, tt.expected, anomaly)
			if anomaly {
				assert.NotEmpty(t, detail)
			}
		})
	}
}
