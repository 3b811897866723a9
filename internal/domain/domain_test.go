package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIDDeterministic(t *testing.T) {
	t.Parallel()

	a := RecordID("a0W5h000000XyzEAA")
	b := RecordID("a0W5h000000XyzEAA")
	c := RecordID("a0W5h000000Other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRunCursorSurvivesJSONRoundTrip(t *testing.T) {
	t.Parallel()

	run := IngestionRun{Metadata: map[string]any{MetaCursor: 42}}

	raw, err := json.Marshal(run)
	require.NoError(t, err)

	var decoded IngestionRun
	require.NoError(t, json.Unmarshal(raw, &decoded))

	// JSON widens the int to float64; Cursor must still read it.
	assert.Equal(t, 42, decoded.Cursor())
}

func TestRunCursorDefaultsToZero(t *testing.T) {
	t.Parallel()

	var run *IngestionRun
	assert.Equal(t, 0, run.Cursor())
	assert.Equal(t, 0, (&IngestionRun{}).Cursor())
	assert.Equal(t, 0, (&IngestionRun{Metadata: map[string]any{MetaCursor: "ten"}}).Cursor())
}

func TestAddErrorBoundsDetails(t *testing.T) {
	t.Parallel()

	run := &IngestionRun{}
	for i := 0; i < 100; i++ {
		run.AddError(fmt.Sprintf("failure %d", i))
	}

	assert.Equal(t, 100, run.ErrorCount)
	assert.Len(t, run.ErrorDetails, maxErrorDetails)
}

func TestEnumValidation(t *testing.T) {
	t.Parallel()

	assert.True(t, CategoryIT.Valid())
	assert.False(t, Category("NOT_A_REAL_CATEGORY").Valid())
	assert.True(t, ScaleAll.Valid())
	assert.False(t, TargetScale("HUGE").Valid())
	assert.True(t, IndustryMedical.Valid())
	assert.False(t, Industry("SPACE").Valid())
	assert.True(t, DifficultyHigh.Valid())
	assert.False(t, Difficulty("EXTREME").Valid())
}
