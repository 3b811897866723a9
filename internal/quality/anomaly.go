package quality

import (
	"fmt"
	"math"
)

// anomalyRatio is the relative-change boundary; a swing of exactly 50%
// counts as anomalous.
const anomalyRatio = 0.5

// DetectAnomaly compares a record's new headline amount against the
// previously stored one. The comparison is only meaningful when both values
// exist and the previous one is non-zero. Anomalies are warnings: registry
// amendments legitimately produce large swings, so they never block an
// upsert.
func DetectAnomaly(newAmount, previousAmount *int64) (bool, string) {
	if newAmount == nil || previousAmount == nil || *previousAmount == 0 {
		return false, ""
	}

	ratio := math.Abs(float64(*newAmount-*previousAmount)) / float64(*previousAmount)
	if ratio < anomalyRatio {
		return false, ""
	}

	return true, fmt.Sprintf("maxAmount changed %d -> %d (%.0f%%)",
		*previousAmount, *newAmount, ratio*100)
}
