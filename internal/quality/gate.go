// Package quality validates fully assembled records before they may reach
// storage, and flags suspicious financial-value changes.
package quality

import (
	"fmt"
	"strings"

	"subsidyscan/internal/domain"
)

// largeAmountWarn marks amounts (in display units) beyond anything a normal
// program offers; one trillion yen.
const largeAmountWarn = 100_000_000

// Report is the outcome of checking one record. Any fatal error blocks
// persistence; warnings never do.
type Report struct {
	Passed   bool
	Errors   []string
	Warnings []string
}

// Check validates a record against the structural and domain invariants.
func Check(record *domain.SubsidyRecord) Report {
	var report Report

	requireText(&report, "name", record.Name)
	requireText(&report, "department", record.Department)
	requireText(&report, "summary", record.Summary)
	requireText(&report, "description", record.Description)
	requireText(&report, "subsidyRate", record.SubsidyRate)

	for _, c := range record.Enrichment.Categories {
		if !c.Valid() {
			report.fail(fmt.Sprintf("invalid category %q", c))
		}
	}
	for _, s := range record.Enrichment.TargetScales {
		if !s.Valid() {
			report.fail(fmt.Sprintf("invalid target scale %q", s))
		}
	}
	for _, i := range record.Enrichment.TargetIndustries {
		if !i.Valid() {
			report.fail(fmt.Sprintf("invalid industry %q", i))
		}
	}
	if !record.Enrichment.Difficulty.Valid() {
		report.fail(fmt.Sprintf("invalid difficulty %q", record.Enrichment.Difficulty))
	}

	if record.MaxAmount != nil && *record.MaxAmount < 0 {
		report.fail("maxAmount is negative")
	}
	if record.MinAmount != nil && *record.MinAmount < 0 {
		report.fail("minAmount is negative")
	}
	if record.MinAmount != nil && record.MaxAmount != nil && *record.MinAmount > *record.MaxAmount {
		report.fail(fmt.Sprintf("minAmount %d exceeds maxAmount %d", *record.MinAmount, *record.MaxAmount))
	}

	if record.DeadlineText != "" && record.Deadline == nil {
		report.fail(fmt.Sprintf("unparseable deadline %q", record.DeadlineText))
	}

	if len(record.Enrichment.Categories) == 0 {
		report.warn("categories is empty")
	}
	if len(record.Enrichment.TargetScales) == 0 {
		report.warn("targetScales is empty")
	}
	if len(record.Enrichment.TargetIndustries) == 0 {
		report.warn("targetIndustries is empty")
	}
	if record.MaxAmount != nil && *record.MaxAmount > largeAmountWarn {
		report.warn(fmt.Sprintf("unusually large maxAmount %d", *record.MaxAmount))
	}
	if score := record.Enrichment.PopularityScore; score < 0 || score > 100 {
		report.warn(fmt.Sprintf("popularityScore %d outside 0-100", score))
	}

	report.Passed = len(report.Errors) == 0
	return report
}

func requireText(report *Report, field, value string) {
	if strings.TrimSpace(value) == "" {
		report.fail("missing required field " + field)
	}
}

func (r *Report) fail(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
