package llm

import (
	"fmt"
	"strings"

	"subsidyscan/internal/domain"
)

const systemPrompt = "You classify Japanese subsidy programs. " +
	"Respond with exactly one JSON object and no other text."

// detailSnippetMax bounds how much of each free-text field is embedded into
// the prompt.
const detailSnippetMax = 1500

// buildPrompt embeds the detail fields and the closed enumerations into a
// single-turn instruction.
func buildPrompt(detail *domain.ProgramDetail) string {
	var b strings.Builder

	b.WriteString("Classify the following subsidy program.\n\n")
	writeField(&b, "Title", detail.Title)
	writeField(&b, "Authority", detail.CompetentAuthority)
	writeField(&b, "Overview", detail.Overview)
	writeField(&b, "Purpose", detail.UsePurpose)
	writeField(&b, "Eligibility", detail.EligibilityText)
	writeField(&b, "Target area", detail.TargetAreaText)
	writeField(&b, "How to apply", detail.ApplicationMethod)
	writeField(&b, "Notes", detail.SupplementaryText)

	fmt.Fprintf(&b, "\nAllowed categories: %s\n", joinCategories())
	fmt.Fprintf(&b, "Allowed targetScales: %s\n", joinScales())
	fmt.Fprintf(&b, "Allowed targetIndustries: %s\n", joinIndustries())
	b.WriteString("Allowed difficulty: LOW, MEDIUM, HIGH\n")

	b.WriteString(`
Return one JSON object with this shape:
{
  "categories": [...],
  "targetScales": [...],
  "targetIndustries": [...],
  "difficulty": "MEDIUM",
  "tags": ["short keyword", ...],
  "eligibilityCriteria": ["one requirement per entry", ...],
  "excludedCases": ["who cannot apply", ...],
  "formSections": [{"key": "snake_case", "title": "...", "description": "..."}],
  "popularityScore": 50
}
Use only the allowed enumeration values. popularityScore is 0-100.
`)

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	runes := []rune(value)
	if len(runes) > detailSnippetMax {
		value = string(runes[:detailSnippetMax])
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func joinCategories() string {
	parts := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func joinScales() string {
	parts := make([]string, len(domain.TargetScales))
	for i, s := range domain.TargetScales {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func joinIndustries() string {
	parts := make([]string, len(domain.Industries))
	for i, ind := range domain.Industries {
		parts[i] = string(ind)
	}
	return strings.Join(parts, ", ")
}
