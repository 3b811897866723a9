package mapper

import (
	"regexp"
	"strings"
	"time"

	"subsidyscan/internal/domain"
)

const (
	shortNameMax = 40
	summaryMax   = 200
)

// dateFormats are tried in order; upstream mixes full timestamps and bare
// dates depending on the endpoint.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

var fiscalYearPrefix = regexp.MustCompile(`^(令和|平成)[0-9０-９]+年度?の?`)
var bracketPrefix = regexp.MustCompile(`^【[^】]*】`)

// MapDetail deterministically transforms a raw upstream detail payload into
// the canonical record shape. It performs no I/O: fields that need a
// judgment call are left at their safe enrichment defaults for the
// extraction step to overwrite.
func MapDetail(detail *domain.ProgramDetail, now time.Time) domain.SubsidyRecord {
	name := firstNonEmpty(detail.Title, detail.Name)

	record := domain.SubsidyRecord{
		ID:         domain.RecordID(detail.ExternalID),
		ExternalID: detail.ExternalID,

		Name:        name,
		ShortName:   ShortName(name),
		Department:  strings.TrimSpace(detail.CompetentAuthority),
		Summary:     truncateRunes(firstNonEmpty(detail.UsePurpose, detail.Overview), summaryMax),
		Description: strings.TrimSpace(detail.Overview),

		MaxAmount:   ParseAmount(detail.SubsidyMaxLimit),
		SubsidyRate: strings.TrimSpace(detail.SubsidyRateText),

		Enrichment: domain.DefaultEnrichment(),

		ReferenceURL: strings.TrimSpace(detail.ReferenceURL),
		LastUpdated:  now,
		SourceKind:   domain.SourceRegistry,
	}

	start := ParseDate(detail.AcceptanceStart)
	end := ParseDate(detail.AcceptanceEnd)
	if start != nil || end != nil {
		record.ApplicationWindow = &domain.DateWindow{Start: start, End: end}
	}
	record.Deadline = end
	record.DeadlineText = strings.TrimSpace(detail.AcceptanceEnd)

	// Active unless we positively know the window has closed.
	record.IsActive = end == nil || end.After(now)

	if tag := strings.TrimSpace(detail.CategoryTag); tag != "" {
		record.Enrichment.Tags = append(record.Enrichment.Tags, tag)
	}

	return record
}

// ParseDate tries each known upstream date layout and returns nil rather
// than an error on unparseable input.
func ParseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ShortName derives the display name: boilerplate fiscal-year and bracket
// prefixes are stripped, then the result is truncated to the length cap
// with an ellipsis marker.
func ShortName(name string) string {
	s := strings.TrimSpace(name)
	for {
		stripped := bracketPrefix.ReplaceAllString(s, "")
		stripped = fiscalYearPrefix.ReplaceAllString(stripped, "")
		stripped = strings.TrimSpace(stripped)
		if stripped == s {
			break
		}
		s = stripped
	}
	return truncateRunes(s, shortNameMax)
}

func truncateRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
