package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"subsidyscan/internal/domain"
	"subsidyscan/internal/ports"
)

// Extractor versions let downstream consumers tell a real extraction apart
// from the deterministic fallbacks.
const (
	VersionCurrent    = "v1"
	VersionFallback   = "v1-fallback"
	VersionParseError = "v1-parse-error"
)

// List caps bound storage size and the cost of re-embedding records into
// later prompts.
const (
	maxEligibility  = 8
	maxExcluded     = 8
	maxTags         = 10
	maxFormSections = 10
)

// Extractor calls an OpenAI-compatible chat-completions service to fill the
// judgment-call fields of a record. Enrichment is an enhancement, not a
// dependency: an unconfigured extractor yields defaults, and malformed
// service output never surfaces as an error.
type Extractor struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
}

var _ ports.Extractor = (*Extractor)(nil)

// NewExtractor builds the client. An empty apiKey is a valid configuration
// state that switches the extractor into fallback mode.
func NewExtractor(endpoint, model, apiKey string, logger *slog.Logger) *Extractor {
	return &Extractor{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// rawEnrichment mirrors the JSON object the service is prompted to produce.
// Everything is revalidated member-by-member before use.
type rawEnrichment struct {
	Categories          []string             `json:"categories"`
	TargetScales        []string             `json:"targetScales"`
	TargetIndustries    []string             `json:"targetIndustries"`
	Difficulty          string               `json:"difficulty"`
	Tags                []string             `json:"tags"`
	EligibilityCriteria []string             `json:"eligibilityCriteria"`
	ExcludedCases       []string             `json:"excludedCases"`
	FormSections        []domain.FormSection `json:"formSections"`
	PopularityScore     *int                 `json:"popularityScore"`
}

// Extract returns the enrichment for one program detail plus the version
// string that produced it. It returns an error only for transport failures;
// any response-content problem resolves to a tagged fallback.
func (e *Extractor) Extract(ctx context.Context, detail *domain.ProgramDetail) (domain.Enrichment, string, error) {
	if e.apiKey == "" || e.endpoint == "" {
		return domain.DefaultEnrichment(), VersionFallback, nil
	}

	body, err := json.Marshal(map[string]any{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(detail)},
		},
		"temperature": 0,
	})
	if err != nil {
		return domain.Enrichment{}, "", fmt.Errorf("marshal extraction payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Enrichment{}, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return domain.Enrichment{}, "", fmt.Errorf("extraction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Enrichment{}, "", fmt.Errorf("extraction service %s: %s",
			resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		e.warn("undecodable extraction response", "external_id", detail.ExternalID, "error", err)
		return domain.DefaultEnrichment(), VersionParseError, nil
	}
	if len(decoded.Choices) == 0 {
		e.warn("extraction response has no choices", "external_id", detail.ExternalID)
		return domain.DefaultEnrichment(), VersionParseError, nil
	}

	enrichment, ok := parseEnrichment(decoded.Choices[0].Message.Content)
	if !ok {
		e.warn("extraction content not parseable", "external_id", detail.ExternalID)
		return domain.DefaultEnrichment(), VersionParseError, nil
	}

	return enrichment, VersionCurrent, nil
}

// parseEnrichment locates the first JSON object in the free-text content and
// validates every member against the closed enumerations.
func parseEnrichment(content string) (domain.Enrichment, bool) {
	span, found := firstJSONObject(content)
	if !found {
		return domain.Enrichment{}, false
	}

	var raw rawEnrichment
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return domain.Enrichment{}, false
	}

	result := domain.Enrichment{
		Categories:          validCategories(raw.Categories),
		TargetScales:        validScales(raw.TargetScales),
		TargetIndustries:    validIndustries(raw.TargetIndustries),
		Difficulty:          domain.DifficultyMedium,
		Tags:                capStrings(raw.Tags, maxTags),
		EligibilityCriteria: capStrings(raw.EligibilityCriteria, maxEligibility),
		ExcludedCases:       capStrings(raw.ExcludedCases, maxExcluded),
		FormSections:        capSections(raw.FormSections, maxFormSections),
		PopularityScore:     50,
	}

	if d := domain.Difficulty(strings.ToUpper(strings.TrimSpace(raw.Difficulty))); d.Valid() {
		result.Difficulty = d
	}
	if raw.PopularityScore != nil && *raw.PopularityScore >= 0 && *raw.PopularityScore <= 100 {
		result.PopularityScore = *raw.PopularityScore
	}

	return result, true
}

// Out-of-set values are dropped; a list that validates down to nothing gets
// the named fallback instead of staying empty.
func validCategories(values []string) []domain.Category {
	var out []domain.Category
	for _, v := range values {
		if c := domain.Category(strings.ToUpper(strings.TrimSpace(v))); c.Valid() {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []domain.Category{domain.CategoryOther}
	}
	return out
}

func validScales(values []string) []domain.TargetScale {
	var out []domain.TargetScale
	for _, v := range values {
		if s := domain.TargetScale(strings.ToUpper(strings.TrimSpace(v))); s.Valid() {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []domain.TargetScale{domain.ScaleAll}
	}
	return out
}

func validIndustries(values []string) []domain.Industry {
	var out []domain.Industry
	for _, v := range values {
		if i := domain.Industry(strings.ToUpper(strings.TrimSpace(v))); i.Valid() {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return []domain.Industry{domain.IndustryOther}
	}
	return out
}

func capStrings(values []string, max int) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func capSections(sections []domain.FormSection, max int) []domain.FormSection {
	out := make([]domain.FormSection, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func (e *Extractor) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
