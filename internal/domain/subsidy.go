package domain

import (
	"time"

	"github.com/google/uuid"
)

// recordNamespace seeds deterministic internal ids so the same upstream
// program id always maps to the same row.
var recordNamespace = uuid.MustParse("8f6f52a0-2c1d-4d2b-9b8e-4a1f0c7d9e31")

// RecordID derives the stable internal identifier for an upstream program id.
func RecordID(externalID string) string {
	return uuid.NewSHA1(recordNamespace, []byte(externalID)).String()
}

// SourceKind discriminates how a record entered the store.
type SourceKind string

const (
	SourceManual   SourceKind = "manual"
	SourceRegistry SourceKind = "external-registry"
)

// Category classifies what a subsidy program funds.
type Category string

const (
	CategoryEquipment  Category = "EQUIPMENT"
	CategoryIT         Category = "IT"
	CategoryRND        Category = "RND"
	CategoryEmployment Category = "EMPLOYMENT"
	CategorySales      Category = "SALES"
	CategoryStartup    Category = "STARTUP"
	CategorySuccession Category = "SUCCESSION"
	CategoryEnergy     Category = "ENERGY"
	CategoryOther      Category = "OTHER"
)

// Categories lists every valid category value.
var Categories = []Category{
	CategoryEquipment, CategoryIT, CategoryRND, CategoryEmployment,
	CategorySales, CategoryStartup, CategorySuccession, CategoryEnergy,
	CategoryOther,
}

// Valid reports whether the value belongs to the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// TargetScale describes the business size a program accepts.
type TargetScale string

const (
	ScaleSolo   TargetScale = "SOLO"
	ScaleSmall  TargetScale = "SMALL"
	ScaleMedium TargetScale = "MEDIUM_ENT"
	ScaleLarge  TargetScale = "LARGE"
	ScaleAll    TargetScale = "ALL"
)

// TargetScales lists every valid scale value.
var TargetScales = []TargetScale{ScaleSolo, ScaleSmall, ScaleMedium, ScaleLarge, ScaleAll}

// Valid reports whether the value belongs to the closed scale set.
func (s TargetScale) Valid() bool {
	for _, known := range TargetScales {
		if s == known {
			return true
		}
	}
	return false
}

// Industry describes an eligible applicant industry.
type Industry string

const (
	IndustryManufacturing Industry = "MANUFACTURING"
	IndustryConstruction  Industry = "CONSTRUCTION"
	IndustryRetail        Industry = "RETAIL"
	IndustryWholesale     Industry = "WHOLESALE"
	IndustryService       Industry = "SERVICE"
	IndustryIT            Industry = "IT_INDUSTRY"
	IndustryAgriculture   Industry = "AGRICULTURE"
	IndustryTransport     Industry = "TRANSPORT"
	IndustryMedical       Industry = "MEDICAL"
	IndustryHospitality   Industry = "HOSPITALITY"
	IndustryOther         Industry = "OTHER_INDUSTRY"
)

// Industries lists every valid industry value.
var Industries = []Industry{
	IndustryManufacturing, IndustryConstruction, IndustryRetail,
	IndustryWholesale, IndustryService, IndustryIT, IndustryAgriculture,
	IndustryTransport, IndustryMedical, IndustryHospitality, IndustryOther,
}

// Valid reports whether the value belongs to the closed industry set.
func (i Industry) Valid() bool {
	for _, known := range Industries {
		if i == known {
			return true
		}
	}
	return false
}

// Difficulty estimates how hard the application process is.
type Difficulty string

const (
	DifficultyLow    Difficulty = "LOW"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHigh   Difficulty = "HIGH"
)

// Valid reports whether the value belongs to the closed difficulty set.
func (d Difficulty) Valid() bool {
	return d == DifficultyLow || d == DifficultyMedium || d == DifficultyHigh
}

// FormSection describes one section of the application form structure.
type FormSection struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Enrichment holds the fields filled by the extraction service rather than
// deterministic mapping. A freshly mapped record carries DefaultEnrichment
// so it stays valid and storable even when extraction never runs.
type Enrichment struct {
	Categories          []Category    `json:"categories"`
	TargetScales        []TargetScale `json:"targetScales"`
	TargetIndustries    []Industry    `json:"targetIndustries"`
	Difficulty          Difficulty    `json:"difficulty"`
	Tags                []string      `json:"tags"`
	EligibilityCriteria []string      `json:"eligibilityCriteria"`
	ExcludedCases       []string      `json:"excludedCases"`
	FormSections        []FormSection `json:"formSections"`
	PopularityScore     int           `json:"popularityScore"`
}

// DefaultEnrichment returns the safe values used before extraction runs and
// whenever extraction falls back.
func DefaultEnrichment() Enrichment {
	return Enrichment{
		Categories:          []Category{CategoryOther},
		TargetScales:        []TargetScale{ScaleAll},
		TargetIndustries:    []Industry{IndustryOther},
		Difficulty:          DifficultyMedium,
		Tags:                []string{},
		EligibilityCriteria: []string{},
		ExcludedCases:       []string{},
		FormSections:        []FormSection{},
		PopularityScore:     50,
	}
}

// DateWindow is an optional start/end pair for the acceptance period.
type DateWindow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// SubsidyRecord is the canonical, normalized representation of one program.
// Amounts are stored in the display unit (man-yen, i.e. units of 10,000 yen).
type SubsidyRecord struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`

	Name        string `json:"name"`
	ShortName   string `json:"shortName"`
	Department  string `json:"department"`
	Summary     string `json:"summary"`
	Description string `json:"description"`

	MaxAmount   *int64 `json:"maxAmount,omitempty"`
	MinAmount   *int64 `json:"minAmount,omitempty"`
	SubsidyRate string `json:"subsidyRate"`

	Deadline *time.Time `json:"deadline,omitempty"`
	// DeadlineText keeps the upstream acceptance-end literal so validation
	// can tell "no deadline" apart from "deadline we failed to parse".
	DeadlineText      string      `json:"deadlineText,omitempty"`
	ApplicationWindow *DateWindow `json:"applicationWindow,omitempty"`

	Enrichment       Enrichment `json:"enrichment"`
	ExtractorVersion string     `json:"extractorVersion"`

	ReferenceURL string     `json:"referenceUrl"`
	IsActive     bool       `json:"isActive"`
	LastUpdated  time.Time  `json:"lastUpdated"`
	SourceKind   SourceKind `json:"sourceKind"`
}
