package domain

// ProgramSummary is the lightweight list-endpoint entry for one program.
type ProgramSummary struct {
	ExternalID string `json:"id"`
	Title      string `json:"title"`
	Name       string `json:"name"`
}

// ProgramDetail is the raw detail payload from the upstream registry. Every
// field is optional free text; the mapper owns all parsing, so nothing here
// carries typed values.
type ProgramDetail struct {
	ExternalID         string `json:"id"`
	Title              string `json:"title"`
	Name               string `json:"name"`
	CompetentAuthority string `json:"competent_authority"`
	Overview           string `json:"detail"`
	UsePurpose         string `json:"use_purpose"`
	TargetAreaText     string `json:"target_area_detail"`
	EligibilityText    string `json:"target_number_of_employees"`
	ApplicationMethod  string `json:"application_method"`
	SupplementaryText  string `json:"workflow"`
	CategoryTag        string `json:"subsidy_catch_phrase"`
	SubsidyMaxLimit    any    `json:"subsidy_max_limit"`
	SubsidyRateText    string `json:"subsidy_rate"`
	AcceptanceStart    string `json:"acceptance_start_datetime"`
	AcceptanceEnd      string `json:"acceptance_end_datetime"`
	ReferenceURL       string `json:"front_subsidy_detail_page_url"`
}
