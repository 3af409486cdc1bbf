package models

// EnrichmentKind names one heuristic attribute extractor
type EnrichmentKind string

const (
	EnrichSkills     EnrichmentKind = "skills"
	EnrichSalaryNorm EnrichmentKind = "salary_norm"
	EnrichLocation   EnrichmentKind = "location_norm"
	EnrichCategory   EnrichmentKind = "category"
	EnrichSeniority  EnrichmentKind = "seniority"
	EnrichRemoteType EnrichmentKind = "remote_type"
	EnrichBenefits   EnrichmentKind = "benefits"
)

// EnrichmentValue pairs an extracted value with the extractor's confidence.
type EnrichmentValue struct {
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"` // [0,1]
}

// EnrichmentResult maps each enrichment kind to its extracted value.
type EnrichmentResult struct {
	JobID  string                             `json:"job_id"`
	Fields map[EnrichmentKind]EnrichmentValue `json:"fields"`
}

// NormalizedSalary is the structured form of a parsed salary string.
type NormalizedSalary struct {
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Currency string  `json:"currency"` // USD, EUR, GBP or "unknown"
	Period   string  `json:"period"`   // year, month, week, hour
	Raw      string  `json:"raw"`
}

// NormalizedLocation splits a free-form location into structured parts.
type NormalizedLocation struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	Remote  bool   `json:"remote"`
	Raw     string `json:"raw"`
}

// EnrichedJob is the composite record the orchestrator hands to persistence:
// the raw record plus its validation and enrichment outcomes.
type EnrichedJob struct {
	Job        RawJob            `json:"job"`
	Validation ValidationResult  `json:"validation"`
	Enrichment *EnrichmentResult `json:"enrichment,omitempty"`
}
