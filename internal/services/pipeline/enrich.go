package pipeline

import (
	"strings"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/models"
)

// skillTaxonomy groups known skills by category. Matching is whole-word and
// case-insensitive against the job text.
var skillTaxonomy = map[string][]string{
	"languages": {
		"go", "golang", "python", "java", "javascript", "typescript", "rust",
		"ruby", "php", "kotlin", "swift", "scala", "sql",
	},
	"frameworks": {
		"react", "vue", "angular", "django", "rails", "spring", "flask",
		"nextjs", "express", "fastapi",
	},
	"infrastructure": {
		"docker", "kubernetes", "terraform", "ansible", "aws", "gcp", "azure",
		"linux", "jenkins", "grafana", "prometheus",
	},
	"data": {
		"postgresql", "postgres", "mysql", "mongodb", "redis", "kafka",
		"elasticsearch", "spark", "airflow", "snowflake",
	},
	"practices": {
		"agile", "scrum", "ci/cd", "tdd", "microservices", "devops",
	},
}

// Keyword-weighted classifiers. The best-scoring label wins when its score
// reaches the classifier threshold.
var categoryKeywords = map[string]map[string]int{
	"engineering": {"engineer": 3, "developer": 3, "software": 2, "backend": 2, "frontend": 2, "devops": 2, "programming": 1},
	"data":        {"data scientist": 3, "analyst": 2, "machine learning": 3, "analytics": 2, "statistics": 1},
	"design":      {"designer": 3, "ux": 2, "ui": 2, "figma": 2, "creative": 1},
	"product":     {"product manager": 3, "product owner": 3, "roadmap": 2, "stakeholder": 1},
	"marketing":   {"marketing": 3, "seo": 2, "content": 1, "brand": 2, "campaign": 2},
	"sales":       {"sales": 3, "account executive": 3, "quota": 2, "crm": 1},
	"support":     {"support": 3, "customer service": 3, "helpdesk": 2, "ticket": 1},
}

var seniorityKeywords = map[string]map[string]int{
	"intern":    {"intern": 3, "internship": 3, "student": 2},
	"junior":    {"junior": 3, "entry level": 3, "entry-level": 3, "graduate": 2},
	"mid":       {"mid level": 3, "mid-level": 3, "intermediate": 2},
	"senior":    {"senior": 3, "sr.": 2, "experienced": 1},
	"lead":      {"lead": 3, "principal": 3, "staff": 2, "architect": 2},
	"executive": {"director": 3, "vp ": 3, "head of": 3, "chief": 3, "cto": 3},
}

var remoteKeywords = map[string]map[string]int{
	"remote":  {"fully remote": 3, "remote": 2, "work from home": 3, "wfh": 2, "anywhere": 1},
	"hybrid":  {"hybrid": 3, "flexible location": 2, "days in office": 2},
	"on_site": {"on-site": 3, "onsite": 3, "in office": 2, "office based": 2},
}

var benefitKeywords = []string{
	"health insurance", "dental", "vision", "401k", "pension",
	"equity", "stock options", "unlimited pto", "paid time off",
	"parental leave", "remote budget", "learning budget", "gym",
}

const classifierThreshold = 3

// Enricher derives structured attributes from job text with keyword
// heuristics. Every extraction carries a confidence in [0,1].
type Enricher struct{}

// NewEnricher creates an enricher.
func NewEnricher() *Enricher {
	return &Enricher{}
}

// Enrich runs all extractors over one record.
func (e *Enricher) Enrich(job *models.RawJob) *models.EnrichmentResult {
	text := strings.ToLower(job.Title + " " + job.Description)

	result := &models.EnrichmentResult{
		JobID:  job.ID,
		Fields: make(map[models.EnrichmentKind]models.EnrichmentValue),
	}

	if skills, conf := extractSkills(text); len(skills) > 0 {
		result.Fields[models.EnrichSkills] = models.EnrichmentValue{Value: skills, Confidence: conf}
	}
	if salary := normalizeSalary(job.Salary); salary != nil {
		conf := 0.6
		if salary.Min > 0 && salary.Max > 0 {
			conf = 0.8
		}
		result.Fields[models.EnrichSalaryNorm] = models.EnrichmentValue{Value: salary, Confidence: conf}
	}
	if loc, conf := normalizeLocationParts(job.Location, text); loc != nil {
		result.Fields[models.EnrichLocation] = models.EnrichmentValue{Value: loc, Confidence: conf}
	}

	category, catConf := classify(text, categoryKeywords, "other")
	result.Fields[models.EnrichCategory] = models.EnrichmentValue{Value: category, Confidence: catConf}

	seniority, senConf := classify(text, seniorityKeywords, "mid")
	result.Fields[models.EnrichSeniority] = models.EnrichmentValue{Value: seniority, Confidence: senConf}

	remote, remConf := classify(text, remoteKeywords, "on_site")
	result.Fields[models.EnrichRemoteType] = models.EnrichmentValue{Value: remote, Confidence: remConf}

	if benefits := extractBenefits(text); len(benefits) > 0 {
		result.Fields[models.EnrichBenefits] = models.EnrichmentValue{
			Value:      benefits,
			Confidence: minF(1.0, float64(len(benefits))/5.0),
		}
	}

	return result
}

// extractSkills intersects the job text with the taxonomy, grouped by
// category. Confidence grows with the number of matches.
func extractSkills(text string) (map[string][]string, float64) {
	found := make(map[string][]string)
	total := 0
	for category, skills := range skillTaxonomy {
		for _, skill := range skills {
			if containsWord(text, skill) {
				found[category] = append(found[category], skill)
				total++
			}
		}
	}
	if total == 0 {
		return nil, 0
	}
	return found, minF(1.0, float64(total)/10.0)
}

// normalizeSalary parses amounts, currency and period out of a salary
// string. Currency defaults to "unknown" when no USD/EUR/GBP signal exists.
func normalizeSalary(raw string) *models.NormalizedSalary {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	amounts := parseAmounts(raw)
	if len(amounts) == 0 {
		return nil
	}

	salary := &models.NormalizedSalary{
		Currency: "unknown",
		Period:   "year",
		Raw:      raw,
	}
	salary.Min = amounts[0]
	if len(amounts) >= 2 {
		salary.Max = amounts[1]
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(raw, "$") || strings.Contains(lower, "usd"):
		salary.Currency = "USD"
	case strings.Contains(raw, "€") || strings.Contains(lower, "eur"):
		salary.Currency = "EUR"
	case strings.Contains(raw, "£") || strings.Contains(lower, "gbp"):
		salary.Currency = "GBP"
	}

	switch {
	case strings.Contains(lower, "hour") || strings.Contains(lower, "/hr"):
		salary.Period = "hour"
	case strings.Contains(lower, "week"):
		salary.Period = "week"
	case strings.Contains(lower, "month"):
		salary.Period = "month"
	}

	return salary
}

// normalizeLocationParts splits a location by comma into city, state and
// country and detects the remote flag from location or job text.
func normalizeLocationParts(raw, text string) (*models.NormalizedLocation, float64) {
	raw = strings.TrimSpace(raw)
	remote := containsWord(text, "remote") || strings.EqualFold(raw, "remote")

	if raw == "" {
		if !remote {
			return nil, 0
		}
		return &models.NormalizedLocation{Remote: true, Raw: raw}, 0.7
	}

	loc := &models.NormalizedLocation{Remote: remote, Raw: raw}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		loc.City = parts[0]
	case 2:
		loc.City, loc.Country = parts[0], parts[1]
	default:
		loc.City, loc.State, loc.Country = parts[0], parts[1], parts[len(parts)-1]
	}

	conf := 0.5
	if len(parts) >= 2 {
		conf = 0.7
	}
	return loc, conf
}

// classify returns the best-scoring label from a keyword-weight table, or
// the fallback with zero confidence when nothing reaches the threshold.
func classify(text string, table map[string]map[string]int, fallback string) (string, float64) {
	best := fallback
	bestScore := 0
	for label, keywords := range table {
		score := 0
		for keyword, weight := range keywords {
			if strings.Contains(text, keyword) {
				score += weight
			}
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	if bestScore < classifierThreshold {
		return fallback, minF(1.0, float64(bestScore)/float64(classifierThreshold)) * 0.5
	}
	return best, minF(1.0, float64(bestScore)/float64(classifierThreshold))
}

func extractBenefits(text string) []string {
	var found []string
	for _, b := range benefitKeywords {
		if strings.Contains(text, b) {
			found = append(found, b)
		}
	}
	return found
}

// containsWord reports whether text contains term as a whole word.
func containsWord(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end >= len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// BuildEnrichedJob assembles the composite record handed to persistence.
func BuildEnrichedJob(job models.RawJob, validation *models.ValidationResult, enrichment *models.EnrichmentResult) *models.EnrichedJob {
	record := &models.EnrichedJob{
		Job:        job,
		Enrichment: enrichment,
	}
	if validation != nil {
		record.Validation = *validation
	}
	if record.Job.ID == "" {
		record.Job.ID = common.NewJobID()
	}
	return record
}
