package pipeline

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ternarybob/venor/internal/models"
)

var (
	urlPattern     = regexp.MustCompile(`^https?://`)
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	looseAtPattern = regexp.MustCompile(`\S+@\S+`)
	numberRunRe    = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	placeholderRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)lorem ipsum`),
		regexp.MustCompile(`\[[^\]]+\]`),
		regexp.MustCompile(`(?i)xxx+`),
		regexp.MustCompile(`(?i)\btbd\b`),
		regexp.MustCompile(`(?i)\bplaceholder\b`),
	}
)

// spamKeywords maps risk keywords to their weight.
var spamKeywords = map[string]int{
	// High risk
	"make money fast":         3,
	"no experience necessary": 3,
	"wire transfer":           3,
	"registration fee":        3,
	// Medium risk
	"work from home guaranteed": 2,
	"unlimited earning":         2,
	"be your own boss":          2,
	"quick cash":                2,
	// Low risk
	"urgent hiring":   1,
	"immediate start": 1,
	"apply now":       1,
}

// englishMarkers are common English function words used by the language
// heuristic.
var englishMarkers = []string{
	" the ", " and ", " for ", " with ", " you ", " are ", " will ",
	" this ", " that ", " have ", " work ",
}

// Validator scores job records against the rule catalog. A record is valid
// iff no critical issue is found; the quality score subtracts a per-severity
// penalty for each issue.
type Validator struct {
	dedup *Deduplicator
}

// NewValidator creates a validator. dedup may be nil when duplicate
// checking is handled upstream.
func NewValidator(dedup *Deduplicator) *Validator {
	return &Validator{dedup: dedup}
}

// Validate runs the full rule catalog over one record.
func (v *Validator) Validate(job *models.RawJob) *models.ValidationResult {
	var issues []models.ValidationIssue

	issues = append(issues, checkRequiredFields(job)...)
	issues = append(issues, checkFieldFormats(job)...)
	issues = append(issues, checkLengthBounds(job)...)
	issues = append(issues, checkDateSanity(job, time.Now())...)
	issues = append(issues, checkSalarySanity(job)...)
	issues = append(issues, checkContentQuality(job)...)
	issues = append(issues, checkLanguage(job)...)
	issues = append(issues, checkSpamScore(job)...)

	if v.dedup != nil && v.dedup.IsDuplicate(job) {
		issues = append(issues, models.ValidationIssue{
			Rule:     "duplicate",
			Severity: models.SeverityWarning,
			Message:  "record matches an already seen job",
		})
	}

	score := 1.0
	critical := false
	for _, issue := range issues {
		score -= issue.Severity.Penalty()
		if issue.Severity == models.SeverityCritical {
			critical = true
		}
	}
	if score < 0 {
		score = 0
	}

	return &models.ValidationResult{
		JobID:        job.ID,
		IsValid:      !critical,
		QualityScore: round3(score),
		Issues:       issues,
	}
}

func checkRequiredFields(job *models.RawJob) []models.ValidationIssue {
	var issues []models.ValidationIssue

	required := []struct {
		field    string
		value    string
		severity models.Severity
	}{
		{"title", job.Title, models.SeverityCritical},
		{"company", job.Company, models.SeverityError},
		{"description", job.Description, models.SeverityError},
		{"url", job.URL, models.SeverityCritical},
		{"location", job.Location, models.SeverityWarning},
	}

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			issues = append(issues, models.ValidationIssue{
				Rule:       "required_field",
				Severity:   r.severity,
				Field:      r.field,
				Message:    r.field + " is missing or empty",
				Suggestion: "check the board's " + r.field + " selector",
			})
		}
	}
	return issues
}

func checkFieldFormats(job *models.RawJob) []models.ValidationIssue {
	var issues []models.ValidationIssue

	if job.URL != "" {
		if !urlPattern.MatchString(job.URL) {
			issues = append(issues, models.ValidationIssue{
				Rule:     "url_format",
				Severity: models.SeverityError,
				Field:    "url",
				Message:  "url does not start with http:// or https://",
			})
		} else if !parseableURL(job.URL) {
			issues = append(issues, models.ValidationIssue{
				Rule:     "url_structure",
				Severity: models.SeverityError,
				Field:    "url",
				Message:  "url is not parseable with scheme and host",
			})
		}
	}

	// Anything that looks like an email must actually be one
	for _, candidate := range looseAtPattern.FindAllString(job.Description, 10) {
		if strings.Count(candidate, "@") >= 1 && !emailPattern.MatchString(candidate) {
			issues = append(issues, models.ValidationIssue{
				Rule:     "email_format",
				Severity: models.SeverityWarning,
				Field:    "description",
				Message:  "malformed email-like string: " + candidate,
			})
			break
		}
	}

	return issues
}

func checkLengthBounds(job *models.RawJob) []models.ValidationIssue {
	var issues []models.ValidationIssue

	bounds := []struct {
		field    string
		value    string
		min, max int
		severity models.Severity
	}{
		{"title", job.Title, 10, 200, models.SeverityWarning},
		{"description", job.Description, 50, 10000, models.SeverityWarning},
		{"company", job.Company, 2, 100, models.SeverityInfo},
	}

	for _, b := range bounds {
		n := len(b.value)
		if n == 0 {
			continue // required-field rule covers empties
		}
		if n < b.min {
			issues = append(issues, models.ValidationIssue{
				Rule:     "length_bounds",
				Severity: b.severity,
				Field:    b.field,
				Message:  b.field + " shorter than expected (" + strconv.Itoa(n) + " chars)",
			})
		} else if n > b.max {
			issues = append(issues, models.ValidationIssue{
				Rule:     "length_bounds",
				Severity: b.severity,
				Field:    b.field,
				Message:  b.field + " longer than expected (" + strconv.Itoa(n) + " chars)",
			})
		}
	}
	return issues
}

func checkDateSanity(job *models.RawJob, now time.Time) []models.ValidationIssue {
	var issues []models.ValidationIssue

	if job.ScrapedAt.After(now.Add(time.Hour)) {
		issues = append(issues, models.ValidationIssue{
			Rule:     "date_sanity",
			Severity: models.SeverityWarning,
			Field:    "scraped_at",
			Message:  "scrape time is more than 1h in the future",
		})
	}
	if !job.ScrapedAt.IsZero() && job.ScrapedAt.Before(now.AddDate(-1, 0, 0)) {
		issues = append(issues, models.ValidationIssue{
			Rule:     "date_sanity",
			Severity: models.SeverityInfo,
			Field:    "scraped_at",
			Message:  "scrape time is more than a year old",
		})
	}
	if job.PostedDate != nil && job.PostedDate.After(now.AddDate(0, 0, 1)) {
		issues = append(issues, models.ValidationIssue{
			Rule:     "date_sanity",
			Severity: models.SeverityWarning,
			Field:    "posted_date",
			Message:  "posted date is more than a day in the future",
		})
	}
	return issues
}

func checkSalarySanity(job *models.RawJob) []models.ValidationIssue {
	if strings.TrimSpace(job.Salary) == "" {
		return nil
	}

	var issues []models.ValidationIssue
	amounts := parseAmounts(job.Salary)
	hourly := strings.Contains(strings.ToLower(job.Salary), "hour") ||
		strings.Contains(strings.ToLower(job.Salary), "/hr")

	for _, amount := range amounts {
		if amount > 1000000 {
			issues = append(issues, models.ValidationIssue{
				Rule:     "salary_sanity",
				Severity: models.SeverityWarning,
				Field:    "salary",
				Message:  "salary amount above 1,000,000",
			})
			break
		}
		if amount < 1000 && !hourly {
			issues = append(issues, models.ValidationIssue{
				Rule:     "salary_sanity",
				Severity: models.SeverityWarning,
				Field:    "salary",
				Message:  "annual salary amount below 1,000",
			})
			break
		}
	}

	if len(amounts) >= 2 && amounts[0] > amounts[1] {
		issues = append(issues, models.ValidationIssue{
			Rule:       "salary_range",
			Severity:   models.SeverityError,
			Field:      "salary",
			Message:    "salary range minimum exceeds maximum",
			Suggestion: "check the salary selector for swapped bounds",
		})
	}
	return issues
}

func checkContentQuality(job *models.RawJob) []models.ValidationIssue {
	var issues []models.ValidationIssue
	desc := job.Description

	for _, re := range placeholderRes {
		if re.MatchString(desc) || re.MatchString(job.Title) {
			issues = append(issues, models.ValidationIssue{
				Rule:     "placeholder_content",
				Severity: models.SeverityWarning,
				Field:    "description",
				Message:  "placeholder pattern detected",
			})
			break
		}
	}

	words := strings.Fields(strings.ToLower(desc))
	if len(words) > 0 {
		freq := make(map[string]int)
		longWords := 0
		for _, w := range words {
			if len(w) > 3 {
				freq[w]++
				longWords++
			}
		}
		for w, n := range freq {
			if longWords > 0 && float64(n)/float64(len(words)) > 0.10 {
				issues = append(issues, models.ValidationIssue{
					Rule:     "word_repetition",
					Severity: models.SeverityWarning,
					Field:    "description",
					Message:  "word repeated excessively: " + w,
				})
				break
			}
		}

		meaningful := 0
		for _, w := range words {
			if len(w) > 3 && isAlphabetic(w) {
				meaningful++
			}
		}
		if meaningful < 10 {
			issues = append(issues, models.ValidationIssue{
				Rule:     "thin_content",
				Severity: models.SeverityWarning,
				Field:    "description",
				Message:  "fewer than 10 meaningful words in description",
			})
		}
	}

	return issues
}

func checkLanguage(job *models.RawJob) []models.ValidationIssue {
	text := " " + strings.ToLower(job.Description) + " "

	englishCount := 0
	for _, marker := range englishMarkers {
		if strings.Contains(text, marker) {
			englishCount++
		}
	}

	nonEnglish := false
	for _, r := range job.Description {
		if r > unicode.MaxASCII && unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			nonEnglish = true
			break
		}
	}

	if englishCount < 3 && nonEnglish {
		return []models.ValidationIssue{{
			Rule:     "language",
			Severity: models.SeverityInfo,
			Field:    "description",
			Message:  "description does not appear to be English",
		}}
	}
	return nil
}

func checkSpamScore(job *models.RawJob) []models.ValidationIssue {
	score := 0
	haystack := strings.ToLower(job.Title + " " + job.Description)

	for keyword, weight := range spamKeywords {
		if strings.Contains(haystack, keyword) {
			score += weight
		}
	}

	// Excessive caps in title
	letters, caps := 0, 0
	for _, r := range job.Title {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				caps++
			}
		}
	}
	if letters > 0 && float64(caps)/float64(letters) > 0.70 {
		score += 2
	}

	if strings.Count(job.Description, "!")+strings.Count(job.Description, "?") > 10 {
		score++
	}

	var severity models.Severity
	switch {
	case score >= 5:
		severity = models.SeverityError
	case score >= 3:
		severity = models.SeverityWarning
	case score >= 1:
		severity = models.SeverityInfo
	default:
		return nil
	}

	return []models.ValidationIssue{{
		Rule:     "spam_score",
		Severity: severity,
		Message:  "spam score " + strconv.Itoa(score),
	}}
}

func parseableURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// parseAmounts extracts numeric runs from a salary string, normalizing "k"
// suffixes.
func parseAmounts(s string) []float64 {
	var out []float64
	lower := strings.ToLower(s)
	matches := numberRunRe.FindAllStringIndex(lower, 4)
	for _, m := range matches {
		raw := strings.ReplaceAll(lower[m[0]:m[1]], ",", "")
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if m[1] < len(lower) && lower[m[1]] == 'k' {
			val *= 1000
		}
		out = append(out, val)
	}
	return out
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
