package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/models"
)

func validJob() *models.RawJob {
	return &models.RawJob{
		ID:      "job_1",
		Title:   "Senior Go Engineer",
		Company: "Acme Corp",
		Location: "Berlin, Germany",
		Description: "We are building the next generation of distributed scraping " +
			"infrastructure and need an engineer who enjoys working with concurrent " +
			"systems, careful failure handling and clean interfaces across services.",
		URL:       "https://example.com/jobs/1",
		ScrapedAt: time.Now(),
	}
}

func TestValidateCleanRecord(t *testing.T) {
	v := NewValidator(nil)

	result := v.Validate(validJob())
	assert.True(t, result.IsValid)
	assert.Equal(t, 1.0, result.QualityScore)
	assert.Empty(t, result.Issues)
}

func TestValidateMissingTitleIsCritical(t *testing.T) {
	v := NewValidator(nil)
	job := validJob()
	job.Title = ""

	result := v.Validate(job)
	assert.False(t, result.IsValid)

	found := false
	for _, issue := range result.Issues {
		if issue.Field == "title" && issue.Severity == models.SeverityCritical {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateScoreNeverNegative(t *testing.T) {
	v := NewValidator(nil)
	job := &models.RawJob{ID: "job_empty"}

	result := v.Validate(job)
	assert.GreaterOrEqual(t, result.QualityScore, 0.0)
	assert.LessOrEqual(t, result.QualityScore, 1.0)
	assert.False(t, result.IsValid)
}

func TestValidatePenaltiesApplied(t *testing.T) {
	v := NewValidator(nil)
	job := validJob()
	job.Location = "" // single warning, penalty 0.15

	result := v.Validate(job)
	assert.True(t, result.IsValid)
	assert.InDelta(t, 0.85, result.QualityScore, 0.001)
}

func TestValidateBadURL(t *testing.T) {
	v := NewValidator(nil)
	job := validJob()
	job.URL = "not-a-url"

	result := v.Validate(job)
	found := false
	for _, issue := range result.Issues {
		if issue.Rule == "url_format" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateLengthBounds(t *testing.T) {
	v := NewValidator(nil)

	job := validJob()
	job.Title = "Too short"
	result := v.Validate(job)
	assert.True(t, hasRule(result, "length_bounds"))

	job = validJob()
	job.Description = strings.Repeat("long description text ", 500)
	result = v.Validate(job)
	assert.True(t, hasRule(result, "length_bounds"))
}

func TestValidateFutureDates(t *testing.T) {
	v := NewValidator(nil)
	job := validJob()
	job.ScrapedAt = time.Now().Add(2 * time.Hour)
	future := time.Now().AddDate(0, 0, 3)
	job.PostedDate = &future

	result := v.Validate(job)
	count := 0
	for _, issue := range result.Issues {
		if issue.Rule == "date_sanity" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestValidateSalaryRange(t *testing.T) {
	v := NewValidator(nil)

	job := validJob()
	job.Salary = "$120,000 - $90,000"
	result := v.Validate(job)
	assert.True(t, hasRule(result, "salary_range"))

	job = validJob()
	job.Salary = "$90,000 - $120,000 per year"
	result = v.Validate(job)
	assert.False(t, hasRule(result, "salary_range"))

	job = validJob()
	job.Salary = "$25 per hour"
	result = v.Validate(job)
	assert.False(t, hasRule(result, "salary_sanity"), "hourly rates under 1000 are fine")

	job = validJob()
	job.Salary = "$500 per year"
	result = v.Validate(job)
	assert.True(t, hasRule(result, "salary_sanity"))
}

func TestValidatePlaceholderContent(t *testing.T) {
	v := NewValidator(nil)
	job := validJob()
	job.Description = "Lorem ipsum dolor sit amet " + job.Description

	result := v.Validate(job)
	assert.True(t, hasRule(result, "placeholder_content"))
}

func TestValidateThinContent(t *testing.T) {
	v := NewValidator(nil)
	job := validJob()
	job.Description = "Work with us now on big and cool stuff here okay yes"

	result := v.Validate(job)
	assert.True(t, hasRule(result, "thin_content"))
}

func TestValidateSpamScore(t *testing.T) {
	v := NewValidator(nil)
	job := validJob()
	job.Title = "MAKE MONEY FAST NOW!!!"
	job.Description = validJob().Description +
		" Make money fast with no experience necessary! Just pay a small registration fee." +
		strings.Repeat(" Amazing!!", 6)

	result := v.Validate(job)
	require.True(t, hasRule(result, "spam_score"))
	for _, issue := range result.Issues {
		if issue.Rule == "spam_score" {
			assert.Equal(t, models.SeverityError, issue.Severity)
		}
	}
}

func TestValidateDuplicateUsesDeduplicator(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())
	v := NewValidator(d)

	job := validJob()
	d.Filter([]models.RawJob{*job})

	result := v.Validate(job)
	assert.True(t, hasRule(result, "duplicate"))
}

func hasRule(result *models.ValidationResult, rule string) bool {
	for _, issue := range result.Issues {
		if issue.Rule == rule {
			return true
		}
	}
	return false
}
