package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/models"
)

func rawJob(title, company, location, url string) models.RawJob {
	return models.RawJob{
		ID:          "job_" + title,
		Title:       title,
		Company:     company,
		Location:    location,
		URL:         url,
		Description: "We are looking for a " + title + " to join " + company + ".",
	}
}

func TestFingerprintDeterminism(t *testing.T) {
	job := rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1")

	a := ComputeFingerprint(&job)
	b := ComputeFingerprint(&job)

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.Equal(t, a.DescriptionHash, b.DescriptionHash)
	assert.Equal(t, a.NormalizedURL, b.NormalizedURL)
	assert.Equal(t, a.Tokens, b.Tokens)
}

func TestFilterExactContentDuplicate(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())

	jobs := []models.RawJob{
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1"),
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/other"),
	}

	outcome := d.Filter(jobs)
	assert.Len(t, outcome.Unique, 1)
	require.Len(t, outcome.Duplicates, 1)
}

func TestFilterTitleAffixesCollide(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())

	jobs := []models.RawJob{
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1"),
		rawJob("Senior Go Engineer (Remote)", "Acme", "Berlin", "https://example.com/jobs/2"),
	}

	outcome := d.Filter(jobs)
	assert.Len(t, outcome.Unique, 1)
}

func TestFilterURLDuplicate(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())

	jobs := []models.RawJob{
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1"),
		rawJob("Totally Different Title", "Other Co", "Paris", "https://Example.com/jobs/1/"),
	}

	outcome := d.Filter(jobs)
	assert.Len(t, outcome.Unique, 1)
}

func TestFilterLocationAlias(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())

	jobs := []models.RawJob{
		rawJob("Go Engineer", "Acme", "NYC", "https://example.com/jobs/1"),
		rawJob("Go Engineer", "Acme", "New York", "https://example.com/jobs/2"),
	}

	outcome := d.Filter(jobs)
	assert.Len(t, outcome.Unique, 1)
}

func TestFilterDistinctJobsSurvive(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())

	jobs := []models.RawJob{
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1"),
		rawJob("Accountant", "Beta GmbH", "Munich", "https://example.com/jobs/2"),
		rawJob("Truck Driver", "Gamma Logistics", "Hamburg", "https://example.com/jobs/3"),
	}

	outcome := d.Filter(jobs)
	assert.Len(t, outcome.Unique, 3)
	assert.Empty(t, outcome.Duplicates)
}

func TestFilterPartitionInvariant(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())

	var jobs []models.RawJob
	for i := 0; i < 20; i++ {
		jobs = append(jobs, rawJob(fmt.Sprintf("Engineer %d", i%7), "Acme", "Berlin",
			fmt.Sprintf("https://example.com/jobs/%d", i%7)))
	}

	outcome := d.Filter(jobs)
	dupCount := 0
	for _, group := range outcome.Duplicates {
		dupCount += len(group)
	}
	assert.Equal(t, len(jobs), len(outcome.Unique)+dupCount)
}

func TestFilterIdempotentOnUnique(t *testing.T) {
	first := NewDeduplicator(DefaultDedupConfig())
	jobs := []models.RawJob{
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1"),
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1"),
		rawJob("Accountant", "Beta", "Munich", "https://example.com/jobs/2"),
	}
	unique := first.Filter(jobs).Unique

	second := NewDeduplicator(DefaultDedupConfig())
	again := second.Filter(unique)
	assert.Equal(t, len(unique), len(again.Unique))
	assert.Empty(t, again.Duplicates)
}

func TestEvictionKeepsStoreBounded(t *testing.T) {
	config := DedupConfig{
		SimilarityThreshold: 0.99,
		MaxFingerprints:     10,
		EvictBatch:          4,
	}
	d := NewDeduplicator(config)

	var jobs []models.RawJob
	for i := 0; i < 25; i++ {
		jobs = append(jobs, rawJob(
			fmt.Sprintf("Unique Role %d Alpha Beta", i),
			fmt.Sprintf("Company %d", i),
			fmt.Sprintf("City %d", i),
			fmt.Sprintf("https://example.com/jobs/%d", i)))
	}
	d.Filter(jobs)

	stats := d.Stats()
	assert.LessOrEqual(t, stats.StoreSize, config.MaxFingerprints)
}

func TestStats(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())

	d.Filter([]models.RawJob{
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1"),
		rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1"),
	})

	stats := d.Stats()
	assert.Equal(t, 2, stats.TotalProcessed)
	assert.Equal(t, 1, stats.DuplicatesFound)
	assert.Equal(t, 1, stats.UniqueKept)
	assert.InDelta(t, 0.5, stats.DedupRate, 0.001)
}

func TestIsDuplicateDoesNotInsert(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig())
	job := rawJob("Go Engineer", "Acme", "Berlin", "https://example.com/jobs/1")

	assert.False(t, d.IsDuplicate(&job))
	assert.False(t, d.IsDuplicate(&job), "checking must not insert")

	d.Filter([]models.RawJob{job})
	assert.True(t, d.IsDuplicate(&job))
}
