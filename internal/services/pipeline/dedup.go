package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/models"
)

// DedupConfig bounds the fingerprint store and tunes fuzzy matching.
type DedupConfig struct {
	SimilarityThreshold float64 // Weighted similarity at or above this is a duplicate
	MaxFingerprints     int     // Store cap before eviction
	EvictBatch          int     // Oldest entries dropped per eviction
}

// DefaultDedupConfig returns the standard bounds.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		SimilarityThreshold: 0.85,
		MaxFingerprints:     10000,
		EvictBatch:          1000,
	}
}

// Deduplicator filters raw jobs against a bounded in-process fingerprint
// store. Matching is exact (content hash, normalized URL) first, then fuzzy
// over weighted field similarity.
type Deduplicator struct {
	config DedupConfig
	logger arbor.ILogger

	mu         sync.Mutex
	byHash     map[string]*models.Fingerprint
	byURL      map[string]*models.Fingerprint
	order      []*models.Fingerprint // insertion order, for eviction
	processed  int
	duplicates int
	unique     int
}

// NewDeduplicator creates a deduplicator with the given bounds.
func NewDeduplicator(config DedupConfig) *Deduplicator {
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = 0.85
	}
	if config.MaxFingerprints <= 0 {
		config.MaxFingerprints = 10000
	}
	if config.EvictBatch <= 0 {
		config.EvictBatch = 1000
	}
	return &Deduplicator{
		config: config,
		logger: common.GetLogger(),
		byHash: make(map[string]*models.Fingerprint),
		byURL:  make(map[string]*models.Fingerprint),
	}
}

// ComputeFingerprint derives the deduplication identity of a job. The
// computation is deterministic: equal jobs produce equal fingerprints.
func ComputeFingerprint(job *models.RawJob) *models.Fingerprint {
	normTitle := normalizeTitle(job.Title)
	normCompany := normalizeText(job.Company)
	normLocation := normalizeLocation(job.Location)

	tokens := make(map[string]struct{})
	for _, tok := range tokenize(job.Title, 0) {
		tokens[tok] = struct{}{}
	}
	for _, tok := range tokenize(job.Company, 0) {
		tokens[tok] = struct{}{}
	}
	for _, tok := range tokenize(job.Location, 0) {
		tokens[tok] = struct{}{}
	}
	for _, tok := range tokenize(job.Description, 100) {
		tokens[tok] = struct{}{}
	}

	return &models.Fingerprint{
		JobID:           job.ID,
		ContentHash:     md5Hex(normTitle + "|" + normCompany + "|" + normLocation),
		DescriptionHash: md5Hex(normalizeText(job.Description)),
		NormalizedURL:   common.NormalizeURL(job.URL),
		NormTitle:       normTitle,
		NormCompany:     normCompany,
		NormLocation:    normLocation,
		Tokens:          tokens,
	}
}

// Filter partitions a batch into unique survivors and duplicates, inserting
// each survivor's fingerprint into the store. Duplicates are grouped by the
// surviving original's content hash. Filtering the unique output again
// yields the same set.
func (d *Deduplicator) Filter(jobs []models.RawJob) *models.DedupOutcome {
	outcome := &models.DedupOutcome{
		Duplicates: make(map[string][]models.RawJob),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range jobs {
		job := jobs[i]
		fp := ComputeFingerprint(&job)
		d.processed++

		if original := d.findDuplicateLocked(fp); original != nil {
			d.duplicates++
			outcome.Duplicates[original.ContentHash] = append(outcome.Duplicates[original.ContentHash], job)
			continue
		}

		d.insertLocked(fp)
		d.unique++
		outcome.Unique = append(outcome.Unique, job)
	}

	return outcome
}

// IsDuplicate checks one job against the store without inserting it.
func (d *Deduplicator) IsDuplicate(job *models.RawJob) bool {
	fp := ComputeFingerprint(job)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findDuplicateLocked(fp) != nil
}

// Stats returns a snapshot of deduplicator throughput.
func (d *Deduplicator) Stats() models.DedupStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	rate := 0.0
	if d.processed > 0 {
		rate = float64(d.duplicates) / float64(d.processed)
	}
	return models.DedupStats{
		TotalProcessed:  d.processed,
		DuplicatesFound: d.duplicates,
		UniqueKept:      d.unique,
		DedupRate:       rate,
		StoreSize:       len(d.order),
	}
}

// findDuplicateLocked returns the stored fingerprint the candidate
// duplicates, or nil. Exact matches first, then weighted fuzzy similarity;
// the first fingerprint at or above the threshold wins.
func (d *Deduplicator) findDuplicateLocked(fp *models.Fingerprint) *models.Fingerprint {
	if original, ok := d.byHash[fp.ContentHash]; ok {
		return original
	}
	if fp.NormalizedURL != "" {
		if original, ok := d.byURL[fp.NormalizedURL]; ok {
			return original
		}
	}

	for _, stored := range d.order {
		score := 0.3*similarityRatio(fp.NormTitle, stored.NormTitle) +
			0.2*similarityRatio(fp.NormCompany, stored.NormCompany) +
			0.1*similarityRatio(fp.NormLocation, stored.NormLocation) +
			0.4*jaccard(fp.Tokens, stored.Tokens)
		if score >= d.config.SimilarityThreshold {
			return stored
		}
	}
	return nil
}

func (d *Deduplicator) insertLocked(fp *models.Fingerprint) {
	fp.InsertedAt = time.Now()
	d.byHash[fp.ContentHash] = fp
	if fp.NormalizedURL != "" {
		d.byURL[fp.NormalizedURL] = fp
	}
	d.order = append(d.order, fp)

	if len(d.order) > d.config.MaxFingerprints {
		d.evictLocked()
	}
}

// evictLocked drops the oldest EvictBatch fingerprints by insertion order.
func (d *Deduplicator) evictLocked() {
	n := d.config.EvictBatch
	if n > len(d.order) {
		n = len(d.order)
	}
	for _, fp := range d.order[:n] {
		delete(d.byHash, fp.ContentHash)
		if fp.NormalizedURL != "" {
			if cur, ok := d.byURL[fp.NormalizedURL]; ok && cur == fp {
				delete(d.byURL, fp.NormalizedURL)
			}
		}
	}
	d.order = append([]*models.Fingerprint(nil), d.order[n:]...)

	d.logger.Debug().
		Int("evicted", n).
		Int("remaining", len(d.order)).
		Msg("Fingerprint store trimmed")
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
