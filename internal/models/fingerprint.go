package models

import (
	"time"
)

// Fingerprint is the deduplication identity of a job record: exact hashes
// for fast matching plus a token set for fuzzy similarity.
type Fingerprint struct {
	JobID string `json:"job_id"`

	ContentHash     string `json:"content_hash"`     // MD5 of "title|company|location" (normalized)
	DescriptionHash string `json:"description_hash"` // MD5 of normalized description
	NormalizedURL   string `json:"normalized_url"`

	NormTitle    string `json:"norm_title"`
	NormCompany  string `json:"norm_company"`
	NormLocation string `json:"norm_location"`

	Tokens map[string]struct{} `json:"-"`

	InsertedAt time.Time `json:"inserted_at"`
}

// DedupStats summarizes deduplicator throughput.
type DedupStats struct {
	TotalProcessed  int     `json:"total_processed"`
	DuplicatesFound int     `json:"duplicates_found"`
	UniqueKept      int     `json:"unique_kept"`
	DedupRate       float64 `json:"dedup_rate"`
	StoreSize       int     `json:"store_size"`
}

// DedupOutcome is the per-batch result of running jobs through the
// deduplicator: unique survivors plus duplicates grouped by the surviving
// original's content hash.
type DedupOutcome struct {
	Unique     []RawJob            `json:"unique"`
	Duplicates map[string][]RawJob `json:"duplicates"` // keyed by original content hash
}
