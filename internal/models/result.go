package models

import (
	"time"
)

// ResultStatus is the outcome classification of one scrape session
type ResultStatus string

const (
	ResultSuccess     ResultStatus = "success"
	ResultPartial     ResultStatus = "partial"
	ResultFailed      ResultStatus = "failed"
	ResultBlocked     ResultStatus = "blocked"
	ResultTimeout     ResultStatus = "timeout"
	ResultRateLimited ResultStatus = "rate_limited"
	ResultCancelled   ResultStatus = "cancelled"
)

// RawJob is an extracted job record before validation and enrichment.
// Adapters only emit records whose title and company are non-empty.
type RawJob struct {
	ID          string     `json:"id" badgerhold:"key"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Salary      string     `json:"salary,omitempty"`
	PostedDate  *time.Time `json:"posted_date,omitempty"`

	URL       string     `json:"url" badgerhold:"index"` // Absolute detail-page URL
	BoardID   string     `json:"board_id" badgerhold:"index"`
	BoardName string     `json:"board_name"`
	ScrapedAt time.Time  `json:"scraped_at"`
	Engine    EngineType `json:"engine"`
}

// HasRequiredFields reports whether the record qualifies for emission.
func (j *RawJob) HasRequiredFields() bool {
	return j.Title != "" && j.Company != ""
}

// ScrapeResult is the materialized outcome of one task.
type ScrapeResult struct {
	TaskID  string       `json:"task_id"`
	BoardID string       `json:"board_id"`
	Status  ResultStatus `json:"status"`

	Jobs []RawJob `json:"jobs,omitempty"`

	JobsFound    int `json:"jobs_found"`
	PagesScraped int `json:"pages_scraped"`
	Errors       int `json:"errors"` // Records skipped or pages failed

	Duration   time.Duration `json:"duration"`
	EngineUsed EngineType    `json:"engine_used"`
	Error      string        `json:"error,omitempty"`
}

// Succeeded reports whether the session produced usable output.
func (r *ScrapeResult) Succeeded() bool {
	return r.Status == ResultSuccess || r.Status == ResultPartial
}

// ScrapeSession is the persisted record of one executed task, combining the
// task snapshot with its result for telemetry warm-start and history queries.
type ScrapeSession struct {
	ID          string        `json:"id" badgerhold:"key"`
	TaskID      string        `json:"task_id" badgerhold:"index"`
	BoardID     string        `json:"board_id" badgerhold:"index"`
	BoardName   string        `json:"board_name"`
	Status      ResultStatus  `json:"status" badgerhold:"index"`
	EngineUsed  EngineType    `json:"engine_used"`
	JobsFound   int           `json:"jobs_found"`
	JobsUnique  int           `json:"jobs_unique"`
	Duplicates  int           `json:"duplicates"`
	Pages       int           `json:"pages"`
	Errors      int           `json:"errors"`
	AvgQuality  float64       `json:"avg_quality,omitempty"` // Mean validation score of the unique batch
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at" badgerhold:"index"`
}
