package models

import (
	"time"
)

// BoardAnalysis is the advisor's assessment of a job board given a URL and
// an HTML sample. Malformed or failed advisor calls never surface here; the
// caller substitutes the deterministic fallback instead.
type BoardAnalysis struct {
	BoardID           string      `json:"board_id"`
	RecommendedEngine EngineType  `json:"recommended_engine"`
	Complexity        float64     `json:"complexity"` // [0,1]
	Selectors         SelectorMap `json:"selectors,omitempty"`
	AntiBotMeasures   []string    `json:"anti_bot_measures,omitempty"`
	RateLimitRPM      int         `json:"rate_limit_rpm,omitempty"`
	RequiresJS        bool        `json:"requires_js"`
	Confidence        float64     `json:"confidence"` // [0,1]
	AnalyzedAt        time.Time   `json:"analyzed_at"`
	Fallback          bool        `json:"fallback"` // True when produced without an AI provider
}

// ContentReview is the advisor's quality judgment on one extracted job.
type ContentReview struct {
	Quality           float64  `json:"quality"`      // [0,1]
	Completeness      float64  `json:"completeness"` // [0,1]
	Relevance         float64  `json:"relevance"`    // [0,1]
	Issues            []string `json:"issues,omitempty"`
	Suggestions       []string `json:"suggestions,omitempty"`
	IsDuplicateLikely bool     `json:"is_duplicate_likely"`
}

// TuningAdvice is the advisor's parameter recommendation derived from
// recent performance data for a board.
type TuningAdvice struct {
	Delay       time.Duration `json:"delay"`
	Concurrency int           `json:"concurrency"`
	Timeout     time.Duration `json:"timeout"`
	UAStrategy  string        `json:"ua_strategy"`
	UseProxy    bool          `json:"use_proxy"`
	Notes       []string      `json:"notes,omitempty"`
}

// BoardPerformanceData is the input to parameter tuning: the recent
// operational profile of one board.
type BoardPerformanceData struct {
	BoardID         string  `json:"board_id"`
	SuccessRate     float64 `json:"success_rate"`
	AvgResponseTime float64 `json:"avg_response_time"` // seconds
	ErrorRate       float64 `json:"error_rate"`
	RateLimitHits   int     `json:"rate_limit_hits"`
	BlockedCount    int     `json:"blocked_count"`
	Sessions        int     `json:"sessions"`
}
