package models

import (
	"time"
)

// EngineType identifies the fetch+extract strategy used for a board
type EngineType string

const (
	EngineStatic  EngineType = "static"  // Plain HTTP GET + HTML parsing
	EngineBrowser EngineType = "browser" // Headless browser for JS-heavy sites
	EngineFeed    EngineType = "feed"    // RSS/Atom feed
	EngineAuto    EngineType = "auto"    // Let the router decide
)

// ValidEngines is the set of engine values accepted from catalog files.
var ValidEngines = []EngineType{EngineStatic, EngineBrowser, EngineFeed, EngineAuto}

// SelectorMap maps logical field names to CSS expressions. A value is either
// a single selector or an ordered fallback list; first match wins.
//
// Recognized keys: job_title, company, location, description, salary,
// date_posted, apply_url, job_links, next_page.
type SelectorMap map[string][]string

// Get returns the fallback list for a field, or nil when unset.
func (m SelectorMap) Get(field string) []string {
	if m == nil {
		return nil
	}
	return m[field]
}

// Merge overlays other onto m, returning a new map. Fields present in other
// replace the corresponding fields in m.
func (m SelectorMap) Merge(other SelectorMap) SelectorMap {
	merged := make(SelectorMap, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// JobBoard represents a configured scrape target. Boards are created by
// catalog load and mutated by advisor analysis and performance updates.
type JobBoard struct {
	ID      string `json:"id" badgerhold:"key" validate:"required"`
	Name    string `json:"name" validate:"required"`
	BaseURL string `json:"base_url" toml:"base_url" yaml:"base_url" validate:"required,url"`

	Engine   EngineType `json:"engine" badgerhold:"index"` // static, browser, feed or auto
	Region   string     `json:"region,omitempty"`
	Category string     `json:"category,omitempty"`

	Selectors SelectorMap `json:"selectors,omitempty"`

	// Rate limiting and concurrency
	RateLimitDelay time.Duration     `json:"rate_limit_delay" toml:"rate_limit_delay" yaml:"rate_limit_delay"`
	MaxConcurrent  int               `json:"max_concurrent" toml:"max_concurrent" yaml:"max_concurrent"`
	Headers        map[string]string `json:"headers,omitempty"`

	// Flags
	RequiresJS bool `json:"requires_js" toml:"requires_js" yaml:"requires_js"`
	HasAntiBot bool `json:"has_anti_bot" toml:"has_anti_bot" yaml:"has_anti_bot"`
	Active     bool `json:"active"`
	Priority   int  `json:"priority" validate:"omitempty,min=1,max=10"` // 1 (lowest) to 10

	// Advisor analysis metadata
	LastAnalyzedAt     *time.Time `json:"last_analyzed_at,omitempty"`
	AnalysisConfidence float64    `json:"analysis_confidence,omitempty"`

	// Rolling performance, maintained by telemetry flushes
	SuccessRate     float64 `json:"success_rate,omitempty"`
	AvgResponseTime float64 `json:"avg_response_time,omitempty"` // seconds

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnalysisFresh reports whether the board's advisor analysis is within ttl.
func (b *JobBoard) AnalysisFresh(ttl time.Duration, now time.Time) bool {
	return b.LastAnalyzedAt != nil && now.Sub(*b.LastAnalyzedAt) < ttl
}

// EffectiveEngine resolves the engine the router should start with when no
// fresh advisor recommendation is available. An explicit hint always wins;
// requires_js forces the browser engine for auto boards.
func (b *JobBoard) EffectiveEngine() EngineType {
	if b.Engine != "" && b.Engine != EngineAuto {
		return b.Engine
	}
	if b.RequiresJS {
		return EngineBrowser
	}
	return EngineStatic
}
