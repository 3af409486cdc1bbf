package models

import (
	"time"
)

// MetricName identifies one telemetry time series
type MetricName string

const (
	MetricScrapeSuccess MetricName = "scrape_success"   // 0/1 indicator
	MetricResponseTime  MetricName = "response_time"    // seconds
	MetricJobsFound     MetricName = "jobs_found"       // count per session
	MetricAnalysisTime  MetricName = "ai_analysis_time" // seconds
	MetricQualityScore  MetricName = "quality_score"    // [0,1]
)

// MetricPoint is one sample in a metric series.
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags,omitempty"` // board, engine
}

// AlertLevel grades an operational alert
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertError    AlertLevel = "error"
	AlertCritical AlertLevel = "critical"
)

// Alert is a thresholded operational notification. Resolution is explicit.
type Alert struct {
	ID         string            `json:"id" badgerhold:"key"`
	Level      AlertLevel        `json:"level" badgerhold:"index"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Source     string            `json:"source" badgerhold:"index"`
	Tags       map[string]string `json:"tags,omitempty"`
	CreatedAt  time.Time         `json:"created_at" badgerhold:"index"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}

// Resolved reports whether the alert has been resolved.
func (a *Alert) Resolved() bool {
	return a.ResolvedAt != nil
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Level    AlertLevel
	Resolved *bool
	Since    time.Time
	Limit    int
}

// EngineStats is the rolling performance record for one engine.
// EMA fields use exponential moving averages so recent behavior dominates.
type EngineStats struct {
	Engine          EngineType        `json:"engine"`
	TotalRequests   int64             `json:"total_requests"`
	Successes       int64             `json:"successes"`
	Failures        int64             `json:"failures"`
	EMAResponseTime float64           `json:"ema_response_time"` // seconds
	EMASuccessRate  float64           `json:"ema_success_rate"`  // [0,1]
	JobsScraped     int64             `json:"jobs_scraped"`
	LastUsedAt      time.Time         `json:"last_used_at"`
	ErrorCounts     map[ErrorKind]int `json:"error_counts,omitempty"`
}

// HealthStatus classifies the composite dashboard score
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"  // score >= 80
	HealthDegraded HealthStatus = "degraded" // score >= 60
	HealthCritical HealthStatus = "critical"
)

// BoardPerformance is one entry of the top-boards dashboard listing.
type BoardPerformance struct {
	BoardID     string  `json:"board_id"`
	BoardName   string  `json:"board_name"`
	SuccessRate float64 `json:"success_rate"`
	JobsScraped int     `json:"jobs_scraped"`
	Sessions    int     `json:"sessions"`
}

// DashboardStats is the aggregate snapshot served to the control surface.
type DashboardStats struct {
	TotalSessions   int                        `json:"total_sessions"`
	TotalJobs       int                        `json:"total_jobs"`
	SuccessRate     float64                    `json:"success_rate"`
	AvgResponseTime float64                    `json:"avg_response_time"` // seconds
	ActiveSessions  int                        `json:"active_sessions"`
	ActiveAlerts    int                        `json:"active_alerts"`
	TopBoards       []BoardPerformance         `json:"top_boards"`
	Engines         map[EngineType]EngineStats `json:"engines"`
	HealthScore     float64                    `json:"health_score"` // [0,100]
	Health          HealthStatus               `json:"health"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}
