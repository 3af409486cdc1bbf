package interfaces

import (
	"time"

	"github.com/ternarybob/venor/internal/models"
)

// TelemetryService maintains metric time series, evaluates alert thresholds
// and serves aggregate dashboard snapshots. It receives its input by
// subscribing to the event bus; components never call it directly.
type TelemetryService interface {
	// Record appends one point to a metric series and runs the threshold
	// evaluator over the updated series.
	Record(name models.MetricName, value float64, tags map[string]string)

	// Query returns the points of a series within [from, to] whose tags
	// include every entry of the tags filter.
	Query(name models.MetricName, from, to time.Time, tags map[string]string) []models.MetricPoint

	// EngineStats returns a snapshot of the per-engine rolling metrics.
	EngineStats() map[models.EngineType]models.EngineStats

	// Alerts returns alerts matching the filter, newest first.
	Alerts(filter models.AlertFilter) []*models.Alert

	// ResolveAlert marks an alert resolved. Returns false when unknown.
	ResolveAlert(id string) bool

	// PruneAlerts drops resolved alerts older than the cutoff, returning
	// the number removed.
	PruneAlerts(olderThan time.Time) int

	// Dashboard builds the aggregate snapshot for the control surface.
	Dashboard() *models.DashboardStats
}
