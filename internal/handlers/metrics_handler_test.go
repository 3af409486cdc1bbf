package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/venor/internal/models"
)

type fakeTelemetry struct {
	points   []models.MetricPoint
	alerts   []*models.Alert
	resolved []string

	lastName models.MetricName
	lastTags map[string]string
}

func (f *fakeTelemetry) Record(name models.MetricName, value float64, tags map[string]string) {}

func (f *fakeTelemetry) Query(name models.MetricName, from, to time.Time, tags map[string]string) []models.MetricPoint {
	f.lastName = name
	f.lastTags = tags
	return f.points
}

func (f *fakeTelemetry) EngineStats() map[models.EngineType]models.EngineStats {
	return map[models.EngineType]models.EngineStats{
		models.EngineStatic: {Engine: models.EngineStatic, TotalRequests: 4},
	}
}

func (f *fakeTelemetry) Alerts(filter models.AlertFilter) []*models.Alert { return f.alerts }

func (f *fakeTelemetry) ResolveAlert(id string) bool {
	for _, a := range f.alerts {
		if a.ID == id {
			f.resolved = append(f.resolved, id)
			return true
		}
	}
	return false
}

func (f *fakeTelemetry) PruneAlerts(olderThan time.Time) int { return 0 }

func (f *fakeTelemetry) Dashboard() *models.DashboardStats {
	return &models.DashboardStats{
		TotalSessions: 12,
		HealthScore:   91,
		Health:        models.HealthHealthy,
	}
}

func TestDashboardHandler(t *testing.T) {
	h := NewMetricsHandler(&fakeTelemetry{})

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	h.DashboardHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_sessions":12`)
	assert.Contains(t, rec.Body.String(), `"health":"healthy"`)
}

func TestEngineStatsHandler(t *testing.T) {
	h := NewMetricsHandler(&fakeTelemetry{})

	req := httptest.NewRequest(http.MethodGet, "/api/engines", nil)
	rec := httptest.NewRecorder()
	h.EngineStatsHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_requests":4`)
}

func TestQueryHandlerRequiresName(t *testing.T) {
	h := NewMetricsHandler(&fakeTelemetry{})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	rec := httptest.NewRecorder()
	h.QueryHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryHandlerPassesTags(t *testing.T) {
	telem := &fakeTelemetry{points: []models.MetricPoint{{Value: 1}}}
	h := NewMetricsHandler(telem)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics?name=scrape_success&board=remoteok&engine=static", nil)
	rec := httptest.NewRecorder()
	h.QueryHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MetricScrapeSuccess, telem.lastName)
	assert.Equal(t, "remoteok", telem.lastTags["board"])
	assert.Equal(t, "static", telem.lastTags["engine"])
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestQueryHandlerRejectsBadTimestamp(t *testing.T) {
	h := NewMetricsHandler(&fakeTelemetry{})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics?name=scrape_success&from=yesterday", nil)
	rec := httptest.NewRecorder()
	h.QueryHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertsHandler(t *testing.T) {
	telem := &fakeTelemetry{alerts: []*models.Alert{
		{ID: "a1", Level: models.AlertWarning, Title: "Success rate below target"},
	}}
	h := NewMetricsHandler(telem)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts?level=warning", nil)
	rec := httptest.NewRecorder()
	h.AlertsHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Success rate below target")
}

func TestResolveAlert(t *testing.T) {
	telem := &fakeTelemetry{alerts: []*models.Alert{{ID: "a1"}}}
	h := NewMetricsHandler(telem)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/a1/resolve", nil)
	rec := httptest.NewRecorder()
	h.AlertByIDHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a1"}, telem.resolved)
}

func TestResolveUnknownAlert(t *testing.T) {
	h := NewMetricsHandler(&fakeTelemetry{})

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/nope/resolve", nil)
	rec := httptest.NewRecorder()
	h.AlertByIDHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthHandlerIncludesTelemetry(t *testing.T) {
	h := NewAPIHandler(&fakeTelemetry{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"health":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"health_score":91`)
}
