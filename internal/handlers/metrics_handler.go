package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// MetricsHandler serves telemetry series, alerts and dashboard snapshots.
type MetricsHandler struct {
	telemetry interfaces.TelemetryService
	logger    arbor.ILogger
}

// NewMetricsHandler creates a metrics handler.
func NewMetricsHandler(telemetry interfaces.TelemetryService) *MetricsHandler {
	return &MetricsHandler{
		telemetry: telemetry,
		logger:    common.GetLogger(),
	}
}

// DashboardHandler handles GET /api/dashboard
func (h *MetricsHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.telemetry.Dashboard())
}

// EngineStatsHandler handles GET /api/engines
func (h *MetricsHandler) EngineStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.telemetry.EngineStats())
}

// QueryHandler handles GET /api/metrics. Required: name. Optional: from and
// to as RFC3339 timestamps (default last hour), plus board and engine tag
// filters.
func (h *MetricsHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	to := time.Now()
	from := to.Add(-time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = parsed
	}

	tags := map[string]string{}
	if v := r.URL.Query().Get("board"); v != "" {
		tags["board"] = v
	}
	if v := r.URL.Query().Get("engine"); v != "" {
		tags["engine"] = v
	}

	points := h.telemetry.Query(models.MetricName(name), from, to, tags)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":   name,
		"points": points,
		"count":  len(points),
	})
}

// AlertsHandler handles GET /api/alerts with level, resolved, since and
// limit query parameters.
func (h *MetricsHandler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	filter := models.AlertFilter{
		Level: models.AlertLevel(r.URL.Query().Get("level")),
		Limit: QueryInt(r, "limit", 0),
	}
	if v := r.URL.Query().Get("resolved"); v != "" {
		resolved := v == "true"
		filter.Resolved = &resolved
	}
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		filter.Since = parsed
	}

	alerts := h.telemetry.Alerts(filter)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// AlertByIDHandler handles POST /api/alerts/{id}/resolve.
func (h *MetricsHandler) AlertByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	id, ok := strings.CutSuffix(rest, "/resolve")
	if !ok || id == "" {
		WriteError(w, http.StatusNotFound, "unknown alert route")
		return
	}
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !h.telemetry.ResolveAlert(id) {
		WriteError(w, http.StatusNotFound, "alert not found: "+id)
		return
	}
	h.logger.Info().Str("alert_id", id).Msg("Alert resolved via API")
	WriteSuccess(w, "alert resolved")
}
