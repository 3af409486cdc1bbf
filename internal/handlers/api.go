package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
)

// APIHandler serves version, health and fallthrough routes.
type APIHandler struct {
	telemetry interfaces.TelemetryService
	startedAt time.Time
}

// NewAPIHandler creates the system API handler.
func NewAPIHandler(telemetry interfaces.TelemetryService) *APIHandler {
	return &APIHandler{
		telemetry: telemetry,
		startedAt: time.Now(),
	}
}

// VersionHandler handles GET /api/version
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
	})
}

// HealthHandler handles GET /api/health. The composite health grade comes
// from the telemetry dashboard.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	resp := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	}
	if h.telemetry != nil {
		stats := h.telemetry.Dashboard()
		resp["health"] = stats.Health
		resp["health_score"] = stats.HealthScore
		resp["active_alerts"] = stats.ActiveAlerts
	}
	WriteJSON(w, http.StatusOK, resp)
}

// NotFoundHandler catches unmatched /api/ routes.
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "unknown API route: "+r.URL.Path)
}
