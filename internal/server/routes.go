package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Tasks and queue
	// /api/tasks dispatches by method: GET lists, POST submits.
	// /api/tasks/ handles GET /{id} and POST /{id}/cancel.
	mux.HandleFunc("/api/tasks", s.handleTasksRoute)
	mux.HandleFunc("/api/tasks/bulk", s.app.TaskHandler.SubmitBulkHandler)
	mux.HandleFunc("/api/tasks/recurring", s.app.TaskHandler.RecurringHandler)
	mux.HandleFunc("/api/tasks/recurring/", s.app.TaskHandler.RecurringByNameHandler)
	mux.HandleFunc("/api/tasks/", s.app.TaskHandler.TaskByIDHandler)
	mux.HandleFunc("/api/queue/stats", s.app.TaskHandler.StatsHandler)

	// API routes - Board catalog
	// /api/boards/ handles GET/DELETE /{id} and POST /{id}/analyze|probe.
	mux.HandleFunc("/api/boards", s.app.BoardHandler.BoardsHandler)
	mux.HandleFunc("/api/boards/", s.app.BoardHandler.BoardByIDHandler)

	// API routes - Telemetry
	mux.HandleFunc("/api/metrics", s.app.MetricsHandler.QueryHandler)
	mux.HandleFunc("/api/dashboard", s.app.MetricsHandler.DashboardHandler)
	mux.HandleFunc("/api/engines", s.app.MetricsHandler.EngineStatsHandler)
	mux.HandleFunc("/api/alerts", s.app.MetricsHandler.AlertsHandler)
	mux.HandleFunc("/api/alerts/", s.app.MetricsHandler.AlertByIDHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleTasksRoute routes /api/tasks by method so list and submit can share
// the path.
func (s *Server) handleTasksRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.app.TaskHandler.ListHandler(w, r)
		return
	}
	s.app.TaskHandler.SubmitHandler(w, r)
}
