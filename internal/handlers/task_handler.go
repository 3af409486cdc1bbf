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

// TaskHandler exposes queue operations over HTTP.
type TaskHandler struct {
	queue      interfaces.QueueService
	dispatcher RecurringDispatcher
	logger     arbor.ILogger
}

// RecurringDispatcher is the subset of the recurring dispatcher the handler
// needs.
type RecurringDispatcher interface {
	Register(config models.RecurringConfig) error
	Unregister(name string) bool
	List() []models.RecurringConfig
}

// NewTaskHandler creates a task handler. dispatcher may be nil, which
// disables the recurring endpoints.
func NewTaskHandler(queue interfaces.QueueService, dispatcher RecurringDispatcher) *TaskHandler {
	return &TaskHandler{
		queue:      queue,
		dispatcher: dispatcher,
		logger:     common.GetLogger(),
	}
}

// submitRequest is the JSON body for task submission.
type submitRequest struct {
	BoardID     string     `json:"board_id"`
	Query       string     `json:"query,omitempty"`
	Location    string     `json:"location,omitempty"`
	MaxPages    int        `json:"max_pages,omitempty"`
	MaxJobs     int        `json:"max_jobs,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	MaxRetries  int        `json:"max_retries,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

func (req *submitRequest) toTask() *models.ScrapeTask {
	return &models.ScrapeTask{
		BoardID:     req.BoardID,
		Query:       req.Query,
		Location:    req.Location,
		MaxPages:    req.MaxPages,
		MaxJobs:     req.MaxJobs,
		Priority:    models.ParsePriority(req.Priority),
		MaxRetries:  req.MaxRetries,
		ScheduledAt: req.ScheduledAt,
	}
}

// SubmitHandler handles POST /api/tasks
func (h *TaskHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req submitRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	if req.BoardID == "" {
		WriteError(w, http.StatusBadRequest, "board_id is required")
		return
	}

	task := req.toTask()
	id, err := h.queue.Enqueue(task)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id": id,
		"status":  string(task.Status),
	})
}

// SubmitBulkHandler handles POST /api/tasks/bulk
func (h *TaskHandler) SubmitBulkHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Tasks []submitRequest `json:"tasks"`
	}
	if !DecodeBody(w, r, &req) {
		return
	}
	if len(req.Tasks) == 0 {
		WriteError(w, http.StatusBadRequest, "tasks list is empty")
		return
	}

	tasks := make([]*models.ScrapeTask, 0, len(req.Tasks))
	for i := range req.Tasks {
		if req.Tasks[i].BoardID == "" {
			WriteError(w, http.StatusBadRequest, "every task requires a board_id")
			return
		}
		tasks = append(tasks, req.Tasks[i].toTask())
	}

	ids, err := h.queue.EnqueueBulk(tasks)
	if err != nil && len(ids) == 0 {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	resp := map[string]interface{}{
		"task_ids": ids,
		"accepted": len(ids),
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	WriteJSON(w, http.StatusAccepted, resp)
}

// ListHandler handles GET /api/tasks with board, status, priority and limit
// query parameters.
func (h *TaskHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	filter := models.TaskFilter{
		BoardID: r.URL.Query().Get("board"),
		Status:  models.TaskStatus(r.URL.Query().Get("status")),
		Limit:   QueryInt(r, "limit", 0),
	}
	if p := r.URL.Query().Get("priority"); p != "" {
		priority := models.ParsePriority(p)
		filter.Priority = &priority
	}

	tasks := h.queue.List(filter)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// TaskByIDHandler dispatches /api/tasks/{id} and /api/tasks/{id}/cancel.
func (h *TaskHandler) TaskByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if rest == "" {
		WriteError(w, http.StatusNotFound, "task ID missing")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/cancel"); ok {
		h.cancelTask(w, r, id)
		return
	}
	h.getTask(w, r, rest)
}

func (h *TaskHandler) getTask(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	task := h.queue.Get(id)
	if task == nil {
		WriteError(w, http.StatusNotFound, "task not found: "+id)
		return
	}
	WriteJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) cancelTask(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !h.queue.Cancel(id) {
		WriteError(w, http.StatusConflict, "task unknown or already terminal: "+id)
		return
	}

	h.logger.Info().Str("task_id", id).Msg("Task cancelled via API")
	WriteSuccess(w, "task cancelled")
}

// StatsHandler handles GET /api/queue/stats
func (h *TaskHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.queue.Stats())
}

// RecurringHandler handles GET (list) and POST (register) on
// /api/tasks/recurring.
func (h *TaskHandler) RecurringHandler(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		WriteError(w, http.StatusNotImplemented, "recurring scheduling is not enabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		configs := h.dispatcher.List()
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"configs": configs,
			"count":   len(configs),
		})
	case http.MethodPost:
		var config models.RecurringConfig
		if !DecodeBody(w, r, &config) {
			return
		}
		if err := h.dispatcher.Register(config); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]string{"name": config.Name})
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// RecurringByNameHandler handles DELETE /api/tasks/recurring/{name}.
func (h *TaskHandler) RecurringByNameHandler(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		WriteError(w, http.StatusNotImplemented, "recurring scheduling is not enabled")
		return
	}
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/tasks/recurring/")
	if name == "" {
		WriteError(w, http.StatusNotFound, "config name missing")
		return
	}
	if !h.dispatcher.Unregister(name) {
		WriteError(w, http.StatusNotFound, "no recurring config named "+name)
		return
	}
	WriteSuccess(w, "recurring config removed")
}
