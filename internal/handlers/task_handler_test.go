package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

type fakeQueue struct {
	tasks     map[string]*models.ScrapeTask
	nextID    int
	full      bool
	cancelled []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{tasks: make(map[string]*models.ScrapeTask)}
}

func (q *fakeQueue) Enqueue(task *models.ScrapeTask) (string, error) {
	if q.full {
		return "", fmt.Errorf("queue is full")
	}
	q.nextID++
	task.ID = fmt.Sprintf("task-%d", q.nextID)
	task.Status = models.TaskStatusPending
	q.tasks[task.ID] = task
	return task.ID, nil
}

func (q *fakeQueue) EnqueueBulk(tasks []*models.ScrapeTask) ([]string, error) {
	var ids []string
	for _, t := range tasks {
		id, err := q.Enqueue(t)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *fakeQueue) Cancel(id string) bool {
	if _, ok := q.tasks[id]; !ok {
		return false
	}
	q.cancelled = append(q.cancelled, id)
	return true
}

func (q *fakeQueue) Get(id string) *models.ScrapeTask { return q.tasks[id] }

func (q *fakeQueue) List(filter models.TaskFilter) []*models.ScrapeTask {
	var out []*models.ScrapeTask
	for _, t := range q.tasks {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

func (q *fakeQueue) Stats() models.QueueStats {
	return models.QueueStats{Total: len(q.tasks)}
}

func (q *fakeQueue) Start(ctx context.Context) error { return nil }

func (q *fakeQueue) Stop() error { return nil }

func (q *fakeQueue) OnCompleted(cb interfaces.TaskCallback) {}

func (q *fakeQueue) OnFailed(cb interfaces.TaskCallback) {}

type fakeDispatcher struct {
	configs map[string]models.RecurringConfig
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{configs: make(map[string]models.RecurringConfig)}
}

func (d *fakeDispatcher) Register(config models.RecurringConfig) error {
	if config.Name == "" {
		return fmt.Errorf("recurring config requires a name")
	}
	d.configs[config.Name] = config
	return nil
}

func (d *fakeDispatcher) Unregister(name string) bool {
	if _, ok := d.configs[name]; !ok {
		return false
	}
	delete(d.configs, name)
	return true
}

func (d *fakeDispatcher) List() []models.RecurringConfig {
	var out []models.RecurringConfig
	for _, c := range d.configs {
		out = append(out, c)
	}
	return out
}

func TestSubmitTask(t *testing.T) {
	queue := newFakeQueue()
	h := NewTaskHandler(queue, nil)

	body := `{"board_id": "remoteok", "query": "golang", "priority": "high", "max_pages": 3}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "task-1")

	task := queue.tasks["task-1"]
	require.NotNil(t, task)
	assert.Equal(t, "remoteok", task.BoardID)
	assert.Equal(t, "golang", task.Query)
	assert.Equal(t, models.PriorityHigh, task.Priority)
	assert.Equal(t, 3, task.MaxPages)
}

func TestSubmitTaskRequiresBoard(t *testing.T) {
	h := NewTaskHandler(newFakeQueue(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"query": "golang"}`))
	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTaskQueueFull(t *testing.T) {
	queue := newFakeQueue()
	queue.full = true
	h := NewTaskHandler(queue, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"board_id": "x"}`))
	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitTaskRejectsGet(t *testing.T) {
	h := NewTaskHandler(newFakeQueue(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSubmitBulk(t *testing.T) {
	queue := newFakeQueue()
	h := NewTaskHandler(queue, nil)

	body := `{"tasks": [{"board_id": "a"}, {"board_id": "b", "priority": "urgent"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/bulk", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SubmitBulkHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, queue.tasks, 2)
}

func TestGetTask(t *testing.T) {
	queue := newFakeQueue()
	queue.Enqueue(&models.ScrapeTask{BoardID: "remoteok"})
	h := NewTaskHandler(queue, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/task-1", nil)
	rec := httptest.NewRecorder()
	h.TaskByIDHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "remoteok")
}

func TestGetTaskNotFound(t *testing.T) {
	h := NewTaskHandler(newFakeQueue(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/nope", nil)
	rec := httptest.NewRecorder()
	h.TaskByIDHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelTask(t *testing.T) {
	queue := newFakeQueue()
	queue.Enqueue(&models.ScrapeTask{BoardID: "remoteok"})
	h := NewTaskHandler(queue, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/task-1/cancel", nil)
	rec := httptest.NewRecorder()
	h.TaskByIDHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"task-1"}, queue.cancelled)
}

func TestCancelUnknownTaskConflicts(t *testing.T) {
	h := NewTaskHandler(newFakeQueue(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/nope/cancel", nil)
	rec := httptest.NewRecorder()
	h.TaskByIDHandler(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListTasksFilters(t *testing.T) {
	queue := newFakeQueue()
	queue.Enqueue(&models.ScrapeTask{BoardID: "a"})
	queue.Enqueue(&models.ScrapeTask{BoardID: "b"})
	h := NewTaskHandler(queue, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?board=a", nil)
	rec := httptest.NewRecorder()
	h.ListHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestQueueStats(t *testing.T) {
	queue := newFakeQueue()
	queue.Enqueue(&models.ScrapeTask{BoardID: "a"})
	h := NewTaskHandler(queue, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/queue/stats", nil)
	rec := httptest.NewRecorder()
	h.StatsHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestRecurringLifecycle(t *testing.T) {
	dispatcher := newFakeDispatcher()
	h := NewTaskHandler(newFakeQueue(), dispatcher)

	body := `{"name": "hourly-remoteok", "board_id": "remoteok", "interval": 3600000000000, "enabled": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/recurring", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RecurringHandler(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	config := dispatcher.configs["hourly-remoteok"]
	assert.Equal(t, time.Hour, config.Interval)

	req = httptest.NewRequest(http.MethodGet, "/api/tasks/recurring", nil)
	rec = httptest.NewRecorder()
	h.RecurringHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hourly-remoteok")

	req = httptest.NewRequest(http.MethodDelete, "/api/tasks/recurring/hourly-remoteok", nil)
	rec = httptest.NewRecorder()
	h.RecurringByNameHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, dispatcher.configs)
}

func TestRecurringDisabledWithoutDispatcher(t *testing.T) {
	h := NewTaskHandler(newFakeQueue(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/recurring", nil)
	rec := httptest.NewRecorder()
	h.RecurringHandler(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
