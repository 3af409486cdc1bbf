package queue

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// Config sizes the queue and worker pool.
type Config struct {
	Capacity    int
	Workers     int
	MaxRetries  int
	TaskTimeout time.Duration
	DrainGrace  time.Duration
}

// DefaultConfig returns the standard queue sizing.
func DefaultConfig() Config {
	return Config{
		Capacity:    1000,
		Workers:     5,
		MaxRetries:  3,
		TaskTimeout: 10 * time.Minute,
		DrainGrace:  30 * time.Second,
	}
}

// Manager owns the task lifecycle: a bounded priority queue, a fixed worker
// pool, retry scheduling and terminal callbacks. Status transitions flow
// through a single setter so terminal statuses are monotonic.
type Manager struct {
	config   Config
	queue    *taskQueue
	executor interfaces.TaskExecutor
	events   interfaces.EventService
	logger   arbor.ILogger

	mu             sync.Mutex
	tasks          map[string]*models.ScrapeTask
	cancels        map[string]context.CancelFunc // running tasks
	retryTimers    map[string]*time.Timer        // tasks awaiting retry re-enqueue
	pendingCancels map[string]struct{}           // cancelled between pop and registration
	running        int

	onCompleted []interfaces.TaskCallback
	onFailed    []interfaces.TaskCallback

	started  bool
	stopOnce func()
	workerWG sync.WaitGroup
}

// NewManager creates a queue manager. The executor runs each task; the
// event service receives task lifecycle events.
func NewManager(config Config, executor interfaces.TaskExecutor, events interfaces.EventService) *Manager {
	if config.Capacity <= 0 {
		config.Capacity = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 5
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 10 * time.Minute
	}
	if config.DrainGrace <= 0 {
		config.DrainGrace = 30 * time.Second
	}
	return &Manager{
		config:         config,
		queue:          newTaskQueue(config.Capacity),
		executor:       executor,
		events:         events,
		logger:         common.GetLogger(),
		tasks:          make(map[string]*models.ScrapeTask),
		cancels:        make(map[string]context.CancelFunc),
		retryTimers:    make(map[string]*time.Timer),
		pendingCancels: make(map[string]struct{}),
	}
}

// Enqueue adds one task to the queue. Fails when capacity is exceeded.
func (m *Manager) Enqueue(task *models.ScrapeTask) (string, error) {
	if task.ID == "" {
		task.ID = common.NewTaskID()
	}
	if task.Priority == 0 {
		task.Priority = models.PriorityNormal
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = m.config.MaxRetries
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	task.Status = models.TaskStatusPending

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	if !m.queue.push(task) {
		m.mu.Lock()
		delete(m.tasks, task.ID)
		m.mu.Unlock()
		return "", fmt.Errorf("queue at capacity (%d)", m.config.Capacity)
	}

	m.publish(interfaces.EventTaskEnqueued, task)
	m.logger.Debug().
		Str("task_id", task.ID).
		Str("board_id", task.BoardID).
		Str("priority", task.Priority.String()).
		Msg("Task enqueued")

	return task.ID, nil
}

// EnqueueBulk adds several tasks, returning the IDs of those accepted.
// The first capacity failure stops the batch.
func (m *Manager) EnqueueBulk(tasks []*models.ScrapeTask) ([]string, error) {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		id, err := m.Enqueue(task)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Cancel requests cancellation of a task. Pending tasks are removed from
// the queue; running tasks get their context cancelled; retry-waiting tasks
// have their re-enqueue timer stopped. Terminal tasks return false.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok || task.Status.IsTerminal() {
		m.mu.Unlock()
		return false
	}

	if timer, waiting := m.retryTimers[id]; waiting {
		timer.Stop()
		delete(m.retryTimers, id)
		m.setStatusLocked(task, models.TaskStatusCancelled)
		m.mu.Unlock()
		m.publish(interfaces.EventTaskCancelled, task)
		return true
	}

	if cancel, running := m.cancels[id]; running {
		m.mu.Unlock()
		cancel() // Worker observes the signal and finalizes the status
		return true
	}
	m.mu.Unlock()

	// Pending: pull it out of the heap
	if m.queue.remove(id) {
		m.mu.Lock()
		m.setStatusLocked(task, models.TaskStatusCancelled)
		m.mu.Unlock()
		m.publish(interfaces.EventTaskCancelled, task)
		return true
	}

	// Not in the heap, not yet registered as running: a worker holds it
	// between pop and registration. Flag it so runTask cancels right after
	// registering its cancel func.
	m.mu.Lock()
	if task.Status.IsTerminal() {
		m.mu.Unlock()
		return false
	}
	if cancel, running := m.cancels[id]; running {
		m.mu.Unlock()
		cancel()
		return true
	}
	m.pendingCancels[id] = struct{}{}
	m.mu.Unlock()
	return true
}

// Get returns a task by ID, or nil when unknown.
func (m *Manager) Get(id string) *models.ScrapeTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[id]; ok {
		copied := *task
		return &copied
	}
	return nil
}

// List returns tasks matching the filter, newest first.
func (m *Manager) List(filter models.TaskFilter) []*models.ScrapeTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.ScrapeTask
	for _, task := range m.tasks {
		if !filter.Matches(task) {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Stats returns a point-in-time snapshot of queue occupancy.
func (m *Manager) Stats() models.QueueStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := models.QueueStats{
		QueueSize: m.queue.size(),
		Running:   m.running,
		Total:     len(m.tasks),
		ByStatus:  make(map[models.TaskStatus]int),
	}
	for _, task := range m.tasks {
		stats.ByStatus[task.Status]++
	}
	return stats
}

// OnCompleted registers a callback fired after successful completion.
func (m *Manager) OnCompleted(cb interfaces.TaskCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCompleted = append(m.onCompleted, cb)
}

// OnFailed registers a callback fired after terminal failure.
func (m *Manager) OnFailed(cb interfaces.TaskCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFailed = append(m.onFailed, cb)
}

// Start launches the worker pool. Idempotent.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	m.stopOnce = cancelWorkers
	m.mu.Unlock()

	for i := 0; i < m.config.Workers; i++ {
		m.workerWG.Add(1)
		go m.workerLoop(workerCtx, i)
	}

	m.logger.Info().
		Int("workers", m.config.Workers).
		Int("capacity", m.config.Capacity).
		Msg("Task queue started")
	return nil
}

// Stop cancels in-flight tasks and waits for workers to drain within the
// grace period. Idempotent.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	cancelWorkers := m.stopOnce

	for id, timer := range m.retryTimers {
		timer.Stop()
		if task, ok := m.tasks[id]; ok {
			m.setStatusLocked(task, models.TaskStatusCancelled)
		}
	}
	m.retryTimers = make(map[string]*time.Timer)

	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()

	m.queue.close()
	if cancelWorkers != nil {
		cancelWorkers()
	}

	done := make(chan struct{})
	go func() {
		m.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("Task queue drained")
	case <-time.After(m.config.DrainGrace):
		m.logger.Warn().Msg("Task queue drain grace expired")
	}
	return nil
}

func (m *Manager) workerLoop(ctx context.Context, id int) {
	defer m.workerWG.Done()

	for {
		task, err := m.queue.pop(ctx)
		if err != nil || task == nil {
			return
		}

		m.mu.Lock()
		if task.Status.IsTerminal() {
			// Cancelled while queued
			m.mu.Unlock()
			continue
		}

		// Scheduled-future tasks popped early go back with a small delay
		if task.ScheduledAt != nil && task.ScheduledAt.After(time.Now()) {
			m.mu.Unlock()
			m.requeueAfter(task, time.Second)
			continue
		}
		m.mu.Unlock()

		m.runTask(ctx, task, id)
	}
}

func (m *Manager) runTask(ctx context.Context, task *models.ScrapeTask, workerID int) {
	taskCtx, cancel := context.WithTimeout(ctx, m.config.TaskTimeout)
	defer cancel()

	m.mu.Lock()
	now := time.Now()
	task.StartedAt = &now
	m.setStatusLocked(task, models.TaskStatusRunning)
	m.cancels[task.ID] = cancel
	if _, flagged := m.pendingCancels[task.ID]; flagged {
		delete(m.pendingCancels, task.ID)
		cancel()
	}
	m.running++
	m.mu.Unlock()

	m.publish(interfaces.EventTaskStarted, task)
	m.logger.Info().
		Str("task_id", task.ID).
		Str("board_id", task.BoardID).
		Int("worker", workerID).
		Msg("Task started")

	result, execErr := m.executor.Execute(taskCtx, task)

	m.mu.Lock()
	delete(m.cancels, task.ID)
	m.running--

	switch {
	case taskCtx.Err() == context.Canceled:
		// Cancel() was called, or the pool is shutting down
		m.finalizeLocked(task, models.TaskStatusCancelled, execErr, result)

	case execErr == nil:
		// The executor sets task.ResultID when it records the session
		m.finalizeLocked(task, models.TaskStatusCompleted, nil, result)

	default:
		task.LastError = execErr.Error()
		kind := models.KindOf(execErr)
		if kind.Retryable() && task.RetryCount < task.MaxRetries {
			task.RetryCount++
			m.setStatusLocked(task, models.TaskStatusRetrying)
			backoff := retryBackoff(task.RetryCount)
			m.mu.Unlock()

			m.publish(interfaces.EventTaskRetrying, task)
			m.logger.Warn().
				Str("task_id", task.ID).
				Int("retry", task.RetryCount).
				Str("backoff", backoff.String()).
				Err(execErr).
				Msg("Task failed, scheduling retry")
			m.requeueAfter(task, backoff)
			return
		}
		m.finalizeLocked(task, models.TaskStatusFailed, execErr, result)
	}
	m.mu.Unlock()
}

// finalizeLocked moves a task to a terminal status and fires callbacks and
// events. Caller holds m.mu; callbacks run outside the lock via goroutine.
func (m *Manager) finalizeLocked(task *models.ScrapeTask, status models.TaskStatus, err error, result *models.ScrapeResult) {
	now := time.Now()
	task.CompletedAt = &now
	if err != nil {
		task.LastError = err.Error()
	}
	m.setStatusLocked(task, status)

	var callbacks []interfaces.TaskCallback
	var eventType interfaces.EventType
	switch status {
	case models.TaskStatusCompleted:
		callbacks = append(callbacks, m.onCompleted...)
		eventType = interfaces.EventTaskCompleted
	case models.TaskStatusFailed:
		callbacks = append(callbacks, m.onFailed...)
		eventType = interfaces.EventTaskFailed
	case models.TaskStatusCancelled:
		eventType = interfaces.EventTaskCancelled
	}

	snapshot := *task
	go func() {
		m.publish(eventType, &snapshot)
		for _, cb := range callbacks {
			cb(&snapshot)
		}
	}()

	m.logger.Info().
		Str("task_id", task.ID).
		Str("status", string(status)).
		Msg("Task finished")
}

// requeueAfter pushes a task back onto the queue after a delay, unless it
// is cancelled in the meantime.
func (m *Manager) requeueAfter(task *models.ScrapeTask, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task.Status.IsTerminal() {
		return
	}

	timer := time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.retryTimers, task.ID)
		if task.Status.IsTerminal() {
			m.mu.Unlock()
			return
		}
		task.Status = models.TaskStatusPending
		m.mu.Unlock()

		if !m.queue.push(task) {
			m.mu.Lock()
			m.finalizeLocked(task, models.TaskStatusFailed,
				fmt.Errorf("queue at capacity during retry"), nil)
			m.mu.Unlock()
		}
	})
	m.retryTimers[task.ID] = timer
}

// setStatusLocked is the single transition point for task status. Terminal
// statuses never change again.
func (m *Manager) setStatusLocked(task *models.ScrapeTask, status models.TaskStatus) {
	if task.Status.IsTerminal() {
		return
	}
	task.Status = status
}

// retryBackoff returns min(2^retry, 60) seconds.
func retryBackoff(retry int) time.Duration {
	secs := math.Pow(2, float64(retry))
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

func (m *Manager) publish(eventType interfaces.EventType, task *models.ScrapeTask) {
	if m.events == nil {
		return
	}
	snapshot := *task
	_ = m.events.Publish(context.Background(), interfaces.Event{
		Type:    eventType,
		Payload: &snapshot,
	})
}
