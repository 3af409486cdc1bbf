package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/venor/internal/models"
)

// TaskCallback is invoked after a task reaches a terminal status.
type TaskCallback func(task *models.ScrapeTask)

// QueueService manages the bounded priority queue of scrape tasks and the
// worker pool that drains it.
type QueueService interface {
	// Enqueue adds one task. Fails when queue capacity is exceeded.
	Enqueue(task *models.ScrapeTask) (string, error)

	// EnqueueBulk adds several tasks, returning the IDs of those accepted.
	EnqueueBulk(tasks []*models.ScrapeTask) ([]string, error)

	// Cancel requests cooperative cancellation. Returns false when the task
	// is unknown or already terminal.
	Cancel(id string) bool

	// Get returns the task by ID, or nil when unknown.
	Get(id string) *models.ScrapeTask

	// List returns tasks matching the filter.
	List(filter models.TaskFilter) []*models.ScrapeTask

	// Stats returns a point-in-time occupancy snapshot.
	Stats() models.QueueStats

	// Start launches the worker pool. Idempotent.
	Start(ctx context.Context) error

	// Stop cancels in-flight tasks and waits for workers to drain within
	// the configured grace period. Idempotent.
	Stop() error

	// OnCompleted registers a callback fired after successful completion.
	OnCompleted(cb TaskCallback)

	// OnFailed registers a callback fired after terminal failure.
	OnFailed(cb TaskCallback)
}

// TaskExecutor runs one task to completion. The queue worker pool invokes
// it; the orchestrator implements it.
type TaskExecutor interface {
	Execute(ctx context.Context, task *models.ScrapeTask) (*models.ScrapeResult, error)
}

// RateLimiter enforces a minimum inter-request delay per host.
type RateLimiter interface {
	// Acquire blocks until at least the host's current minimum delay has
	// elapsed since the last recorded request, then records "now". It only
	// fails when ctx is done.
	Acquire(ctx context.Context, host string) error

	// ReportRateLimited widens the host's delay after a 429-equivalent.
	ReportRateLimited(host string)

	// CurrentDelay returns the effective minimum delay for a host.
	CurrentDelay(host string) time.Duration
}
