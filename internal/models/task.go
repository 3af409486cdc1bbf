package models

import (
	"time"
)

// TaskStatus represents the state of a scrape task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
	TaskStatusRetrying  TaskStatus = "retrying"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskPriority orders tasks within the queue. Higher values dequeue first.
type TaskPriority int

const (
	PriorityLow    TaskPriority = 1
	PriorityNormal TaskPriority = 5
	PriorityHigh   TaskPriority = 8
	PriorityUrgent TaskPriority = 10
)

// ParsePriority maps the external string form to a TaskPriority,
// defaulting to normal for unknown values.
func ParsePriority(s string) TaskPriority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// String returns the external form of the priority.
func (p TaskPriority) String() string {
	switch {
	case p >= PriorityUrgent:
		return "urgent"
	case p >= PriorityHigh:
		return "high"
	case p >= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// ScrapeTask is a unit of queued work against one board.
type ScrapeTask struct {
	ID      string `json:"id" badgerhold:"key"`
	BoardID string `json:"board_id" badgerhold:"index"`

	// Optional search narrowing
	Query    string `json:"query,omitempty"`
	Location string `json:"location,omitempty"`

	MaxPages int `json:"max_pages"`
	MaxJobs  int `json:"max_jobs"`

	Priority TaskPriority `json:"priority"`
	Status   TaskStatus   `json:"status" badgerhold:"index"`

	CreatedAt   time.Time  `json:"created_at"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"` // Future tasks are held until due
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	ResultID  string `json:"result_id,omitempty"` // Session reference once terminal
	LastError string `json:"last_error,omitempty"`
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	BoardID  string
	Status   TaskStatus
	Priority *TaskPriority
	Limit    int
}

// Matches reports whether the task passes the filter.
func (f TaskFilter) Matches(t *ScrapeTask) bool {
	if f.BoardID != "" && t.BoardID != f.BoardID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	return true
}

// QueueStats is a point-in-time snapshot of queue occupancy.
type QueueStats struct {
	QueueSize int                `json:"queue_size"`
	Running   int                `json:"running"`
	Total     int                `json:"total"`
	ByStatus  map[TaskStatus]int `json:"by_status"`
}

// RecurringConfig describes a named recurring scrape registered with the
// dispatcher. NextRun advances by Interval each time the config fires.
type RecurringConfig struct {
	Name     string        `json:"name"`
	BoardID  string        `json:"board_id"`
	Interval time.Duration `json:"interval"`
	Query    string        `json:"query,omitempty"`
	Location string        `json:"location,omitempty"`
	MaxPages int           `json:"max_pages"`
	Priority TaskPriority  `json:"priority"`
	Enabled  bool          `json:"enabled"`
	LastRun  *time.Time    `json:"last_run,omitempty"`
	NextRun  time.Time     `json:"next_run"`
}
