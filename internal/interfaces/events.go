package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventTaskEnqueued     EventType = "task_enqueued"
	EventTaskStarted      EventType = "task_started"
	EventTaskCompleted    EventType = "task_completed"
	EventTaskFailed       EventType = "task_failed"
	EventTaskCancelled    EventType = "task_cancelled"
	EventTaskRetrying     EventType = "task_retrying"
	EventEngineOutcome    EventType = "engine_outcome"
	EventSessionRecorded  EventType = "session_recorded"
	EventAlertRaised      EventType = "alert_raised"
	EventBoardAnalyzed    EventType = "board_analyzed"
	EventRateLimitWidened EventType = "rate_limit_widened"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus that decouples the
// orchestrator, router and telemetry from each other.
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
