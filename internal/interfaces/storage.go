package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/venor/internal/models"
)

// BoardFilter narrows board listings.
type BoardFilter struct {
	Active   *bool
	Engine   models.EngineType
	Region   string
	Category string
}

// BoardStorage - persistence for the job board catalog
type BoardStorage interface {
	UpsertBoard(ctx context.Context, board *models.JobBoard) error
	GetBoard(ctx context.Context, id string) (*models.JobBoard, error)
	ListBoards(ctx context.Context, filter BoardFilter) ([]*models.JobBoard, error)
	DeleteBoard(ctx context.Context, id string) error
	UpdateBoardMetrics(ctx context.Context, id string, successRate, avgResponseTime float64) error
	UpdateBoardAnalysis(ctx context.Context, id string, analysis *models.BoardAnalysis) error
	CountBoards(ctx context.Context) (int, error)
}

// SessionStorage - persistence for executed scrape sessions
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.ScrapeSession) error
	GetSession(ctx context.Context, id string) (*models.ScrapeSession, error)
	ReadRecentSessions(ctx context.Context, since time.Time) ([]*models.ScrapeSession, error)
	ListTopBoards(ctx context.Context, since time.Time, limit int) ([]models.BoardPerformance, error)
	CountSessions(ctx context.Context) (int, error)
}

// JobStorage - persistence for extracted job records.
// Saves are idempotent on (board_id, url): re-saving an existing pair
// updates the stored record instead of inserting a second copy.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.EnrichedJob) error
	SaveJobs(ctx context.Context, jobs []*models.EnrichedJob) error
	GetJobByURL(ctx context.Context, boardID, url string) (*models.EnrichedJob, error)
	ListJobsByBoard(ctx context.Context, boardID string, limit int) ([]*models.EnrichedJob, error)
	CountJobs(ctx context.Context) (int, error)
}

// MetricStorage - persistence for alerts and flushed metric snapshots
type MetricStorage interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	UpdateAlert(ctx context.Context, alert *models.Alert) error
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, error)
	PruneAlerts(ctx context.Context, olderThan time.Time) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	BoardStorage() BoardStorage
	SessionStorage() SessionStorage
	JobStorage() JobStorage
	MetricStorage() MetricStorage
	Close() error
}
