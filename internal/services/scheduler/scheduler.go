package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// Options collects the scheduler's collaborators and tuning knobs.
type Options struct {
	Schedule  common.ScheduleConfig
	Queue     interfaces.QueueService
	Boards    interfaces.BoardStorage
	Telemetry interfaces.TelemetryService
	Metrics   interfaces.MetricStorage

	// ValueLogGC runs one badger value-log GC cycle. A nil return means a
	// rewrite happened and another cycle may be worthwhile.
	ValueLogGC func() error

	StaleAfter     time.Duration // Running tasks older than this get cancelled (default 20m)
	AnalysisTTL    time.Duration // Boards with older analysis get re-queued (default 24h)
	AlertRetention time.Duration // Resolved alerts older than this get pruned (default 24h)
}

// Service runs the periodic maintenance jobs: stale running-task cleanup,
// resolved-alert pruning, badger value-log GC and board re-analysis.
type Service struct {
	opts   Options
	cron   *cron.Cron
	logger arbor.ILogger

	mu      sync.Mutex
	running bool
}

// NewService creates the maintenance scheduler. Jobs are registered on
// Start from the cron expressions in the schedule config; an empty
// expression disables that job.
func NewService(opts Options) *Service {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 20 * time.Minute
	}
	if opts.AnalysisTTL <= 0 {
		opts.AnalysisTTL = 24 * time.Hour
	}
	if opts.AlertRetention <= 0 {
		opts.AlertRetention = 24 * time.Hour
	}
	return &Service{
		opts:   opts,
		cron:   cron.New(),
		logger: common.GetLogger(),
	}
}

// Start registers the maintenance jobs and launches the cron loop.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	jobs := []struct {
		name string
		expr string
		fn   func()
	}{
		{"stale_task_check", s.opts.Schedule.StaleTaskCheck, s.checkStaleTasks},
		{"alert_prune", s.opts.Schedule.AlertPrune, s.pruneAlerts},
		{"badger_gc", s.opts.Schedule.BadgerGC, s.runValueLogGC},
		{"board_reanalyze", s.opts.Schedule.BoardReanalyze, s.reanalyzeBoards},
	}
	for _, job := range jobs {
		if job.expr == "" {
			s.logger.Debug().Str("job", job.name).Msg("Maintenance job disabled")
			continue
		}
		if _, err := s.cron.AddFunc(job.expr, job.fn); err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", job.name, job.expr, err)
		}
		s.logger.Info().Str("job", job.name).Str("cron", job.expr).Msg("Maintenance job scheduled")
	}

	s.cron.Start()
	s.running = true
	return nil
}

// Stop halts the cron loop and waits for any in-flight job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// checkStaleTasks cancels running tasks whose wall clock exceeds the stale
// threshold. A task stuck past its own timeout means the executor wedged;
// cancelling releases the worker slot.
func (s *Service) checkStaleTasks() {
	if s.opts.Queue == nil {
		return
	}

	cutoff := time.Now().Add(-s.opts.StaleAfter)
	cancelled := 0
	for _, task := range s.opts.Queue.List(models.TaskFilter{Status: models.TaskStatusRunning}) {
		if task.StartedAt == nil || task.StartedAt.After(cutoff) {
			continue
		}
		if s.opts.Queue.Cancel(task.ID) {
			s.logger.Warn().
				Str("task_id", task.ID).
				Str("board_id", task.BoardID).
				Str("started_at", task.StartedAt.Format(time.RFC3339)).
				Msg("Cancelled stale running task")
			cancelled++
		}
	}
	if cancelled > 0 {
		s.logger.Info().Int("count", cancelled).Msg("Stale task check complete")
	}
}

// pruneAlerts drops resolved alerts past retention from both the in-memory
// alert manager and persisted storage.
func (s *Service) pruneAlerts() {
	cutoff := time.Now().Add(-s.opts.AlertRetention)

	pruned := 0
	if s.opts.Telemetry != nil {
		pruned = s.opts.Telemetry.PruneAlerts(cutoff)
	}

	persisted := 0
	if s.opts.Metrics != nil {
		n, err := s.opts.Metrics.PruneAlerts(context.Background(), cutoff)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to prune persisted alerts")
		} else {
			persisted = n
		}
	}

	if pruned > 0 || persisted > 0 {
		s.logger.Info().Int("memory", pruned).Int("persisted", persisted).Msg("Resolved alerts pruned")
	}
}

// runValueLogGC cycles badger value-log GC until it reports nothing left to
// rewrite.
func (s *Service) runValueLogGC() {
	if s.opts.ValueLogGC == nil {
		return
	}

	rewrites := 0
	for {
		if err := s.opts.ValueLogGC(); err != nil {
			break
		}
		rewrites++
		if rewrites >= 10 {
			break
		}
	}
	if rewrites > 0 {
		s.logger.Info().Int("rewrites", rewrites).Msg("Badger value-log GC complete")
	} else {
		s.logger.Debug().Msg("Badger value-log GC found nothing to rewrite")
	}
}

// reanalyzeBoards queues a low-priority scrape for every active board whose
// advisor analysis has gone stale, so selector drift gets caught before the
// next organic run. Boards that already have a queued or running task are
// skipped.
func (s *Service) reanalyzeBoards() {
	if s.opts.Queue == nil || s.opts.Boards == nil {
		return
	}

	active := true
	boards, err := s.opts.Boards.ListBoards(context.Background(), interfaces.BoardFilter{Active: &active})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list boards for re-analysis")
		return
	}

	now := time.Now()
	queued := 0
	for _, board := range boards {
		if board.AnalysisFresh(s.opts.AnalysisTTL, now) {
			continue
		}
		if s.hasOutstandingTask(board.ID) {
			continue
		}

		task := &models.ScrapeTask{
			BoardID:  board.ID,
			Priority: models.PriorityLow,
		}
		if _, err := s.opts.Queue.Enqueue(task); err != nil {
			s.logger.Warn().Err(err).Str("board_id", board.ID).Msg("Failed to queue board re-analysis")
			continue
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info().Int("count", queued).Msg("Stale boards queued for re-analysis")
	}
}

func (s *Service) hasOutstandingTask(boardID string) bool {
	for _, status := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusRunning, models.TaskStatusRetrying} {
		if len(s.opts.Queue.List(models.TaskFilter{BoardID: boardID, Status: status, Limit: 1})) > 0 {
			return true
		}
	}
	return false
}
