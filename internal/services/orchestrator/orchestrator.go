package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/httpclient"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
	"github.com/ternarybob/venor/internal/services/engines"
	"github.com/ternarybob/venor/internal/services/pipeline"
)

// Orchestrator executes one scrape task end to end: board resolution,
// advisor analysis, rate limiting, engine routing, dedup, validation,
// enrichment and persistence. The queue worker pool calls Execute; the
// orchestrator never touches the queue itself.
type Orchestrator struct {
	storage    interfaces.StorageManager
	router     *engines.Router
	advisor    interfaces.Advisor
	limiter    interfaces.RateLimiter
	dedup      *pipeline.Deduplicator
	validator  *pipeline.Validator
	enricher   *pipeline.Enricher
	events     interfaces.EventService
	client     *httpclient.Client
	advisorCfg common.AdvisorConfig
	logger     arbor.ILogger
}

// Options collects the orchestrator's collaborators.
type Options struct {
	Storage    interfaces.StorageManager
	Router     *engines.Router
	Advisor    interfaces.Advisor
	Limiter    interfaces.RateLimiter
	Dedup      *pipeline.Deduplicator
	Validator  *pipeline.Validator
	Enricher   *pipeline.Enricher
	Events     interfaces.EventService
	Client     *httpclient.Client
	AdvisorCfg common.AdvisorConfig
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		storage:    opts.Storage,
		router:     opts.Router,
		advisor:    opts.Advisor,
		limiter:    opts.Limiter,
		dedup:      opts.Dedup,
		validator:  opts.Validator,
		enricher:   opts.Enricher,
		events:     opts.Events,
		client:     opts.Client,
		advisorCfg: opts.AdvisorCfg,
		logger:     common.GetLogger(),
	}
}

// Execute runs one task. The returned error is nil for any session that
// produced a result record, including partial ones; hard failures return a
// classified error so the queue can decide between retry and terminal.
func (o *Orchestrator) Execute(ctx context.Context, task *models.ScrapeTask) (*models.ScrapeResult, error) {
	started := time.Now()

	board, err := o.resolveBoard(ctx, task.BoardID)
	if err != nil {
		return nil, err
	}

	analysis := o.analyzeBoard(ctx, board)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	host := common.HostKey(board.BaseURL)
	if board.RateLimitDelay > 0 {
		if l, ok := o.limiter.(interface {
			SetBaseline(host string, delay time.Duration)
		}); ok {
			l.SetBaseline(host, board.RateLimitDelay)
		}
	}
	if err := o.limiter.Acquire(ctx, host); err != nil {
		return nil, err
	}

	selectors := board.Selectors
	if analysis != nil && len(analysis.Selectors) > 0 {
		selectors = selectors.Merge(analysis.Selectors)
	}
	initial := o.router.ChooseEngine(board, analysis, time.Now())

	result := o.router.Execute(ctx, task, board, selectors, initial)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcome, avgQuality := o.processJobs(ctx, board, result)

	session := o.recordSession(ctx, task, board, result, outcome, avgQuality, started)
	if session != nil {
		task.ResultID = session.ID
	}

	switch result.Status {
	case models.ResultSuccess, models.ResultPartial:
		return result, nil
	case models.ResultRateLimited:
		return result, models.NewScrapeError(models.ErrKindRateLimited, "board rate limited", nil)
	case models.ResultBlocked:
		return result, models.NewScrapeError(models.ErrKindBlocked, "all engines blocked", nil)
	case models.ResultCancelled:
		return result, ctx.Err()
	default:
		msg := result.Error
		if msg == "" {
			msg = "no engine produced jobs"
		}
		return result, models.NewScrapeError(models.ErrKindEmpty, msg, nil)
	}
}

// resolveBoard loads the board or fails with a config error; unknown boards
// are never retried.
func (o *Orchestrator) resolveBoard(ctx context.Context, boardID string) (*models.JobBoard, error) {
	if boardID == "" {
		return nil, models.NewScrapeError(models.ErrKindConfig, "task has no board", nil)
	}

	board, err := o.storage.BoardStorage().GetBoard(ctx, boardID)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrKindConfig, fmt.Sprintf("unknown board %s", boardID), err)
	}
	if !board.Active {
		return nil, models.NewScrapeError(models.ErrKindConfig, fmt.Sprintf("board %s is inactive", boardID), nil)
	}
	return board, nil
}

// analyzeBoard consults the advisor when the stored analysis is stale.
// Advisor failures degrade to nil; routing then falls back to board flags.
func (o *Orchestrator) analyzeBoard(ctx context.Context, board *models.JobBoard) *models.BoardAnalysis {
	if o.advisor == nil {
		return nil
	}
	ttl := o.advisorCfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if board.AnalysisFresh(ttl, time.Now()) && board.Engine != models.EngineAuto {
		return nil
	}

	sample := o.fetchSample(ctx, board)
	analysisStart := time.Now()

	analysis, err := o.advisor.AnalyzeBoard(ctx, board.BaseURL, sample)
	if err != nil {
		o.logger.Warn().
			Str("board_id", board.ID).
			Str("provider", o.advisor.Name()).
			Err(err).
			Msg("Advisor analysis failed, using board defaults")
		return nil
	}
	analysis.BoardID = board.ID

	o.publish(interfaces.EventBoardAnalyzed, analysis)
	if !analysis.Fallback {
		if err := o.storage.BoardStorage().UpdateBoardAnalysis(ctx, board.ID, analysis); err != nil {
			o.logger.Warn().Str("board_id", board.ID).Err(err).Msg("Failed to persist board analysis")
		}
	}

	o.logger.Info().
		Str("board_id", board.ID).
		Str("engine", string(analysis.RecommendedEngine)).
		Str("provider", o.advisor.Name()).
		Str("duration", time.Since(analysisStart).String()).
		Msg("Board analyzed")
	return analysis
}

// fetchSample pulls a truncated HTML sample of the board's landing page for
// the advisor. Failures return an empty sample; analysis still proceeds.
func (o *Orchestrator) fetchSample(ctx context.Context, board *models.JobBoard) string {
	if o.client == nil {
		return ""
	}

	resp, err := o.client.Get(ctx, board.BaseURL, board.Headers)
	if err != nil {
		o.logger.Debug().Str("board_id", board.ID).Err(err).Msg("HTML sample fetch failed")
		return ""
	}

	limit := o.advisorCfg.HTMLSampleBytes
	if limit <= 0 {
		limit = 8192
	}
	if len(resp.Body) > limit {
		return string(resp.Body[:limit])
	}
	return string(resp.Body)
}

// processJobs runs the extracted jobs through dedup, validation and
// enrichment, persists the survivors and returns the dedup outcome plus the
// average quality score of the unique batch.
func (o *Orchestrator) processJobs(ctx context.Context, board *models.JobBoard, result *models.ScrapeResult) (*models.DedupOutcome, float64) {
	if len(result.Jobs) == 0 {
		return &models.DedupOutcome{}, 0
	}

	outcome := o.dedup.Filter(result.Jobs)

	enriched := make([]*models.EnrichedJob, 0, len(outcome.Unique))
	qualitySum := 0.0
	for i := range outcome.Unique {
		job := outcome.Unique[i]

		validation := o.validator.Validate(&job)
		qualitySum += validation.QualityScore
		if !validation.IsValid {
			o.logger.Debug().
				Str("job_id", job.ID).
				Str("board_id", board.ID).
				Msg("Job dropped by validation")
			continue
		}

		enrichment := o.enricher.Enrich(&job)
		enriched = append(enriched, pipeline.BuildEnrichedJob(job, validation, enrichment))
	}

	if len(enriched) > 0 {
		if err := o.storage.JobStorage().SaveJobs(ctx, enriched); err != nil {
			o.logger.Error().Str("board_id", board.ID).Err(err).Msg("Failed to persist jobs")
		}
	}

	avgQuality := 0.0
	if len(outcome.Unique) > 0 {
		avgQuality = qualitySum / float64(len(outcome.Unique))
	}

	o.logger.Info().
		Str("board_id", board.ID).
		Int("found", len(result.Jobs)).
		Int("unique", len(outcome.Unique)).
		Int("kept", len(enriched)).
		Msg("Job batch processed")
	return outcome, avgQuality
}

// recordSession persists the session record and announces it on the bus.
func (o *Orchestrator) recordSession(ctx context.Context, task *models.ScrapeTask, board *models.JobBoard, result *models.ScrapeResult, outcome *models.DedupOutcome, avgQuality float64, started time.Time) *models.ScrapeSession {
	duplicates := 0
	for _, group := range outcome.Duplicates {
		duplicates += len(group)
	}

	session := &models.ScrapeSession{
		ID:          common.NewSessionID(),
		TaskID:      task.ID,
		BoardID:     board.ID,
		BoardName:   board.Name,
		Status:      result.Status,
		EngineUsed:  result.EngineUsed,
		JobsFound:   result.JobsFound,
		JobsUnique:  len(outcome.Unique),
		Duplicates:  duplicates,
		Pages:       result.PagesScraped,
		Errors:      result.Errors,
		AvgQuality:  avgQuality,
		Duration:    time.Since(started),
		Error:       result.Error,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}

	if err := o.storage.SessionStorage().SaveSession(ctx, session); err != nil {
		o.logger.Error().Str("task_id", task.ID).Err(err).Msg("Failed to persist session")
		return nil
	}

	o.publish(interfaces.EventSessionRecorded, session)
	return session
}

func (o *Orchestrator) publish(eventType interfaces.EventType, payload interface{}) {
	if o.events == nil {
		return
	}
	_ = o.events.Publish(context.Background(), interfaces.Event{
		Type:    eventType,
		Payload: payload,
	})
}
