package engines

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// fallbackOrder is the engine sequence tried when the initial engine fails.
// The engine already attempted is skipped.
var fallbackOrder = []models.EngineType{models.EngineStatic, models.EngineBrowser, models.EngineFeed}

// EngineOutcome is the payload of engine_outcome events.
type EngineOutcome struct {
	BoardID   string            `json:"board_id"`
	Engine    models.EngineType `json:"engine"`
	Success   bool              `json:"success"`
	JobsFound int               `json:"jobs_found"`
	Duration  time.Duration     `json:"duration"`
	ErrorKind models.ErrorKind  `json:"error_kind,omitempty"`
}

// Router selects an engine per board and falls back to sibling engines on
// failure. Outcomes are published as events; telemetry subscribes.
type Router struct {
	engines    map[models.EngineType]interfaces.Engine
	events     interfaces.EventService
	advisorTTL time.Duration
	logger     arbor.ILogger
}

// NewRouter creates a router over a fixed engine set.
func NewRouter(engineSet []interfaces.Engine, events interfaces.EventService, advisorTTL time.Duration) *Router {
	m := make(map[models.EngineType]interfaces.Engine, len(engineSet))
	for _, e := range engineSet {
		m[e.Type()] = e
	}
	if advisorTTL <= 0 {
		advisorTTL = 24 * time.Hour
	}
	return &Router{
		engines:    m,
		events:     events,
		advisorTTL: advisorTTL,
		logger:     common.GetLogger(),
	}
}

// ChooseEngine resolves the initial engine for a board: explicit hint first,
// then a fresh advisor recommendation, then requires_js forcing browser,
// then static.
func (r *Router) ChooseEngine(board *models.JobBoard, analysis *models.BoardAnalysis, now time.Time) models.EngineType {
	if board.Engine != "" && board.Engine != models.EngineAuto {
		return board.Engine
	}
	if analysis != nil && !analysis.Fallback && now.Sub(analysis.AnalyzedAt) < r.advisorTTL {
		if _, ok := r.engines[analysis.RecommendedEngine]; ok {
			return analysis.RecommendedEngine
		}
	}
	if board.RequiresJS {
		return models.EngineBrowser
	}
	return models.EngineStatic
}

// Execute runs the scrape through the chosen engine, falling back to
// sibling engines on engine error, blocked signal, or zero extracted jobs.
func (r *Router) Execute(ctx context.Context, task *models.ScrapeTask, board *models.JobBoard, selectors models.SelectorMap, initial models.EngineType) *models.ScrapeResult {
	start := time.Now()
	result := &models.ScrapeResult{
		TaskID:  task.ID,
		BoardID: board.ID,
		Status:  models.ResultFailed,
	}

	tried := make(map[models.EngineType]bool)
	order := make([]models.EngineType, 0, len(fallbackOrder))
	order = append(order, initial)
	for _, eng := range fallbackOrder {
		if eng != initial {
			order = append(order, eng)
		}
	}

	var lastErr error
	allBlocked := true

	for _, engType := range order {
		if ctx.Err() != nil {
			result.Status = models.ResultCancelled
			result.Error = ctx.Err().Error()
			break
		}

		engine, ok := r.engines[engType]
		if !ok || tried[engType] {
			continue
		}
		tried[engType] = true

		attemptStart := time.Now()
		jobs, pages, skipped, err := r.attempt(ctx, engine, task, board, selectors)
		attemptDur := time.Since(attemptStart)
		result.Errors += skipped

		if err == nil && len(jobs) > 0 {
			r.publishOutcome(ctx, board.ID, engType, true, len(jobs), attemptDur, "")

			result.Status = models.ResultSuccess
			result.Jobs = jobs
			result.JobsFound = len(jobs)
			result.PagesScraped = pages
			result.EngineUsed = engType
			result.Duration = time.Since(start)
			if result.Errors > 0 {
				result.Status = models.ResultPartial
			}
			return result
		}

		kind := models.ErrKindEmpty
		if err != nil {
			lastErr = err
			kind = models.KindOf(err)
		}
		if kind != models.ErrKindBlocked {
			allBlocked = false
		}
		result.PagesScraped += pages

		r.publishOutcome(ctx, board.ID, engType, false, len(jobs), attemptDur, kind)
		r.logger.Warn().
			Str("board_id", board.ID).
			Str("engine", string(engType)).
			Str("error_kind", string(kind)).
			Err(err).
			Msg("Engine attempt failed, trying sibling")

		// Rate limiting is not an engine problem; stop routing and let the
		// scheduler re-enqueue the task later.
		if kind == models.ErrKindRateLimited {
			result.Status = models.ResultRateLimited
			result.Error = err.Error()
			result.Duration = time.Since(start)
			return result
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}

	result.Duration = time.Since(start)
	if ctx.Err() != nil {
		result.Status = models.ResultCancelled
		result.Error = ctx.Err().Error()
		return result
	}

	if allBlocked && lastErr != nil {
		result.Status = models.ResultBlocked
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	} else if result.Error == "" {
		result.Error = "no engine produced jobs"
	}
	return result
}

// attempt runs one engine end to end: enumerate detail URLs, then extract
// each record. Cancellation is observed between every page and record.
func (r *Router) attempt(ctx context.Context, engine interfaces.Engine, task *models.ScrapeTask, board *models.JobBoard, selectors models.SelectorMap) ([]models.RawJob, int, int, error) {
	urls, pages, err := engine.ListJobs(ctx, board, task.Query, task.Location, task.MaxPages)
	if err != nil {
		return nil, pages, 0, err
	}

	if task.MaxJobs > 0 && len(urls) > task.MaxJobs {
		urls = urls[:task.MaxJobs]
	}

	var jobs []models.RawJob
	skipped := 0
	for _, u := range urls {
		if ctx.Err() != nil {
			return jobs, pages, skipped, ctx.Err()
		}

		job, err := engine.ExtractJob(ctx, u, selectors)
		if err != nil {
			kind := models.KindOf(err)
			// Parse problems skip the record; anything else aborts the attempt
			if kind == models.ErrKindParse {
				skipped++
				r.logger.Debug().Str("url", u).Err(err).Msg("Record skipped")
				continue
			}
			return jobs, pages, skipped, err
		}
		if job == nil {
			skipped++
			continue
		}

		job.BoardID = board.ID
		job.BoardName = board.Name
		jobs = append(jobs, *job)
	}

	return jobs, pages, skipped, nil
}

func (r *Router) publishOutcome(ctx context.Context, boardID string, engine models.EngineType, success bool, jobsFound int, duration time.Duration, kind models.ErrorKind) {
	if r.events == nil {
		return
	}
	_ = r.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventEngineOutcome,
		Payload: EngineOutcome{
			BoardID:   boardID,
			Engine:    engine,
			Success:   success,
			JobsFound: jobsFound,
			Duration:  duration,
			ErrorKind: kind,
		},
	})
}
