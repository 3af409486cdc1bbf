package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/handlers"
	"github.com/ternarybob/venor/internal/httpclient"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
	"github.com/ternarybob/venor/internal/services/advisor"
	"github.com/ternarybob/venor/internal/services/catalog"
	"github.com/ternarybob/venor/internal/services/engines"
	"github.com/ternarybob/venor/internal/services/events"
	"github.com/ternarybob/venor/internal/services/orchestrator"
	"github.com/ternarybob/venor/internal/services/pipeline"
	"github.com/ternarybob/venor/internal/services/queue"
	"github.com/ternarybob/venor/internal/services/ratelimit"
	"github.com/ternarybob/venor/internal/services/scheduler"
	"github.com/ternarybob/venor/internal/services/telemetry"
	"github.com/ternarybob/venor/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager
	badgerManager  *badger.Manager

	// Event-driven services
	EventService     interfaces.EventService
	TelemetryService *telemetry.Service

	// Scraping pipeline
	Client         *httpclient.Client
	RateLimiter    *ratelimit.Limiter
	EngineRouter   *engines.Router
	AdvisorService interfaces.Advisor
	Orchestrator   *orchestrator.Orchestrator
	engineSet      []interfaces.Engine

	// Task execution
	QueueManager *queue.Manager
	Dispatcher   *queue.Dispatcher

	// Board catalog and maintenance
	CatalogLoader    *catalog.Loader
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	TaskHandler    *handlers.TaskHandler
	BoardHandler   *handlers.BoardHandler
	MetricsHandler *handlers.MetricsHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Event service comes first so everything downstream can publish to it
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService)

	if err := app.initServices(); err != nil {
		cancel()
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		cancel()
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info().
		Str("advisor", app.AdvisorService.Name()).
		Int("engines", len(app.engineSet)).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.badgerManager = manager
	a.StorageManager = manager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order:
// client and rate limiter, engines and router, advisor, pipeline,
// orchestrator, queue, telemetry, catalog, scheduler.
func (a *App) initServices() error {
	scraper := a.Config.Scraper

	a.Client = httpclient.New(httpclient.Options{
		Timeout:        scraper.RequestTimeout,
		UserAgents:     scraper.UserAgents,
		RequestsPerSec: scraper.GlobalRequestsPerSec,
		MaxBodySize:    int64(scraper.MaxBodySize),
	})

	a.RateLimiter = ratelimit.New(
		a.Config.RateLimit.DefaultDelay,
		a.Config.RateLimit.MaxDelay,
		a.Config.RateLimit.Cooldown,
		ratelimit.WithWidenCallback(func(host string, delay time.Duration) {
			a.EventService.Publish(a.ctx, interfaces.Event{
				Type: interfaces.EventRateLimitWidened,
				Payload: map[string]interface{}{
					"host":  host,
					"delay": delay.String(),
				},
			})
		}),
	)

	staticEngine := engines.NewStaticEngine(a.Client, a.RateLimiter, engines.StaticConfig{
		ProbeTimeout:    scraper.ProbeTimeout,
		FollowRobotsTxt: scraper.FollowRobotsTxt,
	})

	browserUA := ""
	if len(scraper.UserAgents) > 0 {
		browserUA = scraper.UserAgents[0]
	}
	pool := engines.NewBrowserPool(engines.BrowserPoolConfig{
		MaxInstances: scraper.BrowserPoolSize,
		UserAgent:    browserUA,
		Headless:     scraper.BrowserHeadless,
	})
	browserEngine := engines.NewBrowserEngine(pool, a.RateLimiter, engines.BrowserConfig{
		PageLoadTimeout: scraper.PageLoadTimeout,
		SelectorWait:    scraper.SelectorWait,
		JSWaitTime:      scraper.JavaScriptWaitTime,
		ProbeTimeout:    scraper.ProbeTimeout,
	})

	feedEngine := engines.NewFeedEngine(a.Client, a.RateLimiter)

	a.engineSet = []interfaces.Engine{staticEngine, browserEngine, feedEngine}
	a.EngineRouter = engines.NewRouter(a.engineSet, a.EventService, a.Config.Advisor.CacheTTL)

	advisorService, err := advisor.NewAdvisor(a.ctx, &a.Config.Advisor)
	if err != nil {
		return fmt.Errorf("failed to initialize advisor: %w", err)
	}
	a.AdvisorService = advisorService

	dedup := pipeline.NewDeduplicator(pipeline.DedupConfig{
		SimilarityThreshold: a.Config.Dedup.SimilarityThreshold,
		MaxFingerprints:     a.Config.Dedup.MaxFingerprints,
		EvictBatch:          a.Config.Dedup.EvictBatch,
	})

	// The deduplicator registers fingerprints ahead of validation, so the
	// validator runs without its own dedup pass here.
	a.Orchestrator = orchestrator.New(orchestrator.Options{
		Storage:    a.StorageManager,
		Router:     a.EngineRouter,
		Advisor:    a.AdvisorService,
		Limiter:    a.RateLimiter,
		Dedup:      dedup,
		Validator:  pipeline.NewValidator(nil),
		Enricher:   pipeline.NewEnricher(),
		Events:     a.EventService,
		Client:     a.Client,
		AdvisorCfg: a.Config.Advisor,
	})

	a.QueueManager = queue.NewManager(queue.Config{
		Capacity:    a.Config.Queue.Capacity,
		Workers:     a.Config.Queue.Workers,
		MaxRetries:  a.Config.Queue.MaxRetries,
		TaskTimeout: a.Config.Queue.TaskTimeout,
		DrainGrace:  a.Config.Queue.DrainGrace,
	}, a.Orchestrator, a.EventService)
	a.Dispatcher = queue.NewDispatcher(a.QueueManager)

	telemetryService, err := telemetry.NewService(a.Config.Telemetry, a.EventService)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.TelemetryService = telemetryService
	a.warmStartTelemetry()

	a.CatalogLoader = catalog.NewLoader(a.StorageManager.BoardStorage())
	loaded, err := a.CatalogLoader.LoadDir(a.ctx, a.Config.Boards.Dir)
	if err != nil {
		a.Logger.Warn().Err(err).
			Str("dir", a.Config.Boards.Dir).
			Msg("Failed to load board catalog")
	} else if loaded > 0 {
		a.Logger.Info().
			Int("boards", loaded).
			Str("dir", a.Config.Boards.Dir).
			Msg("Board catalog loaded")
	}

	a.SchedulerService = scheduler.NewService(scheduler.Options{
		Schedule:    a.Config.Schedule,
		Queue:       a.QueueManager,
		Boards:      a.StorageManager.BoardStorage(),
		Telemetry:   a.TelemetryService,
		Metrics:     a.StorageManager.MetricStorage(),
		ValueLogGC:  a.badgerManager.DB().RunValueLogGC,
		StaleAfter:  2 * a.Config.Queue.TaskTimeout,
		AnalysisTTL: a.Config.Advisor.CacheTTL,
	})

	return nil
}

// warmStartTelemetry replays the last day of persisted sessions into the
// telemetry aggregates so the dashboard survives restarts.
func (a *App) warmStartTelemetry() {
	since := time.Now().Add(-24 * time.Hour)
	recent, err := a.StorageManager.SessionStorage().ReadRecentSessions(a.ctx, since)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to read session history for telemetry warm start")
		return
	}
	if len(recent) == 0 {
		return
	}

	sessions := make([]models.ScrapeSession, 0, len(recent))
	for _, s := range recent {
		sessions = append(sessions, *s)
	}
	a.TelemetryService.WarmStart(sessions)
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler(a.TelemetryService)
	a.TaskHandler = handlers.NewTaskHandler(a.QueueManager, a.Dispatcher)
	a.BoardHandler = handlers.NewBoardHandler(
		a.StorageManager.BoardStorage(),
		a.AdvisorService,
		a.Client,
		a.engineSet,
		a.Config.Advisor,
	)
	a.MetricsHandler = handlers.NewMetricsHandler(a.TelemetryService)

	a.Logger.Debug().Msg("HTTP handlers initialized")
	return nil
}

// Start launches the background workers: queue manager, recurring task
// dispatcher and the maintenance scheduler.
func (a *App) Start() error {
	if err := a.QueueManager.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start queue manager: %w", err)
	}

	a.Dispatcher.Start(a.ctx)

	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	a.Logger.Info().
		Int("workers", a.Config.Queue.Workers).
		Msg("Background services started")

	return nil
}

// Close shuts down services in reverse dependency order.
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.Dispatcher != nil {
		a.Dispatcher.Stop()
	}

	if a.QueueManager != nil {
		if err := a.QueueManager.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop queue manager")
		}
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	for _, engine := range a.engineSet {
		if err := engine.Close(); err != nil {
			a.Logger.Warn().Err(err).
				Str("engine", string(engine.Type())).
				Msg("Failed to close engine")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
