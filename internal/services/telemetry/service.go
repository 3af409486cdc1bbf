package telemetry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
	"github.com/ternarybob/venor/internal/services/engines"
)

// evalWindow is how many recent points the threshold evaluator considers,
// and minEvalPoints is how many it needs before judging a rate.
const (
	evalWindow    = 20
	minEvalPoints = 5
)

// boardAgg accumulates per-board session outcomes for the dashboard.
type boardAgg struct {
	name      string
	sessions  int
	successes int
	jobs      int
}

// Service maintains metric series, per-engine rolling stats and alerts. It
// consumes the event bus; pipeline components never call it directly.
type Service struct {
	config  common.TelemetryConfig
	store   *seriesStore
	engines *engineTracker
	alerts  *alertManager
	events  interfaces.EventService
	logger  arbor.ILogger

	mu            sync.Mutex
	boards        map[string]*boardAgg
	totalSessions int
	totalJobs     int
	successCount  int
	respTimeSum   float64
	respTimeCount int
	active        int
}

// NewService creates the telemetry service and wires its event
// subscriptions.
func NewService(config common.TelemetryConfig, events interfaces.EventService) (*Service, error) {
	s := &Service{
		config:  config,
		store:   newSeriesStore(config.SeriesCapacity),
		engines: newEngineTracker(),
		events:  events,
		logger:  common.GetLogger(),
		boards:  make(map[string]*boardAgg),
	}
	s.alerts = newAlertManager(config.AlertDedupWindow, s.publishAlert)

	if events != nil {
		if err := s.subscribe(events); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) subscribe(events interfaces.EventService) error {
	subs := map[interfaces.EventType]interfaces.EventHandler{
		interfaces.EventEngineOutcome:   s.onEngineOutcome,
		interfaces.EventSessionRecorded: s.onSessionRecorded,
		interfaces.EventTaskStarted:     s.onTaskStarted,
		interfaces.EventTaskCompleted:   s.onTaskFinished,
		interfaces.EventTaskFailed:      s.onTaskFinished,
		interfaces.EventTaskCancelled:   s.onTaskFinished,
	}
	for eventType, handler := range subs {
		if err := events.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("telemetry subscription failed: %w", err)
		}
	}
	return nil
}

// Record appends one point and runs the threshold evaluator over the
// updated series.
func (s *Service) Record(name models.MetricName, value float64, tags map[string]string) {
	point := models.MetricPoint{
		Timestamp: time.Now(),
		Value:     value,
		Tags:      tags,
	}
	s.store.get(name).append(point)
	s.evaluate(name, value, tags)
}

// Query returns points of a series within [from, to] whose tags include
// every entry of the tags filter.
func (s *Service) Query(name models.MetricName, from, to time.Time, tags map[string]string) []models.MetricPoint {
	return s.store.get(name).query(from, to, tags)
}

// EngineStats returns a snapshot of the per-engine rolling metrics.
func (s *Service) EngineStats() map[models.EngineType]models.EngineStats {
	return s.engines.snapshot()
}

// Alerts returns alerts matching the filter, newest first.
func (s *Service) Alerts(filter models.AlertFilter) []*models.Alert {
	return s.alerts.list(filter)
}

// ResolveAlert marks an alert resolved. Returns false when unknown.
func (s *Service) ResolveAlert(id string) bool {
	return s.alerts.resolve(id)
}

// PruneAlerts drops resolved alerts older than the cutoff.
func (s *Service) PruneAlerts(olderThan time.Time) int {
	return s.alerts.prune(olderThan)
}

// Dashboard builds the aggregate snapshot for the control surface.
func (s *Service) Dashboard() *models.DashboardStats {
	s.mu.Lock()

	stats := &models.DashboardStats{
		TotalSessions:  s.totalSessions,
		TotalJobs:      s.totalJobs,
		ActiveSessions: s.active,
		GeneratedAt:    time.Now(),
	}
	if s.totalSessions > 0 {
		stats.SuccessRate = float64(s.successCount) / float64(s.totalSessions)
	}
	if s.respTimeCount > 0 {
		stats.AvgResponseTime = s.respTimeSum / float64(s.respTimeCount)
	}

	for id, agg := range s.boards {
		perf := models.BoardPerformance{
			BoardID:     id,
			BoardName:   agg.name,
			JobsScraped: agg.jobs,
			Sessions:    agg.sessions,
		}
		if agg.sessions > 0 {
			perf.SuccessRate = float64(agg.successes) / float64(agg.sessions)
		}
		stats.TopBoards = append(stats.TopBoards, perf)
	}
	s.mu.Unlock()

	sort.Slice(stats.TopBoards, func(i, j int) bool {
		return stats.TopBoards[i].JobsScraped > stats.TopBoards[j].JobsScraped
	})
	if len(stats.TopBoards) > 10 {
		stats.TopBoards = stats.TopBoards[:10]
	}

	stats.Engines = s.engines.snapshot()
	stats.ActiveAlerts = s.alerts.activeCount()
	stats.HealthScore, stats.Health = s.healthScore(stats)
	return stats
}

// healthScore composes success rate, response time and alert pressure into
// a 0-100 score. 80 and above is healthy, 60 and above degraded.
func (s *Service) healthScore(stats *models.DashboardStats) (float64, models.HealthStatus) {
	if stats.TotalSessions == 0 {
		return 100, models.HealthHealthy
	}

	respScore := 1.0
	warn := s.config.ResponseTimeWarn.Seconds()
	errThresh := s.config.ResponseTimeError.Seconds()
	if errThresh > warn && stats.AvgResponseTime > warn {
		respScore = 1 - (stats.AvgResponseTime-warn)/(errThresh-warn)
		if respScore < 0 {
			respScore = 0
		}
	}

	alertScore := 1.0 - 0.1*float64(stats.ActiveAlerts)
	if alertScore < 0 {
		alertScore = 0
	}

	score := 100 * (0.5*stats.SuccessRate + 0.25*respScore + 0.25*alertScore)
	switch {
	case score >= 80:
		return score, models.HealthHealthy
	case score >= 60:
		return score, models.HealthDegraded
	default:
		return score, models.HealthCritical
	}
}

// WarmStart seeds aggregates from persisted sessions so the dashboard is
// meaningful right after a restart.
func (s *Service) WarmStart(sessions []models.ScrapeSession) {
	for i := range sessions {
		s.ingestSession(&sessions[i])
	}
	s.logger.Info().
		Int("sessions", len(sessions)).
		Msg("Telemetry warm-started from session history")
}

func (s *Service) onEngineOutcome(ctx context.Context, event interfaces.Event) error {
	outcome, ok := event.Payload.(engines.EngineOutcome)
	if !ok {
		return nil
	}

	s.engines.record(outcome.Engine, outcome.Success, outcome.Duration, outcome.JobsFound, outcome.ErrorKind)

	tags := map[string]string{
		"board":  outcome.BoardID,
		"engine": string(outcome.Engine),
	}
	success := 0.0
	if outcome.Success {
		success = 1.0
	}
	s.Record(models.MetricScrapeSuccess, success, tags)
	s.Record(models.MetricResponseTime, outcome.Duration.Seconds(), tags)
	return nil
}

func (s *Service) onSessionRecorded(ctx context.Context, event interfaces.Event) error {
	session, ok := event.Payload.(*models.ScrapeSession)
	if !ok {
		return nil
	}
	s.ingestSession(session)

	tags := map[string]string{"board": session.BoardID}
	s.Record(models.MetricJobsFound, float64(session.JobsFound), tags)
	if session.JobsUnique > 0 {
		s.Record(models.MetricQualityScore, session.AvgQuality, tags)
	}
	return nil
}

func (s *Service) ingestSession(session *models.ScrapeSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalSessions++
	s.totalJobs += session.JobsUnique
	if session.Status == models.ResultSuccess || session.Status == models.ResultPartial {
		s.successCount++
	}
	s.respTimeSum += session.Duration.Seconds()
	s.respTimeCount++

	agg, ok := s.boards[session.BoardID]
	if !ok {
		agg = &boardAgg{name: session.BoardName}
		s.boards[session.BoardID] = agg
	}
	agg.sessions++
	agg.jobs += session.JobsUnique
	if session.Status == models.ResultSuccess || session.Status == models.ResultPartial {
		agg.successes++
	}
}

func (s *Service) onTaskStarted(ctx context.Context, event interfaces.Event) error {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	return nil
}

func (s *Service) onTaskFinished(ctx context.Context, event interfaces.Event) error {
	s.mu.Lock()
	if s.active > 0 {
		s.active--
	}
	s.mu.Unlock()
	return nil
}

// evaluate runs the alert thresholds relevant to the metric just recorded.
func (s *Service) evaluate(name models.MetricName, value float64, tags map[string]string) {
	board := tags["board"]
	source := "board:" + board

	switch name {
	case models.MetricScrapeSuccess:
		points := s.store.get(models.MetricScrapeSuccess).recent(evalWindow, map[string]string{"board": board})
		if len(points) < minEvalPoints {
			return
		}
		successes := 0.0
		for _, p := range points {
			successes += p.Value
		}
		rate := successes / float64(len(points))
		failRate := 1 - rate

		switch {
		case failRate > s.config.ErrorRateCritical:
			s.alerts.raise(models.AlertCritical, source, "Error rate critical",
				fmt.Sprintf("error rate %.0f%% over last %d sessions", failRate*100, len(points)), tags)
		case failRate > s.config.ErrorRateError:
			s.alerts.raise(models.AlertError, source, "Error rate elevated",
				fmt.Sprintf("error rate %.0f%% over last %d sessions", failRate*100, len(points)), tags)
		}

		switch {
		case rate < s.config.SuccessRateError:
			s.alerts.raise(models.AlertError, source, "Success rate low",
				fmt.Sprintf("success rate %.0f%% over last %d sessions", rate*100, len(points)), tags)
		case rate < s.config.SuccessRateWarn:
			s.alerts.raise(models.AlertWarning, source, "Success rate below target",
				fmt.Sprintf("success rate %.0f%% over last %d sessions", rate*100, len(points)), tags)
		}

	case models.MetricResponseTime:
		switch {
		case value > s.config.ResponseTimeError.Seconds():
			s.alerts.raise(models.AlertError, source, "Response time excessive",
				fmt.Sprintf("response took %.1fs", value), tags)
		case value > s.config.ResponseTimeWarn.Seconds():
			s.alerts.raise(models.AlertWarning, source, "Response time slow",
				fmt.Sprintf("response took %.1fs", value), tags)
		}

	case models.MetricQualityScore:
		points := s.store.get(models.MetricQualityScore).recent(evalWindow, map[string]string{"board": board})
		if len(points) < minEvalPoints {
			return
		}
		sum := 0.0
		for _, p := range points {
			sum += p.Value
		}
		if avg := sum / float64(len(points)); avg < s.config.QualityScoreWarn {
			s.alerts.raise(models.AlertWarning, source, "Quality score low",
				fmt.Sprintf("average quality %.2f over last %d batches", avg, len(points)), tags)
		}
	}
}

func (s *Service) publishAlert(alert *models.Alert) {
	s.logger.Warn().
		Str("alert_id", alert.ID).
		Str("level", string(alert.Level)).
		Str("source", alert.Source).
		Msg(alert.Title)

	if s.events == nil {
		return
	}
	_ = s.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventAlertRaised,
		Payload: alert,
	})
}
