package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	config := &common.BadgerConfig{Path: t.TempDir()}
	manager, err := NewManager(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestBoardUpsertAndGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	board := &models.JobBoard{
		ID:      "board_test",
		Name:    "Test Board",
		BaseURL: "https://jobs.example.com",
		Engine:  models.EngineStatic,
		Active:  true,
	}
	require.NoError(t, m.BoardStorage().UpsertBoard(ctx, board))
	assert.False(t, board.CreatedAt.IsZero())

	got, err := m.BoardStorage().GetBoard(ctx, "board_test")
	require.NoError(t, err)
	assert.Equal(t, "Test Board", got.Name)
	assert.Equal(t, models.EngineStatic, got.Engine)

	// Upsert with the same ID replaces
	board.Name = "Renamed"
	require.NoError(t, m.BoardStorage().UpsertBoard(ctx, board))
	got, err = m.BoardStorage().GetBoard(ctx, "board_test")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	count, err := m.BoardStorage().CountBoards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBoardGetMissing(t *testing.T) {
	m := newTestManager(t)

	_, err := m.BoardStorage().GetBoard(context.Background(), "absent")
	assert.Error(t, err)
}

func TestBoardListFilters(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	boards := []*models.JobBoard{
		{ID: "b1", Name: "Alpha", BaseURL: "https://a.example.com", Engine: models.EngineStatic, Active: true, Region: "us"},
		{ID: "b2", Name: "Beta", BaseURL: "https://b.example.com", Engine: models.EngineBrowser, Active: true, Region: "eu"},
		{ID: "b3", Name: "Gamma", BaseURL: "https://c.example.com", Engine: models.EngineStatic, Active: false, Region: "us"},
	}
	for _, b := range boards {
		require.NoError(t, m.BoardStorage().UpsertBoard(ctx, b))
	}

	active := true
	got, err := m.BoardStorage().ListBoards(ctx, interfaces.BoardFilter{Active: &active})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	staticBoards, err := m.BoardStorage().ListBoards(ctx, interfaces.BoardFilter{Engine: models.EngineStatic})
	require.NoError(t, err)
	assert.Len(t, staticBoards, 2)

	usActive, err := m.BoardStorage().ListBoards(ctx, interfaces.BoardFilter{Active: &active, Region: "us"})
	require.NoError(t, err)
	assert.Len(t, usActive, 1)
}

func TestBoardAnalysisUpdate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	board := &models.JobBoard{
		ID:      "b1",
		Name:    "Auto Board",
		BaseURL: "https://a.example.com",
		Engine:  models.EngineAuto,
		Active:  true,
	}
	require.NoError(t, m.BoardStorage().UpsertBoard(ctx, board))

	analysis := &models.BoardAnalysis{
		RecommendedEngine: models.EngineBrowser,
		RequiresJS:        true,
		Selectors:         models.SelectorMap{"job_links": {"a.job"}},
		Confidence:        0.9,
		AnalyzedAt:        time.Now(),
	}
	require.NoError(t, m.BoardStorage().UpdateBoardAnalysis(ctx, "b1", analysis))

	got, err := m.BoardStorage().GetBoard(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.EngineBrowser, got.Engine)
	assert.True(t, got.RequiresJS)
	assert.NotNil(t, got.LastAnalyzedAt)
	assert.Equal(t, []string{"a.job"}, got.Selectors.Get("job_links"))

	// Fallback analyses leave the record untouched
	before := *got
	require.NoError(t, m.BoardStorage().UpdateBoardAnalysis(ctx, "b1", &models.BoardAnalysis{
		RecommendedEngine: models.EngineStatic,
		Fallback:          true,
		AnalyzedAt:        time.Now(),
	}))
	after, err := m.BoardStorage().GetBoard(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, before.Engine, after.Engine)
}

func TestSessionSaveAndRecent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	now := time.Now()
	sessions := []*models.ScrapeSession{
		{TaskID: "t1", BoardID: "b1", BoardName: "One", Status: models.ResultSuccess, JobsUnique: 5, CompletedAt: now.Add(-2 * time.Hour)},
		{TaskID: "t2", BoardID: "b1", BoardName: "One", Status: models.ResultFailed, CompletedAt: now.Add(-30 * time.Minute)},
		{TaskID: "t3", BoardID: "b2", BoardName: "Two", Status: models.ResultSuccess, JobsUnique: 12, CompletedAt: now.Add(-10 * time.Minute)},
	}
	for _, s := range sessions {
		require.NoError(t, m.SessionStorage().SaveSession(ctx, s))
		assert.NotEmpty(t, s.ID)
	}

	recent, err := m.SessionStorage().ReadRecentSessions(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "t2", recent[0].TaskID, "oldest first")

	count, err := m.SessionStorage().CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestListTopBoards(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	now := time.Now()
	for _, s := range []*models.ScrapeSession{
		{TaskID: "t1", BoardID: "b1", BoardName: "One", Status: models.ResultSuccess, JobsUnique: 5, CompletedAt: now},
		{TaskID: "t2", BoardID: "b1", BoardName: "One", Status: models.ResultFailed, CompletedAt: now},
		{TaskID: "t3", BoardID: "b2", BoardName: "Two", Status: models.ResultSuccess, JobsUnique: 12, CompletedAt: now},
	} {
		require.NoError(t, m.SessionStorage().SaveSession(ctx, s))
	}

	top, err := m.SessionStorage().ListTopBoards(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, "b2", top[0].BoardID)
	assert.Equal(t, 12, top[0].JobsScraped)
	assert.InDelta(t, 1.0, top[0].SuccessRate, 0.001)
	assert.InDelta(t, 0.5, top[1].SuccessRate, 0.001)
}

func TestJobSaveIdempotentOnBoardAndURL(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	job := &models.EnrichedJob{
		Job: models.RawJob{
			ID:      "job_1",
			Title:   "Engineer",
			Company: "Acme",
			URL:     "https://jobs.example.com/jobs/1?utm=x",
			BoardID: "b1",
		},
	}
	require.NoError(t, m.JobStorage().SaveJob(ctx, job))

	// Same posting with tracking params stripped resolves to the same key
	dup := &models.EnrichedJob{
		Job: models.RawJob{
			ID:      "job_2",
			Title:   "Engineer (updated)",
			Company: "Acme",
			URL:     "https://jobs.example.com/jobs/1",
			BoardID: "b1",
		},
	}
	require.NoError(t, m.JobStorage().SaveJob(ctx, dup))

	count, err := m.JobStorage().CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := m.JobStorage().GetJobByURL(ctx, "b1", "https://jobs.example.com/jobs/1")
	require.NoError(t, err)
	assert.Equal(t, "Engineer (updated)", got.Job.Title)

	// Same URL on a different board is a distinct record
	other := &models.EnrichedJob{
		Job: models.RawJob{
			ID: "job_3", Title: "Engineer", Company: "Acme",
			URL: "https://jobs.example.com/jobs/1", BoardID: "b2",
		},
	}
	require.NoError(t, m.JobStorage().SaveJob(ctx, other))
	count, err = m.JobStorage().CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestJobListByBoard(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	jobs := []*models.EnrichedJob{
		{Job: models.RawJob{ID: "j1", Title: "A", Company: "C", URL: "https://x.example.com/1", BoardID: "b1"}},
		{Job: models.RawJob{ID: "j2", Title: "B", Company: "C", URL: "https://x.example.com/2", BoardID: "b1"}},
		{Job: models.RawJob{ID: "j3", Title: "C", Company: "C", URL: "https://x.example.com/3", BoardID: "b2"}},
	}
	require.NoError(t, m.JobStorage().SaveJobs(ctx, jobs))

	got, err := m.JobStorage().ListJobsByBoard(ctx, "b1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	limited, err := m.JobStorage().ListJobsByBoard(ctx, "b1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAlertPersistence(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	alert := &models.Alert{
		Level:     models.AlertWarning,
		Title:     "Success rate below target",
		Source:    "board:b1",
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, m.MetricStorage().SaveAlert(ctx, alert))
	require.NotEmpty(t, alert.ID)

	listed, err := m.MetricStorage().ListAlerts(ctx, models.AlertFilter{Level: models.AlertWarning})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// Resolve and prune
	now := time.Now()
	alert.ResolvedAt = &now
	require.NoError(t, m.MetricStorage().UpdateAlert(ctx, alert))

	removed, err := m.MetricStorage().PruneAlerts(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := m.MetricStorage().ListAlerts(ctx, models.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
