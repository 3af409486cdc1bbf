package engines

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// stubEngine is a scripted engine for router tests.
type stubEngine struct {
	engineType models.EngineType
	urls       []string
	listErr    error
	extractErr error
	jobs       map[string]*models.RawJob
	pages      int
	listCalls  int
}

func (s *stubEngine) Type() models.EngineType { return s.engineType }

func (s *stubEngine) Probe(ctx context.Context, url string) bool { return true }

func (s *stubEngine) ListJobs(ctx context.Context, board *models.JobBoard, query, location string, maxPages int) ([]string, int, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return s.urls, s.pages, nil
}

func (s *stubEngine) ExtractJob(ctx context.Context, url string, selectors models.SelectorMap) (*models.RawJob, error) {
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	return s.jobs[url], nil
}

func (s *stubEngine) Close() error { return nil }

func jobFor(url, title string) *models.RawJob {
	return &models.RawJob{
		ID:      "job_" + title,
		Title:   title,
		Company: "Acme",
		URL:     url,
	}
}

func testBoard() *models.JobBoard {
	return &models.JobBoard{
		ID:      "board_test",
		Name:    "Test Board",
		BaseURL: "https://jobs.example.com",
		Engine:  models.EngineAuto,
	}
}

func testTask() *models.ScrapeTask {
	return &models.ScrapeTask{
		ID:       "task_1",
		BoardID:  "board_test",
		MaxPages: 2,
	}
}

func newTestRouter(engines ...interfaces.Engine) *Router {
	return NewRouter(engines, nil, 24*time.Hour)
}

func TestChooseEnginePrecedence(t *testing.T) {
	r := newTestRouter(
		&stubEngine{engineType: models.EngineStatic},
		&stubEngine{engineType: models.EngineBrowser},
		&stubEngine{engineType: models.EngineFeed},
	)
	now := time.Now()

	// Explicit hint wins
	board := testBoard()
	board.Engine = models.EngineFeed
	assert.Equal(t, models.EngineFeed, r.ChooseEngine(board, nil, now))

	// Fresh advisor recommendation
	board = testBoard()
	analysis := &models.BoardAnalysis{
		RecommendedEngine: models.EngineBrowser,
		AnalyzedAt:        now.Add(-time.Hour),
	}
	assert.Equal(t, models.EngineBrowser, r.ChooseEngine(board, analysis, now))

	// Stale advisor recommendation is ignored
	analysis.AnalyzedAt = now.Add(-25 * time.Hour)
	assert.Equal(t, models.EngineStatic, r.ChooseEngine(board, analysis, now))

	// requires_js forces browser when no fresh recommendation
	board.RequiresJS = true
	assert.Equal(t, models.EngineBrowser, r.ChooseEngine(board, analysis, now))

	// Default is static
	board.RequiresJS = false
	assert.Equal(t, models.EngineStatic, r.ChooseEngine(board, nil, now))
}

func TestExecuteHappyPath(t *testing.T) {
	static := &stubEngine{
		engineType: models.EngineStatic,
		urls:       []string{"https://jobs.example.com/1", "https://jobs.example.com/2"},
		jobs: map[string]*models.RawJob{
			"https://jobs.example.com/1": jobFor("https://jobs.example.com/1", "Engineer"),
			"https://jobs.example.com/2": jobFor("https://jobs.example.com/2", "Designer"),
		},
		pages: 1,
	}
	r := newTestRouter(static)

	result := r.Execute(context.Background(), testTask(), testBoard(), nil, models.EngineStatic)

	assert.Equal(t, models.ResultSuccess, result.Status)
	assert.Equal(t, models.EngineStatic, result.EngineUsed)
	assert.Equal(t, 2, result.JobsFound)
	assert.Equal(t, 1, result.PagesScraped)
	require.Len(t, result.Jobs, 2)
	assert.Equal(t, "board_test", result.Jobs[0].BoardID)
	assert.Equal(t, "Test Board", result.Jobs[0].BoardName)
}

func TestExecuteFallsBackToBrowser(t *testing.T) {
	static := &stubEngine{
		engineType: models.EngineStatic,
		listErr: &models.ScrapeError{
			Kind:    models.ErrKindEmpty,
			Engine:  models.EngineStatic,
			Message: "no job links found",
		},
	}
	browserURLs := []string{"https://jobs.example.com/a"}
	browser := &stubEngine{
		engineType: models.EngineBrowser,
		urls:       browserURLs,
		jobs: map[string]*models.RawJob{
			browserURLs[0]: jobFor(browserURLs[0], "Engineer"),
		},
		pages: 1,
	}
	r := newTestRouter(static, browser)

	result := r.Execute(context.Background(), testTask(), testBoard(), nil, models.EngineStatic)

	assert.Equal(t, models.ResultSuccess, result.Status)
	assert.Equal(t, models.EngineBrowser, result.EngineUsed)
	assert.Equal(t, 1, result.JobsFound)
	assert.Equal(t, 1, static.listCalls)
	assert.Equal(t, 1, browser.listCalls)
}

func TestExecuteAllEnginesBlocked(t *testing.T) {
	blockedErr := func(e models.EngineType) *models.ScrapeError {
		return &models.ScrapeError{Kind: models.ErrKindBlocked, Engine: e, Message: "captcha"}
	}
	r := newTestRouter(
		&stubEngine{engineType: models.EngineStatic, listErr: blockedErr(models.EngineStatic)},
		&stubEngine{engineType: models.EngineBrowser, listErr: blockedErr(models.EngineBrowser)},
		&stubEngine{engineType: models.EngineFeed, listErr: blockedErr(models.EngineFeed)},
	)

	result := r.Execute(context.Background(), testTask(), testBoard(), nil, models.EngineStatic)

	assert.Equal(t, models.ResultBlocked, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestExecuteRateLimitedStopsRouting(t *testing.T) {
	static := &stubEngine{
		engineType: models.EngineStatic,
		listErr:    &models.ScrapeError{Kind: models.ErrKindRateLimited, Message: "429"},
	}
	browser := &stubEngine{engineType: models.EngineBrowser}
	r := newTestRouter(static, browser)

	result := r.Execute(context.Background(), testTask(), testBoard(), nil, models.EngineStatic)

	assert.Equal(t, models.ResultRateLimited, result.Status)
	assert.Equal(t, 0, browser.listCalls, "rate limiting must not trigger sibling engines")
}

func TestExecuteRespectsMaxJobs(t *testing.T) {
	urls := []string{
		"https://jobs.example.com/1",
		"https://jobs.example.com/2",
		"https://jobs.example.com/3",
	}
	static := &stubEngine{
		engineType: models.EngineStatic,
		urls:       urls,
		jobs: map[string]*models.RawJob{
			urls[0]: jobFor(urls[0], "One"),
			urls[1]: jobFor(urls[1], "Two"),
			urls[2]: jobFor(urls[2], "Three"),
		},
	}
	r := newTestRouter(static)

	task := testTask()
	task.MaxJobs = 2
	result := r.Execute(context.Background(), task, testBoard(), nil, models.EngineStatic)

	assert.Equal(t, 2, result.JobsFound)
}

func TestExecuteCancelled(t *testing.T) {
	static := &stubEngine{
		engineType: models.EngineStatic,
		urls:       []string{"https://jobs.example.com/1"},
	}
	r := newTestRouter(static)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := r.Execute(ctx, testTask(), testBoard(), nil, models.EngineStatic)
	assert.Equal(t, models.ResultCancelled, result.Status)
}

func TestExecuteSkippedRecordsMakePartial(t *testing.T) {
	urls := []string{"https://jobs.example.com/1", "https://jobs.example.com/2"}
	static := &stubEngine{
		engineType: models.EngineStatic,
		urls:       urls,
		jobs: map[string]*models.RawJob{
			urls[0]: jobFor(urls[0], "One"),
			// urls[1] extracts to nil: missing required fields
		},
	}
	r := newTestRouter(static)

	result := r.Execute(context.Background(), testTask(), testBoard(), nil, models.EngineStatic)

	assert.Equal(t, models.ResultPartial, result.Status)
	assert.Equal(t, 1, result.JobsFound)
	assert.Equal(t, 1, result.Errors)
}
