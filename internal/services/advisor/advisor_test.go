package advisor

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/models"
)

func TestExtractJSONPlain(t *testing.T) {
	raw, err := extractJSON(`{"key": "value"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key": "value"}`, raw)
}

func TestExtractJSONFenced(t *testing.T) {
	response := "Here is the analysis:\n```json\n{\"recommended_engine\": \"static\"}\n```\nDone."
	raw, err := extractJSON(response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"recommended_engine": "static"}`, raw)
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw, err := extractJSON(`The result is {"a": 1} as requested.`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, raw)
}

func TestExtractJSONMissing(t *testing.T) {
	_, err := extractJSON("no json here")
	assert.Error(t, err)
}

func TestFallbackStaticByDefault(t *testing.T) {
	f := NewFallbackAdvisor()

	analysis, err := f.AnalyzeBoard(context.Background(), "https://jobs.example.com",
		`<html><body><a href="/jobs/1">Engineer</a><a href="/jobs/2">Designer</a></body></html>`)
	require.NoError(t, err)

	assert.Equal(t, models.EngineStatic, analysis.RecommendedEngine)
	assert.False(t, analysis.RequiresJS)
	assert.True(t, analysis.Fallback)
	assert.Empty(t, analysis.AntiBotMeasures)
}

func TestFallbackDetectsSPA(t *testing.T) {
	f := NewFallbackAdvisor()

	analysis, err := f.AnalyzeBoard(context.Background(), "https://jobs.example.com",
		`<html><body><div id="root"></div><script src="/bundle.js"></script></body></html>`)
	require.NoError(t, err)

	assert.Equal(t, models.EngineBrowser, analysis.RecommendedEngine)
	assert.True(t, analysis.RequiresJS)
}

func TestFallbackDetectsFeed(t *testing.T) {
	f := NewFallbackAdvisor()

	analysis, err := f.AnalyzeBoard(context.Background(), "https://jobs.example.com",
		`<html><head><link rel="alternate" type="application/rss+xml" href="/jobs.rss"></head></html>`)
	require.NoError(t, err)

	assert.Equal(t, models.EngineFeed, analysis.RecommendedEngine)
}

func TestFallbackDetectsAntiBot(t *testing.T) {
	f := NewFallbackAdvisor()

	measures, err := f.DetectAntiBot(context.Background(),
		`<html><script src="https://www.google.com/recaptcha/api.js"></script></html>`,
		http.Header{"Server": []string{"cloudflare"}})
	require.NoError(t, err)

	assert.Contains(t, measures, "captcha")
	assert.Contains(t, measures, "cloudflare")
}

func TestFallbackAntiBotOrderStable(t *testing.T) {
	f := NewFallbackAdvisor()
	html := `<html><script src="recaptcha.js"></script><script src="datadome.js"></script>` +
		`<div class="cf-challenge"></div><script src="fingerprintjs.min.js"></script></html>`

	first, err := f.DetectAntiBot(context.Background(), html, http.Header{})
	require.NoError(t, err)
	require.Len(t, first, 4)

	for i := 0; i < 20; i++ {
		again, err := f.DetectAntiBot(context.Background(), html, http.Header{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFallbackTuningWidensOnRateLimits(t *testing.T) {
	f := NewFallbackAdvisor()

	advice, err := f.OptimizeParameters(context.Background(), &models.BoardPerformanceData{
		BoardID:       "board_1",
		RateLimitHits: 4,
		Sessions:      10,
		SuccessRate:   0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, advice.Delay)
	assert.Equal(t, 1, advice.Concurrency)
}

func TestFallbackContentReviewScoresPresence(t *testing.T) {
	f := NewFallbackAdvisor()

	review, err := f.ValidateContent(context.Background(), &models.RawJob{
		Title:   "Engineer",
		Company: "Acme",
		URL:     "https://example.com/jobs/1",
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, review.Completeness, 0.01)
	assert.Contains(t, review.Issues, "description too short")
}

// countingAdvisor wraps the fallback but reports non-fallback analyses so
// the cache layer stores them.
type countingAdvisor struct {
	*FallbackAdvisor
	calls int
}

func (c *countingAdvisor) AnalyzeBoard(ctx context.Context, baseURL, htmlSample string) (*models.BoardAnalysis, error) {
	c.calls++
	analysis, err := c.FallbackAdvisor.AnalyzeBoard(ctx, baseURL, htmlSample)
	if analysis != nil {
		analysis.Fallback = false
	}
	return analysis, err
}

func TestCachedAdvisorReusesAnalysis(t *testing.T) {
	inner := &countingAdvisor{FallbackAdvisor: NewFallbackAdvisor()}
	cached := NewCachedAdvisor(inner, time.Hour)

	ctx := context.Background()
	_, err := cached.AnalyzeBoard(ctx, "https://a.example.com", "<html></html>")
	require.NoError(t, err)
	_, err = cached.AnalyzeBoard(ctx, "https://a.example.com", "<html></html>")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)

	// A different board is a different cache key
	_, err = cached.AnalyzeBoard(ctx, "https://b.example.com", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedAdvisorExpires(t *testing.T) {
	inner := &countingAdvisor{FallbackAdvisor: NewFallbackAdvisor()}
	cached := NewCachedAdvisor(inner, time.Hour)

	current := time.Now()
	cached.now = func() time.Time { return current }

	ctx := context.Background()
	_, err := cached.AnalyzeBoard(ctx, "https://a.example.com", "")
	require.NoError(t, err)

	current = current.Add(25 * time.Hour)
	_, err = cached.AnalyzeBoard(ctx, "https://a.example.com", "")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedAdvisorSkipsFallbackResults(t *testing.T) {
	cached := NewCachedAdvisor(NewFallbackAdvisor(), time.Hour)

	ctx := context.Background()
	first, err := cached.AnalyzeBoard(ctx, "https://a.example.com", "")
	require.NoError(t, err)
	assert.True(t, first.Fallback)

	cached.mu.Lock()
	stored := len(cached.entries)
	cached.mu.Unlock()
	assert.Zero(t, stored)
}

func TestCachedAdvisorInvalidate(t *testing.T) {
	inner := &countingAdvisor{FallbackAdvisor: NewFallbackAdvisor()}
	cached := NewCachedAdvisor(inner, time.Hour)

	ctx := context.Background()
	_, err := cached.AnalyzeBoard(ctx, "https://a.example.com", "")
	require.NoError(t, err)

	cached.Invalidate("https://a.example.com")

	_, err = cached.AnalyzeBoard(ctx, "https://a.example.com", "")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestDecodeJSONIntoAnalysisShape(t *testing.T) {
	response := "```json\n" + `{
  "recommended_engine": "browser",
  "complexity": 0.7,
  "requires_js": true,
  "anti_bot_measures": ["cloudflare"],
  "rate_limit_rpm": 30,
  "confidence": 1.4,
  "selectors": {"job_links": ["a.job-card"]}
}` + "\n```"

	var parsed struct {
		RecommendedEngine string              `json:"recommended_engine"`
		Confidence        float64             `json:"confidence"`
		Selectors         map[string][]string `json:"selectors"`
	}
	require.NoError(t, decodeJSON(response, &parsed))
	assert.Equal(t, "browser", parsed.RecommendedEngine)
	assert.Equal(t, []string{"a.job-card"}, parsed.Selectors["job_links"])

	// Out-of-range scores clamp at the boundary
	assert.Equal(t, 1.0, clamp01(parsed.Confidence))
}
