package advisor

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/venor/internal/models"
)

// FallbackAdvisor produces deterministic heuristic analysis without any AI
// provider. It is the advisor of last resort: always available, never
// blocking, and marked as fallback so callers know the confidence ceiling.
type FallbackAdvisor struct{}

// NewFallbackAdvisor creates the heuristic advisor.
func NewFallbackAdvisor() *FallbackAdvisor {
	return &FallbackAdvisor{}
}

func (f *FallbackAdvisor) Name() string { return "fallback" }

// Close is a no-op; the fallback holds no resources.
func (f *FallbackAdvisor) Close() error { return nil }

// spaMarkers indicate a client-rendered page that needs the browser engine.
var spaMarkers = []string{
	"id=\"root\"",
	"id=\"app\"",
	"id=\"__next\"",
	"id=\"__nuxt\"",
	"data-reactroot",
	"ng-version",
	"window.__initial_state__",
	"window.__preloaded_state__",
}

// antiBotMarkers map page content fragments to measure names.
var antiBotMarkers = map[string]string{
	"cloudflare":     "cloudflare",
	"cf-challenge":   "cloudflare",
	"cf-turnstile":   "cloudflare",
	"recaptcha":      "captcha",
	"g-recaptcha":    "captcha",
	"hcaptcha":       "captcha",
	"datadome":       "datadome",
	"perimeterx":     "perimeterx",
	"_px":            "perimeterx",
	"fingerprintjs":  "fingerprinting",
	"distil_r_":      "distil",
	"incapsula":      "incapsula",
	"akamai":         "akamai",
	"press and hold": "captcha",
}

// AnalyzeBoard inspects the HTML sample with static heuristics. Feed links
// win, then SPA markers force the browser engine, otherwise static.
func (f *FallbackAdvisor) AnalyzeBoard(ctx context.Context, baseURL, htmlSample string) (*models.BoardAnalysis, error) {
	lower := strings.ToLower(htmlSample)

	analysis := &models.BoardAnalysis{
		RecommendedEngine: models.EngineStatic,
		Confidence:        0.3,
		AnalyzedAt:        time.Now(),
		Fallback:          true,
	}

	if strings.Contains(lower, "application/rss+xml") || strings.Contains(lower, "application/atom+xml") {
		analysis.RecommendedEngine = models.EngineFeed
		analysis.Confidence = 0.5
	} else if requiresJS(lower) {
		analysis.RecommendedEngine = models.EngineBrowser
		analysis.RequiresJS = true
		analysis.Confidence = 0.4
	}

	analysis.AntiBotMeasures = detectMarkers(lower)
	analysis.Complexity = estimateComplexity(lower)
	return analysis, nil
}

// GenerateSelectors returns nil; the built-in selector library inside the
// engines package covers the no-advisor case.
func (f *FallbackAdvisor) GenerateSelectors(ctx context.Context, html, boardName string) (models.SelectorMap, error) {
	return nil, nil
}

// ValidateContent scores a job on field presence alone.
func (f *FallbackAdvisor) ValidateContent(ctx context.Context, job *models.RawJob) (*models.ContentReview, error) {
	review := &models.ContentReview{Relevance: 0.5}

	fields := 0
	present := 0
	for _, v := range []string{job.Title, job.Company, job.Location, job.Description, job.Salary, job.URL} {
		fields++
		if strings.TrimSpace(v) != "" {
			present++
		}
	}
	review.Completeness = float64(present) / float64(fields)
	review.Quality = review.Completeness

	if len(job.Description) < 100 {
		review.Issues = append(review.Issues, "description too short")
	}
	return review, nil
}

// DetectAntiBot scans for known marker strings in page content and headers.
func (f *FallbackAdvisor) DetectAntiBot(ctx context.Context, html string, headers http.Header) ([]string, error) {
	lower := strings.ToLower(html)
	measures := detectMarkers(lower)

	if server := strings.ToLower(headers.Get("Server")); strings.Contains(server, "cloudflare") {
		measures = appendUnique(measures, "cloudflare")
	}
	if headers.Get("Cf-Ray") != "" {
		measures = appendUnique(measures, "cloudflare")
	}
	return measures, nil
}

// OptimizeParameters widens delays proportionally to rate-limit pressure.
func (f *FallbackAdvisor) OptimizeParameters(ctx context.Context, data *models.BoardPerformanceData) (*models.TuningAdvice, error) {
	advice := &models.TuningAdvice{
		Delay:       2 * time.Second,
		Concurrency: 2,
		Timeout:     30 * time.Second,
		UAStrategy:  "rotate",
	}

	if data.RateLimitHits > 0 {
		advice.Delay = time.Duration(2+2*data.RateLimitHits) * time.Second
		if advice.Delay > 30*time.Second {
			advice.Delay = 30 * time.Second
		}
		advice.Concurrency = 1
		advice.Notes = append(advice.Notes, "widened delay after rate limiting")
	}
	if data.SuccessRate < 0.5 && data.Sessions >= 5 {
		advice.Concurrency = 1
		advice.Notes = append(advice.Notes, "reduced concurrency after low success rate")
	}
	if data.BlockedCount > 0 {
		advice.UseProxy = true
		advice.Notes = append(advice.Notes, "blocked sessions observed")
	}
	return advice, nil
}

func requiresJS(lower string) bool {
	for _, marker := range spaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// A page that is almost all script tags renders client-side
	scripts := strings.Count(lower, "<script")
	anchors := strings.Count(lower, "<a ")
	return scripts > 10 && anchors < 5
}

func detectMarkers(lower string) []string {
	var measures []string
	for marker, name := range antiBotMarkers {
		if strings.Contains(lower, marker) {
			measures = appendUnique(measures, name)
		}
	}
	// Map iteration order varies; keep the measure list stable
	sort.Strings(measures)
	return measures
}

func estimateComplexity(lower string) float64 {
	score := 0.2
	if strings.Count(lower, "<script") > 5 {
		score += 0.2
	}
	if strings.Contains(lower, "graphql") || strings.Contains(lower, "/api/") {
		score += 0.2
	}
	if len(detectMarkers(lower)) > 0 {
		score += 0.3
	}
	return clamp01(score)
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
