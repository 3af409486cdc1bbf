package advisor

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/models"
)

// completer abstracts a chat model behind a single-turn completion call.
// Claude and Gemini implementations differ only here; the surrounding
// prompting and response parsing is shared.
type completer interface {
	complete(ctx context.Context, system, prompt string) (string, error)
	name() string
	close() error
}

// providerAdvisor implements the advisor contract on top of a completer.
// Every call runs under the configured per-call deadline.
type providerAdvisor struct {
	llm     completer
	timeout time.Duration
	logger  arbor.ILogger
}

func newProviderAdvisor(llm completer, timeout time.Duration) *providerAdvisor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &providerAdvisor{
		llm:     llm,
		timeout: timeout,
		logger:  common.GetLogger(),
	}
}

func (a *providerAdvisor) Name() string {
	return a.llm.name()
}

func (a *providerAdvisor) Close() error {
	return a.llm.close()
}

func (a *providerAdvisor) AnalyzeBoard(ctx context.Context, baseURL, htmlSample string) (*models.BoardAnalysis, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	response, err := a.llm.complete(callCtx, analyzeSystemPrompt, buildAnalyzePrompt(baseURL, htmlSample))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		RecommendedEngine string              `json:"recommended_engine"`
		Complexity        float64             `json:"complexity"`
		RequiresJS        bool                `json:"requires_js"`
		AntiBotMeasures   []string            `json:"anti_bot_measures"`
		RateLimitRPM      int                 `json:"rate_limit_rpm"`
		Confidence        float64             `json:"confidence"`
		Selectors         map[string][]string `json:"selectors"`
	}
	if err := decodeJSON(response, &parsed); err != nil {
		return nil, err
	}

	engine := models.EngineType(strings.ToLower(parsed.RecommendedEngine))
	switch engine {
	case models.EngineStatic, models.EngineBrowser, models.EngineFeed:
	default:
		engine = models.EngineStatic
	}

	a.logger.Debug().
		Str("provider", a.llm.name()).
		Str("url", baseURL).
		Str("engine", string(engine)).
		Str("duration", time.Since(start).String()).
		Msg("Board analysis completed")

	return &models.BoardAnalysis{
		RecommendedEngine: engine,
		Complexity:        clamp01(parsed.Complexity),
		Selectors:         models.SelectorMap(parsed.Selectors),
		AntiBotMeasures:   parsed.AntiBotMeasures,
		RateLimitRPM:      parsed.RateLimitRPM,
		RequiresJS:        parsed.RequiresJS,
		Confidence:        clamp01(parsed.Confidence),
		AnalyzedAt:        time.Now(),
	}, nil
}

func (a *providerAdvisor) GenerateSelectors(ctx context.Context, html, boardName string) (models.SelectorMap, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	response, err := a.llm.complete(callCtx, selectorsSystemPrompt, buildSelectorsPrompt(html, boardName))
	if err != nil {
		return nil, err
	}

	var parsed map[string][]string
	if err := decodeJSON(response, &parsed); err != nil {
		return nil, err
	}

	selectors := make(models.SelectorMap, len(parsed))
	for field, list := range parsed {
		var kept []string
		for _, sel := range list {
			if strings.TrimSpace(sel) != "" {
				kept = append(kept, strings.TrimSpace(sel))
			}
		}
		if len(kept) > 0 {
			selectors[field] = kept
		}
	}
	return selectors, nil
}

func (a *providerAdvisor) ValidateContent(ctx context.Context, job *models.RawJob) (*models.ContentReview, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	response, err := a.llm.complete(callCtx, reviewSystemPrompt, buildReviewPrompt(job))
	if err != nil {
		return nil, err
	}

	var parsed models.ContentReview
	if err := decodeJSON(response, &parsed); err != nil {
		return nil, err
	}
	parsed.Quality = clamp01(parsed.Quality)
	parsed.Completeness = clamp01(parsed.Completeness)
	parsed.Relevance = clamp01(parsed.Relevance)
	return &parsed, nil
}

func (a *providerAdvisor) DetectAntiBot(ctx context.Context, html string, headers http.Header) ([]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	response, err := a.llm.complete(callCtx, antiBotSystemPrompt, buildAntiBotPrompt(html, headers))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Measures []string `json:"measures"`
	}
	if err := decodeJSON(response, &parsed); err != nil {
		return nil, err
	}
	return parsed.Measures, nil
}

func (a *providerAdvisor) OptimizeParameters(ctx context.Context, data *models.BoardPerformanceData) (*models.TuningAdvice, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	response, err := a.llm.complete(callCtx, tuningSystemPrompt, buildTuningPrompt(data))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		DelaySeconds   float64  `json:"delay_seconds"`
		Concurrency    int      `json:"concurrency"`
		TimeoutSeconds float64  `json:"timeout_seconds"`
		UAStrategy     string   `json:"ua_strategy"`
		UseProxy       bool     `json:"use_proxy"`
		Notes          []string `json:"notes"`
	}
	if err := decodeJSON(response, &parsed); err != nil {
		return nil, err
	}

	advice := &models.TuningAdvice{
		Delay:       time.Duration(parsed.DelaySeconds * float64(time.Second)),
		Concurrency: parsed.Concurrency,
		Timeout:     time.Duration(parsed.TimeoutSeconds * float64(time.Second)),
		UAStrategy:  parsed.UAStrategy,
		UseProxy:    parsed.UseProxy,
		Notes:       parsed.Notes,
	}
	if advice.Concurrency < 1 {
		advice.Concurrency = 1
	}
	return advice, nil
}
