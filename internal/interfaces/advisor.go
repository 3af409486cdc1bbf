package interfaces

import (
	"context"
	"net/http"

	"github.com/ternarybob/venor/internal/models"
)

// Advisor is the AI oracle consulted for engine selection, selector
// generation and content review. Every call carries a deadline via ctx;
// implementations must return within it. Callers treat any error as a cue
// to fall back to deterministic defaults.
type Advisor interface {
	AnalyzeBoard(ctx context.Context, baseURL, htmlSample string) (*models.BoardAnalysis, error)
	GenerateSelectors(ctx context.Context, html, boardName string) (models.SelectorMap, error)
	ValidateContent(ctx context.Context, job *models.RawJob) (*models.ContentReview, error)
	DetectAntiBot(ctx context.Context, html string, headers http.Header) ([]string, error)
	OptimizeParameters(ctx context.Context, data *models.BoardPerformanceData) (*models.TuningAdvice, error)

	// Name identifies the provider (claude, gemini, fallback) for logging.
	Name() string
}
