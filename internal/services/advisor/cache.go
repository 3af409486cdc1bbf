package advisor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// CachedAdvisor memoizes board analysis per base URL with a TTL so repeated
// tasks against the same board reuse one advisor call. Other operations pass
// through unchanged.
type CachedAdvisor struct {
	inner interfaces.Advisor
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	analysis *models.BoardAnalysis
	expires  time.Time
}

// NewCachedAdvisor wraps an advisor with analysis caching.
func NewCachedAdvisor(inner interfaces.Advisor, ttl time.Duration) *CachedAdvisor {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedAdvisor{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *CachedAdvisor) Name() string { return c.inner.Name() }

func (c *CachedAdvisor) AnalyzeBoard(ctx context.Context, baseURL, htmlSample string) (*models.BoardAnalysis, error) {
	c.mu.Lock()
	entry, ok := c.entries[baseURL]
	if ok && c.now().Before(entry.expires) {
		cached := *entry.analysis
		c.mu.Unlock()
		return &cached, nil
	}
	c.mu.Unlock()

	analysis, err := c.inner.AnalyzeBoard(ctx, baseURL, htmlSample)
	if err != nil {
		return nil, err
	}

	// Fallback analyses are not cached; a provider may come back later
	if !analysis.Fallback {
		c.mu.Lock()
		c.entries[baseURL] = cacheEntry{
			analysis: analysis,
			expires:  c.now().Add(c.ttl),
		}
		c.mu.Unlock()
	}
	return analysis, nil
}

// Invalidate drops the cached analysis for a board URL.
func (c *CachedAdvisor) Invalidate(baseURL string) {
	c.mu.Lock()
	delete(c.entries, baseURL)
	c.mu.Unlock()
}

func (c *CachedAdvisor) GenerateSelectors(ctx context.Context, html, boardName string) (models.SelectorMap, error) {
	return c.inner.GenerateSelectors(ctx, html, boardName)
}

func (c *CachedAdvisor) ValidateContent(ctx context.Context, job *models.RawJob) (*models.ContentReview, error) {
	return c.inner.ValidateContent(ctx, job)
}

func (c *CachedAdvisor) DetectAntiBot(ctx context.Context, html string, headers http.Header) ([]string, error) {
	return c.inner.DetectAntiBot(ctx, html, headers)
}

func (c *CachedAdvisor) OptimizeParameters(ctx context.Context, data *models.BoardPerformanceData) (*models.TuningAdvice, error) {
	return c.inner.OptimizeParameters(ctx, data)
}
