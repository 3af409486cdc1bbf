package engines

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// consentSelectors are tried in order to dismiss cookie and consent
// overlays before the DOM is serialized.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"button[id*='accept-cookies']",
	"button[id*='cookie-accept']",
	"button[class*='cookie-accept']",
	"button[class*='accept-all']",
	"[aria-label='Accept cookies']",
	"button[data-testid='cookie-banner-accept']",
}

// BrowserConfig configures the headless browser adapter.
type BrowserConfig struct {
	PageLoadTimeout time.Duration
	SelectorWait    time.Duration
	JSWaitTime      time.Duration
	ProbeTimeout    time.Duration
}

// BrowserEngine drives a headless browser for boards whose listings are
// rendered by JavaScript. Pages are loaded, overlays dismissed, and the DOM
// serialized into the same extraction path the static adapter uses.
type BrowserEngine struct {
	pool    *BrowserPool
	limiter interfaces.RateLimiter
	config  BrowserConfig
	logger  arbor.ILogger
}

// NewBrowserEngine creates the browser adapter over a shared pool.
func NewBrowserEngine(pool *BrowserPool, limiter interfaces.RateLimiter, config BrowserConfig) *BrowserEngine {
	if config.PageLoadTimeout <= 0 {
		config.PageLoadTimeout = 30 * time.Second
	}
	if config.SelectorWait <= 0 {
		config.SelectorWait = 10 * time.Second
	}
	if config.JSWaitTime <= 0 {
		config.JSWaitTime = 3 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 10 * time.Second
	}
	return &BrowserEngine{
		pool:    pool,
		limiter: limiter,
		config:  config,
		logger:  common.GetLogger(),
	}
}

func (e *BrowserEngine) Type() models.EngineType {
	return models.EngineBrowser
}

// Probe loads the page and reports whether navigation succeeded.
func (e *BrowserEngine) Probe(ctx context.Context, rawURL string) bool {
	browserCtx, release, err := e.pool.Get()
	if err != nil {
		return false
	}
	defer release()

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, e.config.ProbeTimeout)
	defer timeoutCancel()

	stop := propagateCancel(ctx, cancel)
	defer stop()

	return chromedp.Run(tabCtx, chromedp.Navigate(rawURL)) == nil
}

// ListJobs renders listing pages and collects absolute job detail URLs,
// following next-page links up to maxPages. The page count is returned per
// call; the engine instance is shared across workers.
func (e *BrowserEngine) ListJobs(ctx context.Context, board *models.JobBoard, query, location string, maxPages int) ([]string, int, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	pageURL := buildSearchURL(board.BaseURL, query, location)
	seen := make(map[string]struct{})
	var jobURLs []string
	pages := 0

	// Wait for the first configured job-links selector when present
	readySelector := ""
	if sels := fieldSelectors(board.Selectors, FieldJobLinks); len(sels) > 0 {
		readySelector = sels[0]
	}

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return jobURLs, pages, ctx.Err()
		}

		doc, err := e.renderPage(ctx, pageURL, readySelector, board.Headers)
		if err != nil {
			if len(jobURLs) > 0 {
				e.logger.Warn().Err(err).Int("page", page).Msg("Listing page failed, returning partial URL set")
				return jobURLs, pages, nil
			}
			return nil, pages, err
		}
		pages++

		added := 0
		for _, href := range extractLinks(doc, board.Selectors) {
			abs := common.ResolveURL(pageURL, href)
			if abs == "" {
				continue
			}
			key := common.NormalizeURL(abs)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			jobURLs = append(jobURLs, abs)
			added++
		}

		e.logger.Debug().
			Str("url", pageURL).
			Int("page", page).
			Int("new_urls", added).
			Msg("Rendered listing page scraped")

		if added == 0 {
			break
		}

		next := extractHref(doc, board.Selectors, FieldNextPage)
		if next == "" {
			break
		}
		nextURL := common.ResolveURL(pageURL, next)
		if nextURL == "" || nextURL == pageURL {
			break
		}
		pageURL = nextURL
	}

	if len(jobURLs) == 0 {
		return nil, pages, &models.ScrapeError{
			Kind:    models.ErrKindEmpty,
			Engine:  models.EngineBrowser,
			Host:    common.HostKey(board.BaseURL),
			Message: "no job links found on rendered listing pages",
		}
	}

	return jobURLs, pages, nil
}

// ExtractJob renders one detail page and applies selectors.
func (e *BrowserEngine) ExtractJob(ctx context.Context, rawURL string, selectors models.SelectorMap) (*models.RawJob, error) {
	readySelector := ""
	if sels := fieldSelectors(selectors, FieldTitle); len(sels) > 0 {
		readySelector = sels[0]
	}

	doc, err := e.renderPage(ctx, rawURL, readySelector, nil)
	if err != nil {
		return nil, err
	}

	job := buildRawJob(doc, rawURL, selectors, models.EngineBrowser)
	if job == nil {
		e.logger.Debug().Str("url", rawURL).Msg("Record skipped, missing required fields")
	}
	return job, nil
}

// Close releases the shared pool.
func (e *BrowserEngine) Close() error {
	return e.pool.Close()
}

// renderPage navigates to a URL in a pooled browser, waits for readiness,
// dismisses consent overlays, and returns the serialized DOM.
func (e *BrowserEngine) renderPage(ctx context.Context, rawURL, readySelector string, headers map[string]string) (*goquery.Document, error) {
	host := common.HostKey(rawURL)
	if err := e.limiter.Acquire(ctx, host); err != nil {
		return nil, err
	}

	browserCtx, release, err := e.pool.Get()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrKindInternal, "acquiring browser", err)
	}
	defer release()

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, e.config.PageLoadTimeout)
	defer timeoutCancel()

	stop := propagateCancel(ctx, cancel)
	defer stop()

	tasks := chromedp.Tasks{}
	if len(headers) > 0 {
		extra := make(network.Headers, len(headers))
		for k, v := range headers {
			extra[k] = v
		}
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(extra))
	}
	tasks = append(tasks, chromedp.Navigate(rawURL))

	// Readiness: wait for the container selector under its own budget, or
	// fall back to a fixed JS settle time.
	if readySelector != "" {
		waitCtx, waitCancel := context.WithTimeout(tabCtx, e.config.SelectorWait)
		if err := chromedp.Run(tabCtx, tasks); err != nil {
			waitCancel()
			return nil, e.classifyBrowserError(host, rawURL, err)
		}
		if err := chromedp.Run(waitCtx, chromedp.WaitReady(readySelector, chromedp.ByQuery)); err != nil {
			e.logger.Debug().
				Str("url", rawURL).
				Str("selector", readySelector).
				Msg("Readiness selector never appeared, continuing with settle wait")
		}
		waitCancel()
		tasks = nil
	}

	if tasks != nil {
		if err := chromedp.Run(tabCtx, tasks); err != nil {
			return nil, e.classifyBrowserError(host, rawURL, err)
		}
	}

	if err := chromedp.Run(tabCtx, chromedp.Sleep(e.config.JSWaitTime)); err != nil {
		return nil, e.classifyBrowserError(host, rawURL, err)
	}

	e.dismissOverlays(tabCtx)

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, e.classifyBrowserError(host, rawURL, err)
	}

	if blocked := detectBlockPage([]byte(html)); blocked != "" {
		return nil, &models.ScrapeError{
			Kind:    models.ErrKindBlocked,
			Engine:  models.EngineBrowser,
			Host:    host,
			Message: blocked,
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrKindParse, "parsing rendered html", err)
	}
	return doc, nil
}

// dismissOverlays clicks through the consent selector list. Each attempt
// gets a short budget; failures are expected and ignored.
func (e *BrowserEngine) dismissOverlays(tabCtx context.Context) {
	for _, sel := range consentSelectors {
		clickCtx, cancel := context.WithTimeout(tabCtx, 500*time.Millisecond)
		err := chromedp.Run(clickCtx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
		cancel()
		if err == nil {
			e.logger.Debug().Str("selector", sel).Msg("Dismissed consent overlay")
			return
		}
	}
}

func (e *BrowserEngine) classifyBrowserError(host, rawURL string, err error) error {
	if err == nil {
		return nil
	}
	kind := models.ErrKindTransient
	if strings.Contains(err.Error(), "context deadline exceeded") {
		kind = models.ErrKindTransient
	}
	return &models.ScrapeError{
		Kind:    kind,
		Engine:  models.EngineBrowser,
		Host:    host,
		Message: "browser navigation failed for " + rawURL,
		Err:     err,
	}
}

// propagateCancel cancels a chromedp tab when the task context is done.
// Returns a stop function to detach the watcher.
func propagateCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
