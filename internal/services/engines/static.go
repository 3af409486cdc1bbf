package engines

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/httpclient"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// StaticConfig configures the static HTTP adapter.
type StaticConfig struct {
	ProbeTimeout    time.Duration
	FollowRobotsTxt bool
}

// StaticEngine fetches pages with plain HTTP GETs and extracts fields from
// the parsed HTML tree. It is the default engine for boards without
// JavaScript-rendered content.
type StaticEngine struct {
	client  *httpclient.Client
	retry   *httpclient.RetryPolicy
	limiter interfaces.RateLimiter
	robots  *robotsCache
	config  StaticConfig
	logger  arbor.ILogger
}

// NewStaticEngine creates the static HTTP adapter.
func NewStaticEngine(client *httpclient.Client, limiter interfaces.RateLimiter, config StaticConfig) *StaticEngine {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 10 * time.Second
	}
	return &StaticEngine{
		client:  client,
		retry:   httpclient.NewRetryPolicy(),
		limiter: limiter,
		robots:  newRobotsCache(client),
		config:  config,
		logger:  common.GetLogger(),
	}
}

func (e *StaticEngine) Type() models.EngineType {
	return models.EngineStatic
}

// Probe checks reachability with a HEAD request under a short deadline.
func (e *StaticEngine) Probe(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, e.config.ProbeTimeout)
	defer cancel()

	status, err := e.client.Head(ctx, rawURL)
	if err != nil {
		return false
	}
	return status < 400
}

// ListJobs walks listing pages starting from the board's search URL and
// collects absolute job detail URLs. Traversal stops when a page yields no
// new URLs, maxPages is reached, or there is no next-page link. The page
// count is returned per call; the engine instance is shared across workers.
func (e *StaticEngine) ListJobs(ctx context.Context, board *models.JobBoard, query, location string, maxPages int) ([]string, int, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	pageURL := buildSearchURL(board.BaseURL, query, location)
	seen := make(map[string]struct{})
	var jobURLs []string
	pages := 0

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return jobURLs, pages, ctx.Err()
		}

		doc, err := e.fetchDocument(ctx, pageURL, board.Headers)
		if err != nil {
			if len(jobURLs) > 0 {
				// Earlier pages produced URLs; surface what we have
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
			Msg("Listing page scraped")

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
			Engine:  models.EngineStatic,
			Host:    common.HostKey(board.BaseURL),
			Message: "no job links found on listing pages",
		}
	}

	return jobURLs, pages, nil
}

// ExtractJob fetches one detail page and applies selectors with their
// fallback order. Returns nil (no error) when required fields are missing.
func (e *StaticEngine) ExtractJob(ctx context.Context, rawURL string, selectors models.SelectorMap) (*models.RawJob, error) {
	doc, err := e.fetchDocument(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}

	job := buildRawJob(doc, rawURL, selectors, models.EngineStatic)
	if job == nil {
		e.logger.Debug().Str("url", rawURL).Msg("Record skipped, missing required fields")
	}
	return job, nil
}

func (e *StaticEngine) Close() error {
	return nil
}

// fetchDocument GETs a page through the rate limiter and retry policy and
// parses it into a queryable tree.
func (e *StaticEngine) fetchDocument(ctx context.Context, rawURL string, headers map[string]string) (*goquery.Document, error) {
	host := common.HostKey(rawURL)

	if e.config.FollowRobotsTxt && !e.robots.Allowed(ctx, rawURL, "venor") {
		return nil, &models.ScrapeError{
			Kind:    models.ErrKindBlocked,
			Engine:  models.EngineStatic,
			Host:    host,
			Message: "disallowed by robots.txt",
		}
	}

	var resp *httpclient.Response
	status, err := e.retry.ExecuteWithRetry(ctx, e.logger, func() (int, error) {
		if err := e.limiter.Acquire(ctx, host); err != nil {
			return 0, err
		}
		var ferr error
		resp, ferr = e.client.Get(ctx, rawURL, headers)
		if ferr != nil {
			return 0, ferr
		}
		if resp.StatusCode == 429 {
			e.limiter.ReportRateLimited(host)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyFetchError(models.EngineStatic, host, status, err)
	}
	if status >= 400 {
		return nil, classifyFetchError(models.EngineStatic, host, status, nil)
	}

	if blocked := detectBlockPage(resp.Body); blocked != "" {
		return nil, &models.ScrapeError{
			Kind:    models.ErrKindBlocked,
			Engine:  models.EngineStatic,
			Host:    host,
			Message: blocked,
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrKindParse, "parsing html", err)
	}
	return doc, nil
}

// buildRawJob extracts a record from a parsed detail page. Shared with the
// browser adapter, which hands over a serialized DOM.
func buildRawJob(doc *goquery.Document, rawURL string, selectors models.SelectorMap, engine models.EngineType) *models.RawJob {
	title := extractText(doc, selectors, FieldTitle)
	company := extractText(doc, selectors, FieldCompany)
	if title == "" || company == "" {
		return nil
	}

	job := &models.RawJob{
		ID:          common.NewJobID(),
		Title:       title,
		Company:     company,
		Location:    extractText(doc, selectors, FieldLocation),
		Description: extractDescription(doc, selectors),
		Salary:      extractText(doc, selectors, FieldSalary),
		URL:         rawURL,
		ScrapedAt:   time.Now(),
		Engine:      engine,
	}

	if raw := extractText(doc, selectors, FieldDatePosted); raw != "" {
		job.PostedDate = common.ParsePostedDate(raw, time.Now())
	}
	if apply := extractHref(doc, selectors, FieldApplyURL); apply != "" {
		if abs := common.ResolveURL(rawURL, apply); abs != "" {
			job.URL = abs
		}
	}

	return job
}

// classifyFetchError maps an HTTP outcome onto the error taxonomy.
func classifyFetchError(engine models.EngineType, host string, status int, err error) error {
	se := &models.ScrapeError{Engine: engine, Host: host, Err: err}
	switch {
	case status == 429:
		se.Kind = models.ErrKindRateLimited
		se.Message = "rate limited by host"
	case status == 403 || status == 451:
		se.Kind = models.ErrKindBlocked
		se.Message = fmt.Sprintf("blocked with status %d", status)
	case status >= 500:
		se.Kind = models.ErrKindTransient
		se.Message = fmt.Sprintf("server error %d", status)
	case status >= 400:
		se.Kind = models.ErrKindParse
		se.Message = fmt.Sprintf("unexpected status %d", status)
	default:
		se.Kind = models.ErrKindTransient
		se.Message = "fetch failed"
	}
	return se
}

// blockMarkers are substrings that identify CAPTCHA and block pages.
var blockMarkers = []string{
	"captcha",
	"access denied",
	"verify you are human",
	"cf-browser-verification",
	"are you a robot",
	"request blocked",
}

// detectBlockPage scans the first chunk of a body for anti-bot markers and
// returns a description, or "" when none match.
func detectBlockPage(body []byte) string {
	sample := body
	if len(sample) > 16*1024 {
		sample = sample[:16*1024]
	}
	lower := strings.ToLower(string(sample))
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return "anti-bot marker: " + marker
		}
	}
	return ""
}

// buildSearchURL appends query and location parameters to the board's base
// URL when provided.
func buildSearchURL(baseURL, query, location string) string {
	if query == "" && location == "" {
		return baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	q := u.Query()
	if query != "" {
		q.Set("q", query)
	}
	if location != "" {
		q.Set("location", location)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
