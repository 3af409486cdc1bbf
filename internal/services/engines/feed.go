package engines

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/httpclient"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// feedEntryTTL bounds how long parsed entries stay cached for ExtractJob.
// Must outlive the longest plausible gap between ListJobs and the last
// ExtractJob of the same session.
const feedEntryTTL = 15 * time.Minute

type feedEntry struct {
	item     *gofeed.Item
	cachedAt time.Time
}

// FeedEngine reads RSS/Atom feeds. Fields derive from feed entries; there
// is no pagination beyond the feed itself. The entry cache is keyed by
// normalized URL and aged out per entry, never replaced wholesale, so
// concurrent sessions on the shared instance cannot evict each other.
type FeedEngine struct {
	client  *httpclient.Client
	limiter interfaces.RateLimiter
	parser  *gofeed.Parser
	logger  arbor.ILogger

	mu      sync.Mutex
	entries map[string]feedEntry
}

// NewFeedEngine creates the feed adapter.
func NewFeedEngine(client *httpclient.Client, limiter interfaces.RateLimiter) *FeedEngine {
	return &FeedEngine{
		client:  client,
		limiter: limiter,
		parser:  gofeed.NewParser(),
		logger:  common.GetLogger(),
		entries: make(map[string]feedEntry),
	}
}

func (e *FeedEngine) Type() models.EngineType {
	return models.EngineFeed
}

// Probe fetches the feed URL and checks it parses.
func (e *FeedEngine) Probe(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := e.client.Get(ctx, rawURL, nil)
	if err != nil || resp.StatusCode >= 400 {
		return false
	}
	_, err = e.parser.Parse(bytes.NewReader(resp.Body))
	return err == nil
}

// ListJobs fetches and parses the feed, caching entries so ExtractJob can
// serve them without refetching. Query and location filter entry titles and
// descriptions case-insensitively when set.
func (e *FeedEngine) ListJobs(ctx context.Context, board *models.JobBoard, query, location string, maxPages int) ([]string, int, error) {
	host := common.HostKey(board.BaseURL)

	if err := e.limiter.Acquire(ctx, host); err != nil {
		return nil, 0, err
	}

	resp, err := e.client.Get(ctx, board.BaseURL, board.Headers)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode == 429 {
		e.limiter.ReportRateLimited(host)
		return nil, 0, classifyFetchError(models.EngineFeed, host, resp.StatusCode, nil)
	}
	if resp.StatusCode >= 400 {
		return nil, 0, classifyFetchError(models.EngineFeed, host, resp.StatusCode, nil)
	}

	feed, err := e.parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, 0, models.NewScrapeError(models.ErrKindParse, "parsing feed", err)
	}

	now := time.Now()
	seen := make(map[string]struct{})
	var urls []string

	e.mu.Lock()
	e.pruneLocked(now)
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		if !feedItemMatches(item, query, location) {
			continue
		}
		abs := common.ResolveURL(board.BaseURL, item.Link)
		if abs == "" {
			continue
		}
		key := common.NormalizeURL(abs)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		e.entries[key] = feedEntry{item: item, cachedAt: now}
		urls = append(urls, abs)
	}
	e.mu.Unlock()

	e.logger.Debug().
		Str("url", board.BaseURL).
		Int("entries", len(feed.Items)).
		Int("matched", len(urls)).
		Msg("Feed parsed")

	if len(urls) == 0 {
		return nil, 1, &models.ScrapeError{
			Kind:    models.ErrKindEmpty,
			Engine:  models.EngineFeed,
			Host:    host,
			Message: "feed contained no matching entries",
		}
	}

	return urls, 1, nil
}

// pruneLocked drops cache entries older than feedEntryTTL. Caller holds mu.
func (e *FeedEngine) pruneLocked(now time.Time) {
	for key, entry := range e.entries {
		if now.Sub(entry.cachedAt) > feedEntryTTL {
			delete(e.entries, key)
		}
	}
}

// ExtractJob builds a RawJob from the cached feed entry for the URL.
// Selectors are unused for feeds.
func (e *FeedEngine) ExtractJob(ctx context.Context, rawURL string, selectors models.SelectorMap) (*models.RawJob, error) {
	e.mu.Lock()
	entry, ok := e.entries[common.NormalizeURL(rawURL)]
	e.mu.Unlock()
	if !ok {
		return nil, &models.ScrapeError{
			Kind:    models.ErrKindParse,
			Engine:  models.EngineFeed,
			Message: "no cached feed entry for " + rawURL,
		}
	}
	item := entry.item

	title, company := splitFeedTitle(item.Title)
	if company == "" && item.Author != nil {
		company = strings.TrimSpace(item.Author.Name)
	}
	if company == "" {
		// Dublin Core creator, used by several job feeds
		if creators, ok := item.Extensions["dc"]["creator"]; ok && len(creators) > 0 {
			company = strings.TrimSpace(creators[0].Value)
		}
	}
	if title == "" || company == "" {
		return nil, nil
	}

	job := &models.RawJob{
		ID:          common.NewJobID(),
		Title:       title,
		Company:     company,
		Description: strings.TrimSpace(item.Description),
		URL:         rawURL,
		ScrapedAt:   time.Now(),
		Engine:      models.EngineFeed,
	}

	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		job.PostedDate = &t
	} else if item.Published != "" {
		job.PostedDate = common.ParsePostedDate(item.Published, time.Now())
	}

	for _, cat := range item.Categories {
		if strings.EqualFold(cat, "remote") {
			job.Location = "Remote"
			break
		}
	}

	return job, nil
}

func (e *FeedEngine) Close() error {
	return nil
}

// splitFeedTitle separates "Title at Company" and "Company: Title" forms.
func splitFeedTitle(raw string) (title, company string) {
	raw = strings.TrimSpace(raw)
	if idx := strings.LastIndex(raw, " at "); idx > 0 {
		return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+4:])
	}
	if idx := strings.Index(raw, ": "); idx > 0 {
		return strings.TrimSpace(raw[idx+2:]), strings.TrimSpace(raw[:idx])
	}
	return raw, ""
}

func feedItemMatches(item *gofeed.Item, query, location string) bool {
	if query == "" && location == "" {
		return true
	}
	haystack := strings.ToLower(item.Title + " " + item.Description)
	if query != "" && !strings.Contains(haystack, strings.ToLower(query)) {
		return false
	}
	if location != "" && !strings.Contains(haystack, strings.ToLower(location)) {
		return false
	}
	return true
}
