package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/venor/internal/models"
)

// defaultUserAgents is the fallback pool when none is configured.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (Version/17.5 Safari/605.1.15)",
}

// Client wraps http.Client with user-agent rotation, a process-wide request
// budget and response-size capping. All scraping HTTP traffic goes through it.
type Client struct {
	httpClient  *http.Client
	userAgents  []string
	uaIndex     atomic.Uint64
	budget      *rate.Limiter
	maxBodySize int64
}

// Options configures a Client.
type Options struct {
	Timeout        time.Duration
	UserAgents     []string
	RequestsPerSec float64 // Global budget across all hosts; 0 disables
	MaxBodySize    int64   // Bytes; 0 means 10 MB
}

// New creates a scraping HTTP client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = defaultUserAgents
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 10 * 1024 * 1024
	}

	budget := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSec > 0 {
		budget = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}

	jar, _ := cookiejar.New(nil)

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		userAgents:  opts.UserAgents,
		budget:      budget,
		maxBodySize: opts.MaxBodySize,
	}
}

// NextUserAgent returns the next user agent from the rotation pool.
func (c *Client) NextUserAgent() string {
	n := c.uaIndex.Add(1)
	return c.userAgents[int(n-1)%len(c.userAgents)]
}

// Response is the outcome of one Get: status, headers and a size-capped body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	FinalURL   string
}

// Get fetches a URL with the next user agent and any extra headers. The
// process-wide budget is consumed before the request is issued. The body is
// read fully but capped at maxBodySize.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	if err := c.budget.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrKindConfig, fmt.Sprintf("invalid url %q", url), err)
	}

	req.Header.Set("User-Agent", c.NextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, models.NewScrapeError(models.ErrKindTransient, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrKindTransient, "reading body", err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		FinalURL:   finalURL,
	}, nil
}

// Head issues a HEAD request for reachability probes.
func (c *Client) Head(ctx context.Context, url string) (int, error) {
	if err := c.budget.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.NextUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
