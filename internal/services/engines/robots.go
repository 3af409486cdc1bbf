package engines

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/ternarybob/venor/internal/httpclient"
)

// robotsCache fetches and caches robots.txt verdicts per host. A fetch
// failure is treated as allow-all, matching common crawler practice.
type robotsCache struct {
	client *httpclient.Client
	mu     sync.Mutex
	data   map[string]*robotstxt.RobotsData
	ttl    time.Duration
	loaded map[string]time.Time
}

func newRobotsCache(client *httpclient.Client) *robotsCache {
	return &robotsCache{
		client: client,
		data:   make(map[string]*robotstxt.RobotsData),
		loaded: make(map[string]time.Time),
		ttl:    time.Hour,
	}
}

// Allowed reports whether userAgent may fetch rawURL per the host's
// robots.txt.
func (rc *robotsCache) Allowed(ctx context.Context, rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	data := rc.robotsFor(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, userAgent)
}

func (rc *robotsCache) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := u.Scheme + "://" + u.Host

	rc.mu.Lock()
	if at, ok := rc.loaded[host]; ok && time.Since(at) < rc.ttl {
		data := rc.data[host]
		rc.mu.Unlock()
		return data
	}
	rc.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var data *robotstxt.RobotsData
	resp, err := rc.client.Get(fetchCtx, host+"/robots.txt", nil)
	if err == nil {
		if parsed, perr := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body); perr == nil {
			data = parsed
		}
	}

	rc.mu.Lock()
	rc.data[host] = data
	rc.loaded[host] = time.Now()
	rc.mu.Unlock()

	return data
}
