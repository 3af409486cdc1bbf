package engines

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
)

// BrowserPool manages a fixed set of headless browser contexts with
// round-robin allocation. Instances are created lazily on first use so the
// browser executable is only required when a board actually needs it.
type BrowserPool struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	mu               sync.Mutex
	maxInstances     int
	currentIndex     int
	userAgent        string
	headless         bool
	initialized      bool
	logger           arbor.ILogger
}

// BrowserPoolConfig holds pool sizing and browser options.
type BrowserPoolConfig struct {
	MaxInstances int
	UserAgent    string
	Headless     bool
}

// NewBrowserPool creates an uninitialized pool.
func NewBrowserPool(config BrowserPoolConfig) *BrowserPool {
	if config.MaxInstances <= 0 {
		config.MaxInstances = 2
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	}
	return &BrowserPool{
		maxInstances: config.MaxInstances,
		userAgent:    config.UserAgent,
		headless:     config.Headless,
		logger:       common.GetLogger(),
	}
}

// ensureInitialized creates browser instances on first use.
func (p *BrowserPool) ensureInitialized() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	p.logger.Info().
		Int("pool_size", p.maxInstances).
		Bool("headless", p.headless).
		Msg("Initializing browser pool")

	created := 0
	var lastErr error
	for i := 0; i < p.maxInstances; i++ {
		if err := p.createInstance(i); err != nil {
			lastErr = err
			p.logger.Warn().
				Err(err).
				Int("browser_index", i).
				Msg("Failed to create browser instance")
			continue
		}
		created++
	}

	if created == 0 {
		p.cleanupLocked()
		return fmt.Errorf("failed to create any browser instances: %w", lastErr)
	}

	if created < p.maxInstances {
		p.logger.Warn().
			Int("requested", p.maxInstances).
			Int("created", created).
			Msg("Created fewer browser instances than requested")
		p.maxInstances = created
	}

	p.initialized = true
	return nil
}

func (p *BrowserPool) createInstance(index int) error {
	start := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(p.userAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance failed startup test: %w", err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)

	p.logger.Debug().
		Int("browser_index", index).
		Dur("startup_time", time.Since(start)).
		Msg("Browser instance created")

	return nil
}

// Get returns a browser context using round-robin allocation plus a release
// function to call when done.
func (p *BrowserPool) Get() (context.Context, func(), error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.browsers) == 0 {
		return nil, nil, fmt.Errorf("no browser instances available")
	}

	index := p.currentIndex % len(p.browsers)
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)

	release := func() {
		p.logger.Debug().Int("browser_index", index).Msg("Browser context released")
	}

	return p.browsers[index], release, nil
}

// Close shuts down all browser instances.
func (p *BrowserPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	p.cleanupLocked()
	p.initialized = false
	p.logger.Info().Msg("Browser pool closed")
	return nil
}

func (p *BrowserPool) cleanupLocked() {
	for _, cancel := range p.browserCancels {
		cancel()
	}
	for _, cancel := range p.allocatorCancels {
		cancel()
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.currentIndex = 0
}
