package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
)

// Limiter enforces a minimum inter-request delay per host with adaptive
// widening: a reported 429 doubles the host's delay up to a ceiling, and the
// delay decays back to baseline after a cooldown without further 429s.
type Limiter struct {
	hosts        map[string]*hostLimiter
	mu           sync.RWMutex
	defaultDelay time.Duration
	maxDelay     time.Duration
	cooldown     time.Duration
	logger       arbor.ILogger

	// onWiden is notified when a host's delay doubles. Optional.
	onWiden func(host string, delay time.Duration)
}

// hostLimiter tracks rate limiting for a single host. Waiters serialize on
// mu, so acquisition within a host is first-come-first-served.
type hostLimiter struct {
	mu          sync.Mutex
	lastRequest time.Time
	delay       time.Duration
	baseline    time.Duration
	lastWidened time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWidenCallback registers a callback fired when a host delay widens.
func WithWidenCallback(cb func(host string, delay time.Duration)) Option {
	return func(l *Limiter) {
		l.onWiden = cb
	}
}

// New creates a Limiter. defaultDelay is the baseline per-host delay,
// maxDelay the widening ceiling, cooldown the quiet period after which a
// widened delay resets to baseline.
func New(defaultDelay, maxDelay, cooldown time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		hosts:        make(map[string]*hostLimiter),
		defaultDelay: defaultDelay,
		maxDelay:     maxDelay,
		cooldown:     cooldown,
		logger:       common.GetLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetBaseline overrides the baseline delay for a host, used when a board
// configures its own rate-limit delay.
func (l *Limiter) SetBaseline(host string, delay time.Duration) {
	if host == "" || delay <= 0 {
		return
	}
	hl := l.limiterFor(host)
	hl.mu.Lock()
	hl.baseline = delay
	if hl.delay < delay {
		hl.delay = delay
	}
	hl.mu.Unlock()
}

// Acquire blocks until at least the host's current delay has elapsed since
// the last recorded request to it, then records "now" as the last request.
// It fails only when ctx is done.
func (l *Limiter) Acquire(ctx context.Context, host string) error {
	if host == "" {
		return nil
	}

	hl := l.limiterFor(host)

	hl.mu.Lock()
	defer hl.mu.Unlock()

	l.maybeDecayLocked(hl)

	now := time.Now()
	nextAllowed := hl.lastRequest.Add(hl.delay)

	if now.Before(nextAllowed) {
		wait := nextAllowed.Sub(now)

		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	hl.lastRequest = time.Now()
	return nil
}

// ReportRateLimited doubles the host's effective delay, capped at the
// configured ceiling. The cooldown clock restarts on every report.
func (l *Limiter) ReportRateLimited(host string) {
	if host == "" {
		return
	}

	hl := l.limiterFor(host)

	hl.mu.Lock()
	doubled := hl.delay * 2
	if doubled > l.maxDelay {
		doubled = l.maxDelay
	}
	hl.delay = doubled
	hl.lastWidened = time.Now()
	delay := hl.delay
	hl.mu.Unlock()

	l.logger.Warn().
		Str("host", host).
		Dur("delay", delay).
		Msg("Rate limit hit, widening host delay")

	if l.onWiden != nil {
		l.onWiden(host, delay)
	}
}

// CurrentDelay returns the effective minimum delay for a host.
func (l *Limiter) CurrentDelay(host string) time.Duration {
	l.mu.RLock()
	hl, ok := l.hosts[host]
	l.mu.RUnlock()
	if !ok {
		return l.defaultDelay
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()
	l.maybeDecayLocked(hl)
	return hl.delay
}

// maybeDecayLocked resets a widened delay to baseline once the cooldown has
// passed without further 429 reports. Caller holds hl.mu.
func (l *Limiter) maybeDecayLocked(hl *hostLimiter) {
	if hl.delay <= hl.baseline {
		return
	}
	if !hl.lastWidened.IsZero() && time.Since(hl.lastWidened) >= l.cooldown {
		hl.delay = hl.baseline
		hl.lastWidened = time.Time{}
	}
}

func (l *Limiter) limiterFor(host string) *hostLimiter {
	l.mu.RLock()
	hl, ok := l.hosts[host]
	l.mu.RUnlock()
	if ok {
		return hl
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if hl, ok = l.hosts[host]; ok {
		return hl
	}
	hl = &hostLimiter{
		delay:    l.defaultDelay,
		baseline: l.defaultDelay,
	}
	l.hosts[host] = hl
	return hl
}
