package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireEnforcesMinDelay(t *testing.T) {
	l := New(50*time.Millisecond, time.Second, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "https://example.com"))
	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "https://example.com"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 45*time.Millisecond)
}

func TestAcquireDifferentHostsIndependent(t *testing.T) {
	l := New(200*time.Millisecond, time.Second, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "https://a.example.com"))
	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "https://b.example.com"))

	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestReportRateLimitedDoublesDelay(t *testing.T) {
	l := New(2*time.Second, 60*time.Second, 5*time.Minute)
	host := "https://example.com"

	assert.Equal(t, 2*time.Second, l.CurrentDelay(host))

	l.ReportRateLimited(host)
	assert.Equal(t, 4*time.Second, l.CurrentDelay(host))

	l.ReportRateLimited(host)
	assert.Equal(t, 8*time.Second, l.CurrentDelay(host))
}

func TestWideningCapsAtCeiling(t *testing.T) {
	l := New(10*time.Second, 60*time.Second, 5*time.Minute)
	host := "https://example.com"

	for i := 0; i < 5; i++ {
		l.ReportRateLimited(host)
	}
	assert.Equal(t, 60*time.Second, l.CurrentDelay(host))
}

func TestDelayDecaysAfterCooldown(t *testing.T) {
	l := New(10*time.Millisecond, time.Second, 30*time.Millisecond)
	host := "https://example.com"

	l.ReportRateLimited(host)
	assert.Equal(t, 20*time.Millisecond, l.CurrentDelay(host))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, l.CurrentDelay(host))
}

func TestSetBaselineRaisesDelay(t *testing.T) {
	l := New(10*time.Millisecond, time.Second, time.Minute)
	host := "https://example.com"

	l.SetBaseline(host, 100*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, l.CurrentDelay(host))
}

func TestAcquireHonorsContext(t *testing.T) {
	l := New(time.Second, time.Minute, time.Minute)
	host := "https://example.com"
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, host))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx, host)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentAcquireGapsRespected(t *testing.T) {
	delay := 20 * time.Millisecond
	l := New(delay, time.Second, time.Minute)
	host := "https://example.com"

	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background(), host))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 5)

	// Acquisition serializes on the host lock, so recorded times must be
	// at least delay apart once sorted.
	for i := 0; i < len(stamps); i++ {
		for j := i + 1; j < len(stamps); j++ {
			if stamps[j].Before(stamps[i]) {
				stamps[i], stamps[j] = stamps[j], stamps[i]
			}
		}
	}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, delay-5*time.Millisecond,
			"gap between request %d and %d was %v", i-1, i, gap)
	}
}

func TestWidenCallbackFires(t *testing.T) {
	var gotHost string
	var gotDelay time.Duration
	l := New(time.Second, time.Minute, time.Minute, WithWidenCallback(func(host string, d time.Duration) {
		gotHost = host
		gotDelay = d
	}))

	l.ReportRateLimited("https://example.com")
	assert.Equal(t, "https://example.com", gotHost)
	assert.Equal(t, 2*time.Second, gotDelay)
}
