package httpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/common"
)

func TestShouldRetry(t *testing.T) {
	p := NewRetryPolicy()

	assert.True(t, p.ShouldRetry(0, 429, nil))
	assert.True(t, p.ShouldRetry(0, 503, nil))
	assert.True(t, p.ShouldRetry(1, 408, nil))
	assert.False(t, p.ShouldRetry(0, 404, nil))
	assert.False(t, p.ShouldRetry(0, 403, nil))
	assert.False(t, p.ShouldRetry(p.MaxAttempts, 503, nil))
	assert.True(t, p.ShouldRetry(0, 0, context.DeadlineExceeded))
	assert.False(t, p.ShouldRetry(0, 0, context.Canceled))
}

func TestCalculateBackoff(t *testing.T) {
	p := NewRetryPolicy()

	for attempt := 0; attempt < 5; attempt++ {
		b := p.CalculateBackoff(attempt)
		assert.Greater(t, b, time.Duration(0))
		// Jitter is bounded at +25% over the capped base
		assert.LessOrEqual(t, b, p.MaxBackoff+p.MaxBackoff/4)
	}
}

func TestExecuteWithRetrySucceedsAfterTransient(t *testing.T) {
	p := NewRetryPolicy()
	p.InitialBackoff = time.Millisecond
	logger := common.GetLogger()

	calls := 0
	status, err := p.ExecuteWithRetry(context.Background(), logger, func() (int, error) {
		calls++
		if calls < 3 {
			return 503, nil
		}
		return 200, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetryExhausts(t *testing.T) {
	p := NewRetryPolicy()
	p.InitialBackoff = time.Millisecond
	p.MaxAttempts = 2
	logger := common.GetLogger()

	transient := errors.New("connection reset")
	calls := 0
	_, err := p.ExecuteWithRetry(context.Background(), logger, func() (int, error) {
		calls++
		return 0, transient
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecuteWithRetryHonorsContext(t *testing.T) {
	p := NewRetryPolicy()
	p.InitialBackoff = time.Second
	logger := common.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := p.ExecuteWithRetry(ctx, logger, func() (int, error) {
		return 503, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestUserAgentRotation(t *testing.T) {
	c := New(Options{UserAgents: []string{"ua-1", "ua-2", "ua-3"}})

	assert.Equal(t, "ua-1", c.NextUserAgent())
	assert.Equal(t, "ua-2", c.NextUserAgent())
	assert.Equal(t, "ua-3", c.NextUserAgent())
	assert.Equal(t, "ua-1", c.NextUserAgent())
}
