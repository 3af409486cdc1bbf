package events

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
)

func TestPublishSyncInvokesAllHandlers(t *testing.T) {
	s := NewService(common.GetLogger())
	defer s.Close()

	var calls atomic.Int32
	handler := func(ctx context.Context, e interfaces.Event) error {
		calls.Add(1)
		return nil
	}

	require.NoError(t, s.Subscribe(interfaces.EventTaskCompleted, handler))
	require.NoError(t, s.Subscribe(interfaces.EventTaskCompleted, handler))

	require.NoError(t, s.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventTaskCompleted}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestPublishIgnoresUnsubscribedTypes(t *testing.T) {
	s := NewService(common.GetLogger())
	defer s.Close()

	require.NoError(t, s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventAlertRaised}))
}

func TestPublishAsyncCompletesBeforeClose(t *testing.T) {
	s := NewService(common.GetLogger())

	var calls atomic.Int32
	require.NoError(t, s.Subscribe(interfaces.EventTaskStarted, func(ctx context.Context, e interfaces.Event) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventTaskStarted}))
	require.NoError(t, s.Close())

	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscribeNilHandler(t *testing.T) {
	s := NewService(common.GetLogger())
	defer s.Close()

	assert.Error(t, s.Subscribe(interfaces.EventTaskStarted, nil))
}

func TestClosedServiceRejectsEvents(t *testing.T) {
	s := NewService(common.GetLogger())
	require.NoError(t, s.Close())

	assert.Error(t, s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventTaskStarted}))
	assert.Error(t, s.Subscribe(interfaces.EventTaskStarted, func(ctx context.Context, e interfaces.Event) error { return nil }))
}
