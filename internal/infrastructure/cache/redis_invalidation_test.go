package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/analytics"
)

// unreachableClient fails every command quickly without a server
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func encode(t *testing.T, msg InvalidationMessage) string {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(data)
}

func TestBroadcaster_LocalInvalidationSurvivesPublishFailure(t *testing.T) {
	local := NewMetricCache()
	b := NewRedisInvalidationBroadcasterWithClient(unreachableClient(t), local,
		WithPublishTimeout(100*time.Millisecond),
		WithBroadcasterLogger(zap.NewNop()),
	)
	key := revenueKey(uuid.New())
	_, token, _ := local.Lookup(key)
	local.Put(key, value(1), token)

	b.Invalidate(key)

	_, _, ok := local.Lookup(key)
	assert.False(t, ok)
}

func TestBroadcaster_HandlePayload(t *testing.T) {
	campaign := uuid.New()
	key := revenueKey(campaign)
	other := revenueKey(uuid.New())

	setup := func(t *testing.T) (*MetricCache, *RedisInvalidationBroadcaster) {
		local := NewMetricCache()
		_, token, _ := local.Lookup(key)
		local.Put(key, value(1), token)
		local.Put(other, value(2), token)
		b := NewRedisInvalidationBroadcasterWithClient(unreachableClient(t), local, WithOrigin("self"))
		return local, b
	}

	t.Run("peer key invalidation", func(t *testing.T) {
		local, b := setup(t)
		b.HandlePayload(encode(t, InvalidationMessage{Origin: "peer", Action: ActionKey, Key: &key}))

		_, _, ok := local.Lookup(key)
		assert.False(t, ok)
		_, _, ok = local.Lookup(other)
		assert.True(t, ok)
	})

	t.Run("peer subject invalidation", func(t *testing.T) {
		local, b := setup(t)
		b.HandlePayload(encode(t, InvalidationMessage{
			Origin: "peer", Action: ActionSubject,
			SubjectType: analytics.SubjectCampaign, SubjectID: campaign,
		}))

		_, _, ok := local.Lookup(key)
		assert.False(t, ok)
		assert.Equal(t, 1, local.Len())
	})

	t.Run("own messages are ignored", func(t *testing.T) {
		local, b := setup(t)
		b.HandlePayload(encode(t, InvalidationMessage{Origin: "self", Action: ActionAll}))
		assert.Equal(t, 2, local.Len())
	})

	t.Run("garbage flushes", func(t *testing.T) {
		local, b := setup(t)
		b.HandlePayload("{not json")
		assert.Equal(t, 0, local.Len())
	})

	t.Run("key action without key flushes", func(t *testing.T) {
		local, b := setup(t)
		b.HandlePayload(encode(t, InvalidationMessage{Origin: "peer", Action: ActionKey}))
		assert.Equal(t, 0, local.Len())
	})
}

func TestNewInvalidationTarget_FallsBackToLocal(t *testing.T) {
	local := NewMetricCache()

	target := NewInvalidationTarget(context.Background(), local, InvalidatorSettings{
		RedisEnabled: true,
		Redis:        RedisConfig{Host: "127.0.0.1", Port: 1},
	}, zap.NewNop())
	defer target.Close()

	_, isLocal := target.Invalidator.(*MetricCache)
	assert.True(t, isLocal)

	disabled := NewInvalidationTarget(context.Background(), local, InvalidatorSettings{}, zap.NewNop())
	assert.Same(t, local, disabled.Invalidator)
	assert.NoError(t, disabled.Close())
}

type countingInvalidator struct {
	flushes atomic.Int32
}

func (c *countingInvalidator) Invalidate(analytics.MetricKey)                    {}
func (c *countingInvalidator) InvalidateSubject(analytics.SubjectType, uuid.UUID) {}
func (c *countingInvalidator) InvalidateAll()                                    { c.flushes.Add(1) }

func TestBroadcaster_SubscribeRetriesAndFlushesOnFailure(t *testing.T) {
	local := &countingInvalidator{}
	b := NewRedisInvalidationBroadcasterWithClient(unreachableClient(t), local,
		WithResubscribeBackoff(5*time.Millisecond, 20*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Subscribe(ctx) }()

	// Every failed attempt flushes, so several flushes prove the retry loop.
	assert.Eventually(t, func() bool { return local.flushes.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

func TestBroadcaster_CloseStopsRetryLoop(t *testing.T) {
	local := &countingInvalidator{}
	b := NewRedisInvalidationBroadcasterWithClient(unreachableClient(t), local,
		WithResubscribeBackoff(time.Hour, time.Hour),
	)

	done := make(chan error, 1)
	go func() { done <- b.Subscribe(context.Background()) }()
	require.Eventually(t, func() bool { return local.flushes.Load() >= 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, b.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the backoff wait")
	}
}

func TestWithResubscribeBackoff(t *testing.T) {
	b := NewRedisInvalidationBroadcasterWithClient(unreachableClient(t), NewMetricCache())
	assert.Equal(t, defaultRetryMin, b.retryMin)
	assert.Equal(t, defaultRetryMax, b.retryMax)

	b = NewRedisInvalidationBroadcasterWithClient(unreachableClient(t), NewMetricCache(),
		WithResubscribeBackoff(time.Minute, 0))
	assert.Equal(t, time.Minute, b.retryMin)
	assert.Equal(t, time.Minute, b.retryMax)
}
