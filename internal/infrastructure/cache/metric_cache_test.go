package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minicrm/backend/internal/domain/analytics"
)

func revenueKey(id uuid.UUID) analytics.MetricKey {
	return analytics.NewMetricKey(analytics.MetricRevenue, analytics.SubjectCampaign, id)
}

func value(n int64) analytics.MetricValue {
	return analytics.MetricValue{Value: decimal.NewFromInt(n)}
}

func TestMetricCache_LookupPut(t *testing.T) {
	c := NewMetricCache()
	key := revenueKey(uuid.New())

	_, token, ok := c.Lookup(key)
	assert.False(t, ok)

	require.True(t, c.Put(key, value(150), token))

	got, _, ok := c.Lookup(key)
	require.True(t, ok)
	assert.True(t, got.Value.Value.Equal(decimal.NewFromInt(150)))
	assert.False(t, got.ComputedAt.IsZero())

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestMetricCache_LookupReturnsCopy(t *testing.T) {
	c := NewMetricCache()
	key := analytics.NewMetricKey(analytics.MetricOrderCount, analytics.SubjectCampaign, uuid.New())
	_, token, _ := c.Lookup(key)
	c.Put(key, analytics.MetricValue{Value: decimal.NewFromInt(3), Breakdown: &analytics.StatusBreakdown{Completed: 3}}, token)

	first, _, _ := c.Lookup(key)
	first.Value.Breakdown.Completed = 0

	second, _, _ := c.Lookup(key)
	assert.Equal(t, int64(3), second.Value.Breakdown.Completed)
}

func TestMetricCache_Invalidate(t *testing.T) {
	c := NewMetricCache()
	key := revenueKey(uuid.New())
	other := revenueKey(uuid.New())

	_, token, _ := c.Lookup(key)
	c.Put(key, value(1), token)
	c.Put(other, value(2), token)

	c.Invalidate(key)

	_, _, ok := c.Lookup(key)
	assert.False(t, ok)
	_, _, ok = c.Lookup(other)
	assert.True(t, ok, "unrelated key must survive")
}

func TestMetricCache_PutAfterInvalidationIsRejected(t *testing.T) {
	c := NewMetricCache()
	key := revenueKey(uuid.New())

	// A recomputation starts, then a write invalidates the key before the
	// result is stored.
	_, token, _ := c.Lookup(key)
	c.Invalidate(key)

	assert.False(t, c.Put(key, value(100), token))
	_, _, ok := c.Lookup(key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.GetStats().RejectedPuts)

	// A recomputation started after the invalidation is accepted.
	_, fresh, _ := c.Lookup(key)
	assert.True(t, c.Put(key, value(120), fresh))
}

func TestMetricCache_UnrelatedInvalidationDoesNotRejectPut(t *testing.T) {
	c := NewMetricCache()
	key := revenueKey(uuid.New())

	_, token, _ := c.Lookup(key)
	c.Invalidate(revenueKey(uuid.New()))

	assert.True(t, c.Put(key, value(5), token))
}

func TestMetricCache_InvalidateSubject(t *testing.T) {
	c := NewMetricCache()
	campaign := uuid.New()
	customer := uuid.New()

	_, token, _ := c.Lookup(revenueKey(campaign))
	for _, kind := range analytics.KindsFor(analytics.SubjectCampaign) {
		c.Put(analytics.NewMetricKey(kind, analytics.SubjectCampaign, campaign), value(1), token)
	}
	customerKey := analytics.NewMetricKey(analytics.MetricOrderCount, analytics.SubjectCustomer, customer)
	c.Put(customerKey, value(1), token)

	c.InvalidateSubject(analytics.SubjectCampaign, campaign)

	for _, kind := range analytics.KindsFor(analytics.SubjectCampaign) {
		_, _, ok := c.Lookup(analytics.NewMetricKey(kind, analytics.SubjectCampaign, campaign))
		assert.False(t, ok, kind)
	}
	_, _, ok := c.Lookup(customerKey)
	assert.True(t, ok)
}

func TestMetricCache_InvalidateAll(t *testing.T) {
	c := NewMetricCache()
	key := revenueKey(uuid.New())
	_, token, _ := c.Lookup(key)
	c.Put(key, value(1), token)

	_, inflight, _ := c.Lookup(revenueKey(uuid.New()))
	c.InvalidateAll()

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Put(revenueKey(uuid.New()), value(1), inflight))
}

func TestMetricCache_LRUEviction(t *testing.T) {
	c := NewMetricCache(WithCapacity(2))
	a, b, d := revenueKey(uuid.New()), revenueKey(uuid.New()), revenueKey(uuid.New())

	_, token, _ := c.Lookup(a)
	c.Put(a, value(1), token)
	c.Put(b, value(2), token)

	// Touch a so b becomes least recently used.
	_, _, ok := c.Lookup(a)
	require.True(t, ok)

	c.Put(d, value(3), token)

	assert.Equal(t, 2, c.Len())
	_, _, ok = c.Lookup(b)
	assert.False(t, ok)
	_, _, ok = c.Lookup(a)
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.GetStats().Evictions)
}

func TestMetricCache_EvictionNeverResurrectsInvalidatedValue(t *testing.T) {
	c := NewMetricCache(WithCapacity(1))
	key := revenueKey(uuid.New())

	_, token, _ := c.Lookup(key)
	c.Put(key, value(1), token)
	c.Invalidate(key)
	c.Put(revenueKey(uuid.New()), value(2), token)

	assert.False(t, c.Put(key, value(1), token))
	_, _, ok := c.Lookup(key)
	assert.False(t, ok)
}

func TestMetricCache_MaxAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMetricCache(WithMaxAge(time.Minute), WithClock(func() time.Time { return now }))
	key := revenueKey(uuid.New())

	_, token, _ := c.Lookup(key)
	c.Put(key, value(1), token)

	now = now.Add(30 * time.Second)
	_, _, ok := c.Lookup(key)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, _, ok = c.Lookup(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMetricCache_InvalidationLogCompaction(t *testing.T) {
	c := NewMetricCache(WithCapacity(1))
	key := revenueKey(uuid.New())
	_, token, _ := c.Lookup(key)

	for i := 0; i <= invalidationLogFactor; i++ {
		c.Invalidate(revenueKey(uuid.New()))
	}

	// The log was compacted, so older tokens are conservatively rejected.
	assert.False(t, c.Put(key, value(1), token))
	_, fresh, _ := c.Lookup(key)
	assert.True(t, c.Put(key, value(1), fresh))
}

func TestMetricCache_Concurrent(t *testing.T) {
	c := NewMetricCache(WithCapacity(16))
	keys := make([]analytics.MetricKey, 32)
	for i := range keys {
		keys[i] = revenueKey(uuid.New())
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := keys[(g+i)%len(keys)]
				if _, token, ok := c.Lookup(key); !ok {
					c.Put(key, value(int64(i)), token)
				}
				if i%7 == 0 {
					c.Invalidate(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}

func TestMetricCache_ResetStats(t *testing.T) {
	c := NewMetricCache()
	for i := 0; i < 3; i++ {
		c.Lookup(revenueKey(uuid.New()))
	}
	require.Equal(t, int64(3), c.GetStats().Misses)

	c.ResetStats()
	assert.Equal(t, int64(0), c.GetStats().Misses)
	assert.Equal(t, fmt.Sprint(0.0), fmt.Sprint(c.GetStats().HitRate))
}
