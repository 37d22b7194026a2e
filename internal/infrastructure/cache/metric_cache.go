package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/analytics"
)

const (
	// DefaultCapacity is used when no positive capacity is configured
	DefaultCapacity = 1024
	// invalidationLogFactor bounds the per-key invalidation log relative to capacity
	invalidationLogFactor = 4
)

// MetricCache is a bounded LRU of computed aggregates with freshness tokens.
//
// Every Lookup hands out the current sequence number as a token. Every
// invalidation advances the sequence and records it against the key. A Put
// is accepted only if no invalidation of its key (and no flush) happened
// after its token was issued, so a recomputation that raced with a write
// can never install a value that predates the write.
type MetricCache struct {
	mu       sync.Mutex
	capacity int
	maxAge   time.Duration
	entries  map[analytics.MetricKey]*list.Element
	lru      *list.List // front is most recently used

	seq           uint64
	floor         uint64 // tokens below floor are rejected
	invalidatedAt map[analytics.MetricKey]uint64

	now    func() time.Time
	logger *zap.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
	rejectedPuts  atomic.Int64
}

type lruEntry struct {
	key       analytics.MetricKey
	aggregate analytics.CachedAggregate
}

// MetricCacheOption is a functional option for configuring the cache
type MetricCacheOption func(*MetricCache)

// WithCapacity sets the maximum number of entries
func WithCapacity(capacity int) MetricCacheOption {
	return func(c *MetricCache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithMaxAge bounds how long an entry may be served. Zero disables the bound.
func WithMaxAge(maxAge time.Duration) MetricCacheOption {
	return func(c *MetricCache) {
		c.maxAge = maxAge
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) MetricCacheOption {
	return func(c *MetricCache) {
		c.now = now
	}
}

// WithLogger sets the logger for the cache
func WithLogger(logger *zap.Logger) MetricCacheOption {
	return func(c *MetricCache) {
		c.logger = logger
	}
}

// NewMetricCache creates an empty cache
func NewMetricCache(opts ...MetricCacheOption) *MetricCache {
	c := &MetricCache{
		capacity:      DefaultCapacity,
		entries:       make(map[analytics.MetricKey]*list.Element),
		lru:           list.New(),
		invalidatedAt: make(map[analytics.MetricKey]uint64),
		now:           time.Now,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the cached aggregate for key if present and fresh, and in
// every case the token a subsequent Put must carry.
func (c *MetricCache) Lookup(key analytics.MetricKey) (analytics.CachedAggregate, analytics.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.seq
	elem, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return analytics.CachedAggregate{}, token, false
	}

	entry := elem.Value.(*lruEntry)
	if c.maxAge > 0 && c.now().Sub(entry.aggregate.ComputedAt) > c.maxAge {
		c.removeElement(elem)
		c.misses.Add(1)
		c.logger.Debug("metric cache entry expired", zap.Stringer("key", key))
		return analytics.CachedAggregate{}, token, false
	}

	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	out := entry.aggregate
	out.Value = out.Value.Clone()
	return out, token, true
}

// Put stores value under key unless key was invalidated after token was
// issued. It reports whether the value was stored.
func (c *MetricCache) Put(key analytics.MetricKey, value analytics.MetricValue, token analytics.Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token < c.floor || c.invalidatedAt[key] > token {
		c.rejectedPuts.Add(1)
		c.logger.Debug("metric cache put rejected as stale",
			zap.Stringer("key", key),
			zap.Uint64("token", token),
		)
		return false
	}

	aggregate := analytics.CachedAggregate{
		Value:      value.Clone(),
		ComputedAt: c.now(),
		Token:      token,
	}
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*lruEntry).aggregate = aggregate
		c.lru.MoveToFront(elem)
		return true
	}

	c.entries[key] = c.lru.PushFront(&lruEntry{key: key, aggregate: aggregate})
	for c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.removeElement(oldest)
		c.evictions.Add(1)
	}
	return true
}

// Invalidate drops key and rejects any in-flight Put for it
func (c *MetricCache) Invalidate(key analytics.MetricKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(key)
}

// InvalidateSubject invalidates every metric kind defined for the subject
func (c *MetricCache) InvalidateSubject(subject analytics.SubjectType, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, kind := range analytics.KindsFor(subject) {
		c.invalidateLocked(analytics.NewMetricKey(kind, subject, id))
	}
}

// InvalidateAll drops every entry and rejects every in-flight Put
func (c *MetricCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.floor = c.seq
	c.entries = make(map[analytics.MetricKey]*list.Element)
	c.lru.Init()
	c.invalidatedAt = make(map[analytics.MetricKey]uint64)
	c.invalidations.Add(1)
	c.logger.Debug("metric cache flushed")
}

func (c *MetricCache) invalidateLocked(key analytics.MetricKey) {
	c.seq++
	c.invalidatedAt[key] = c.seq
	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
	c.invalidations.Add(1)

	// Compact the log by raising the floor. Every outstanding token is
	// then rejected, which only costs a recomputation.
	if len(c.invalidatedAt) > c.capacity*invalidationLogFactor {
		c.floor = c.seq
		c.invalidatedAt = make(map[analytics.MetricKey]uint64)
	}
}

func (c *MetricCache) removeElement(elem *list.Element) {
	entry := c.lru.Remove(elem).(*lruEntry)
	delete(c.entries, entry.key)
}

// Len returns the number of cached entries
func (c *MetricCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats is a point-in-time snapshot of cache counters
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`
	RejectedPuts  int64   `json:"rejected_puts"`
	Entries       int     `json:"entries"`
	Capacity      int     `json:"capacity"`
}

// GetStats returns cache statistics
func (c *MetricCache) GetStats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:          hits,
		Misses:        misses,
		HitRate:       hitRate,
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
		RejectedPuts:  c.rejectedPuts.Load(),
		Entries:       c.Len(),
		Capacity:      c.capacity,
	}
}

// ResetStats zeroes the counters
func (c *MetricCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.invalidations.Store(0)
	c.rejectedPuts.Store(0)
}

var _ analytics.MetricCache = (*MetricCache)(nil)
