package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/analytics"
)

// InvalidatorSettings selects how invalidations leave the process
type InvalidatorSettings struct {
	RedisEnabled bool
	Redis        RedisConfig
	Channel      string
}

// InvalidationTarget is what the coordinator writes to, plus a way to stop
// any background subscription.
type InvalidationTarget struct {
	analytics.Invalidator
	close func() error
}

// Close stops background work
func (t InvalidationTarget) Close() error {
	if t.close == nil {
		return nil
	}
	return t.close()
}

// NewInvalidationTarget wires the local cache to Redis when enabled and
// reachable. Otherwise it falls back to local-only invalidation, which is
// correct for a single instance; multi-instance deployments then rely on
// the cache max age.
func NewInvalidationTarget(ctx context.Context, local *MetricCache, settings InvalidatorSettings, logger *zap.Logger) InvalidationTarget {
	if !settings.RedisEnabled {
		return InvalidationTarget{Invalidator: local}
	}

	b, err := NewRedisInvalidationBroadcaster(settings.Redis, local,
		WithChannel(settings.Channel),
		WithBroadcasterLogger(logger),
	)
	if err != nil {
		logger.Warn("Redis unavailable, metric invalidation stays local to this instance",
			zap.Error(err))
		return InvalidationTarget{Invalidator: local}
	}

	go func() {
		if err := b.Subscribe(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Metric invalidation subscription ended", zap.Error(err))
		}
	}()

	logger.Info("Metric invalidation broadcast enabled",
		zap.String("origin", b.Origin()),
		zap.Duration("publish_timeout", b.publishTimeout.Round(time.Millisecond)))
	return InvalidationTarget{Invalidator: b, close: b.Close}
}
