package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// CacheSizeFunc reports the current number of cached entries and the capacity
type CacheSizeFunc func() (entries, capacity int64)

// AnalyticsMetrics records cache and aggregation activity of the
// analytics core.
type AnalyticsMetrics struct {
	logger *zap.Logger

	lookupTotal       *Counter
	computeTotal      *Counter
	computeDuration   *Histogram
	invalidationTotal *Counter
	invalidatedKeys   *Counter
	cacheEntries      metric.Int64ObservableGauge
	registration      metric.Registration
}

// AnalyticsMetricsConfig holds configuration for analytics metrics.
type AnalyticsMetricsConfig struct {
	Meter     metric.Meter
	Logger    *zap.Logger
	CacheSize CacheSizeFunc
}

// NewAnalyticsMetrics creates the analytics instruments on cfg.Meter.
func NewAnalyticsMetrics(cfg AnalyticsMetricsConfig) (*AnalyticsMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	am := &AnalyticsMetrics{logger: logger}

	var err error
	am.lookupTotal, err = NewCounter(cfg.Meter,
		"crm_metric_cache_lookups_total",
		"Metric cache lookups by kind and hit",
		"{lookups}",
	)
	if err != nil {
		return nil, err
	}

	am.computeTotal, err = NewCounter(cfg.Meter,
		"crm_metric_computations_total",
		"Metric recomputations by kind and outcome",
		"{computations}",
	)
	if err != nil {
		return nil, err
	}

	am.computeDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "crm_metric_compute_duration_seconds",
		Description: "Time spent recomputing a metric from the entity store",
		Unit:        "s",
		Boundaries:  ComputeDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	am.invalidationTotal, err = NewCounter(cfg.Meter,
		"crm_metric_invalidations_total",
		"Mutations processed by the invalidation coordinator, by source",
		"{invalidations}",
	)
	if err != nil {
		return nil, err
	}

	am.invalidatedKeys, err = NewCounter(cfg.Meter,
		"crm_metric_invalidated_keys_total",
		"Metric keys invalidated",
		"{keys}",
	)
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize != nil {
		am.cacheEntries, err = cfg.Meter.Int64ObservableGauge(
			"crm_metric_cache_entries",
			metric.WithDescription("Entries currently held by the metric cache"),
			metric.WithUnit("{entries}"),
		)
		if err != nil {
			return nil, err
		}
		am.registration, err = cfg.Meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			entries, capacity := cfg.CacheSize()
			o.ObserveInt64(am.cacheEntries, entries, metric.WithAttributes(attribute.Int64("capacity", capacity)))
			return nil
		}, am.cacheEntries)
		if err != nil {
			return nil, err
		}
	}

	return am, nil
}

// RecordLookup counts one cache lookup
func (am *AnalyticsMetrics) RecordLookup(ctx context.Context, kind string, hit bool) {
	am.lookupTotal.Inc(ctx, AttrMetricKind.String(kind), AttrCacheHit.Bool(hit))
}

// RecordCompute counts one recomputation and its latency
func (am *AnalyticsMetrics) RecordCompute(ctx context.Context, kind string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := []attribute.KeyValue{AttrMetricKind.String(kind), AttrOutcome.String(outcome)}
	am.computeTotal.Inc(ctx, attrs...)
	am.computeDuration.RecordDuration(ctx, duration, attrs...)
}

// RecordInvalidation counts one processed mutation and the keys it touched
func (am *AnalyticsMetrics) RecordInvalidation(ctx context.Context, source string, keys int) {
	am.invalidationTotal.Inc(ctx, AttrSource.String(source))
	if keys > 0 {
		am.invalidatedKeys.Add(ctx, int64(keys), AttrSource.String(source))
	}
}

// Stop unregisters the cache size callback
func (am *AnalyticsMetrics) Stop() {
	if am.registration == nil {
		return
	}
	if err := am.registration.Unregister(); err != nil {
		am.logger.Warn("Failed to unregister metric callback", zap.Error(err))
	}
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewAnalyticsMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
