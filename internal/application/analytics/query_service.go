package analytics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/minicrm/backend/internal/domain/analytics"
)

// QueryService is the single read entry point for metrics. It serves
// fresh cache entries and otherwise recomputes through the aggregator.
type QueryService struct {
	cache      analytics.MetricCache
	aggregator analytics.Aggregator
	group      singleflight.Group
	recorder   Recorder
	logger     *zap.Logger
}

// QueryServiceOption is a functional option for configuring the service
type QueryServiceOption func(*QueryService)

// WithQueryLogger sets the logger
func WithQueryLogger(logger *zap.Logger) QueryServiceOption {
	return func(s *QueryService) {
		s.logger = logger
	}
}

// WithQueryRecorder sets the metrics recorder
func WithQueryRecorder(recorder Recorder) QueryServiceOption {
	return func(s *QueryService) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// NewQueryService creates a query service
func NewQueryService(cache analytics.MetricCache, aggregator analytics.Aggregator, opts ...QueryServiceOption) *QueryService {
	s := &QueryService{
		cache:      cache,
		aggregator: aggregator,
		recorder:   NopRecorder{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query returns the metric for one subject. It fails with
// analytics.ErrInvalidMetricKey before touching the cache when the kind is
// undefined for the subject, and with analytics.ErrDataUnavailable when the
// value cannot be computed. A cached value is never returned in place of a
// failed recomputation.
func (s *QueryService) Query(ctx context.Context, kind analytics.MetricKind, subject analytics.SubjectType, id uuid.UUID) (analytics.MetricValue, error) {
	key := analytics.NewMetricKey(kind, subject, id)
	if err := key.Validate(); err != nil {
		return analytics.MetricValue{}, err
	}

	cached, token, ok := s.cache.Lookup(key)
	s.recorder.RecordLookup(ctx, string(kind), ok)
	if ok {
		return cached.Value, nil
	}

	// Callers sharing a token share one recomputation. A caller arriving
	// after an invalidation carries a newer token and computes afresh. The
	// computation outlives any single caller, so each caller waits on its
	// own context.
	flightKey := key.String() + "#" + strconv.FormatUint(token, 10)
	computeCtx := context.WithoutCancel(ctx)
	flight := s.group.DoChan(flightKey, func() (any, error) {
		started := time.Now()
		value, err := s.aggregator.Compute(computeCtx, key)
		s.recorder.RecordCompute(computeCtx, string(kind), time.Since(started), err)
		if err != nil {
			return nil, err
		}
		if !s.cache.Put(key, value, token) {
			s.logger.Debug("recomputed metric superseded by invalidation",
				zap.Stringer("key", key))
		}
		return value, nil
	})

	var result singleflight.Result
	select {
	case result = <-flight:
	case <-ctx.Done():
		result = singleflight.Result{Err: ctx.Err()}
	}
	if err := result.Err; err != nil {
		if !errors.Is(err, analytics.ErrDataUnavailable) && !errors.Is(err, analytics.ErrInvalidMetricKey) {
			err = analytics.DataUnavailable(err)
		}
		s.logger.Warn("metric unavailable",
			zap.Stringer("key", key),
			zap.Error(err),
		)
		return analytics.MetricValue{}, err
	}

	value := result.Val.(analytics.MetricValue)
	if result.Shared {
		value = value.Clone()
	}
	return value, nil
}

// SubjectMetrics holds every metric defined for one subject
type SubjectMetrics struct {
	SubjectType analytics.SubjectType                          `json:"subject_type"`
	SubjectID   uuid.UUID                                      `json:"subject_id"`
	Metrics     map[analytics.MetricKind]analytics.MetricValue `json:"metrics"`
}

// QueryAll returns every metric defined for the subject. It fails as soon
// as one metric fails.
func (s *QueryService) QueryAll(ctx context.Context, subject analytics.SubjectType, id uuid.UUID) (*SubjectMetrics, error) {
	kinds := analytics.KindsFor(subject)
	if len(kinds) == 0 {
		return nil, analytics.ErrInvalidMetricKey.WithMessage("unknown subject type " + strconv.Quote(string(subject)))
	}

	out := &SubjectMetrics{
		SubjectType: subject,
		SubjectID:   id,
		Metrics:     make(map[analytics.MetricKind]analytics.MetricValue, len(kinds)),
	}
	for _, kind := range kinds {
		value, err := s.Query(ctx, kind, subject, id)
		if err != nil {
			return nil, err
		}
		out.Metrics[kind] = value
	}
	return out, nil
}
