package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zaptest"

	"github.com/minicrm/backend/internal/infrastructure/telemetry"
)

func disabledMeterProvider(t *testing.T) *telemetry.MeterProvider {
	t.Helper()
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return mp
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp := disabledMeterProvider(t)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, "test-service", mp.GetConfig().ServiceName)
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping collector test in short mode")
	}

	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Second,
		ServiceName:       "test-service",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())

	counter, err := telemetry.NewCounter(mp.Meter("test"), "test_counter", "Test", "1")
	require.NoError(t, err)
	counter.Inc(ctx)

	_ = mp.ForceFlush(ctx)
	_ = mp.Shutdown(ctx)
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	meter := disabledMeterProvider(t).Meter("test")

	counter, err := telemetry.NewCounter(meter, "request_count", "Request count", "{request}")
	require.NoError(t, err)
	require.NotNil(t, counter)

	counter.Add(ctx, 5, attribute.String("method", "GET"))
	counter.Inc(ctx)
	counter.Inc(ctx, telemetry.AttrOutcome.String("error"))
}

func TestHistogram(t *testing.T) {
	ctx := context.Background()
	meter := disabledMeterProvider(t).Meter("test")

	tests := []struct {
		name       string
		boundaries []float64
	}{
		{"http", telemetry.HTTPDurationBuckets},
		{"compute", telemetry.ComputeDurationBuckets},
		{"default", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
				Name:        tt.name + "_duration_seconds",
				Description: "Duration",
				Unit:        "s",
				Boundaries:  tt.boundaries,
			})
			require.NoError(t, err)

			h.Record(ctx, 0.05, telemetry.AttrHTTPMethod.String("GET"))
			h.RecordDuration(ctx, 150*time.Millisecond, telemetry.AttrMetricKind.String("revenue"))
		})
	}
}

func TestCommonAttributes(t *testing.T) {
	assert.Equal(t, "http.method", string(telemetry.AttrHTTPMethod))
	assert.Equal(t, "http.status_code", string(telemetry.AttrHTTPStatusCode))
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "metric.kind", string(telemetry.AttrMetricKind))
	assert.Equal(t, "cache.hit", string(telemetry.AttrCacheHit))
}

func TestDefaultBuckets(t *testing.T) {
	assert.Equal(t, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, telemetry.HTTPDurationBuckets)
	assert.IsIncreasing(t, telemetry.ComputeDurationBuckets)
}
