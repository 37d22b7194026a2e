package analytics

import (
	"context"
	"time"
)

// Recorder receives operational measurements from the analytics core
type Recorder interface {
	RecordLookup(ctx context.Context, kind string, hit bool)
	RecordCompute(ctx context.Context, kind string, duration time.Duration, err error)
	RecordInvalidation(ctx context.Context, source string, keys int)
}

// NopRecorder discards all measurements
type NopRecorder struct{}

func (NopRecorder) RecordLookup(context.Context, string, bool)                  {}
func (NopRecorder) RecordCompute(context.Context, string, time.Duration, error) {}
func (NopRecorder) RecordInvalidation(context.Context, string, int)             {}
