package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalTrigger submits a job of a fixed kind every interval, starting
// with one run right after Start.
type IntervalTrigger struct {
	interval  time.Duration
	kind      JobKind
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a trigger. A non-positive interval is invalid.
func NewIntervalTrigger(interval time.Duration, kind JobKind, scheduler *Scheduler, logger *zap.Logger) (*IntervalTrigger, error) {
	if interval <= 0 {
		return nil, errors.New("trigger interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		interval:  interval,
		kind:      kind,
		scheduler: scheduler,
		logger:    logger.Named("trigger"),
	}, nil
}

// Start begins the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Interval trigger started",
		zap.String("kind", string(t.kind)),
		zap.Duration("interval", t.interval),
	)
	return nil
}

// Stop ends the trigger loop. Jobs already submitted keep running.
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Interval trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	t.fire()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire()
		}
	}
}

// fire submits one job. A full queue means the previous runs have not
// finished yet, so the tick is skipped.
func (t *IntervalTrigger) fire() {
	if _, err := t.scheduler.Schedule(t.kind); err != nil {
		t.logger.Warn("Skipped scheduled job",
			zap.String("kind", string(t.kind)),
			zap.Error(err),
		)
	}
}
