// Package crm holds the write-side services for customers, campaigns and
// orders, plus the read-only reports built over them.
package crm

import (
	"context"

	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/shared"
)

type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// Option configures a CRM service
type Option func(*serviceBase)

// WithEventPublisher sets the publisher that receives mutation events
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(b *serviceBase) {
		b.publisher = publisher
	}
}

// Flusher drops every cached result derived from CRM data
type Flusher interface {
	InvalidateAll()
}

// WithPublishFailureFlush sets the flusher called when events could not be
// delivered, so that no subscriber keeps serving results the lost events
// would have invalidated.
func WithPublishFailureFlush(flusher Flusher) Option {
	return func(b *serviceBase) {
		b.flusher = flusher
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *serviceBase) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type serviceBase struct {
	publisher shared.EventPublisher
	flusher   Flusher
	logger    *zap.Logger
}

func newServiceBase(opts []Option) serviceBase {
	b := serviceBase{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// publishDomainEvents publishes the pending events of each source after
// the write has been committed, then clears them
func (b *serviceBase) publishDomainEvents(ctx context.Context, sources ...eventSource) {
	var events []shared.DomainEvent
	for _, src := range sources {
		events = append(events, src.GetDomainEvents()...)
		src.ClearDomainEvents()
	}
	if b.publisher == nil || len(events) == 0 {
		return
	}
	if err := b.publisher.Publish(ctx, events...); err != nil {
		b.logger.Error("Failed to publish domain events",
			zap.Int("event_count", len(events)),
			zap.Bool("flushing", b.flusher != nil),
			zap.Error(err),
		)
		if b.flusher != nil {
			b.flusher.InvalidateAll()
		}
	}
}
