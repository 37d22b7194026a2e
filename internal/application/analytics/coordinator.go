package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/analytics"
	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

// Coordinator maps entity mutations to the metric keys they make stale.
//
// It never returns an error to the bus. Anything it cannot map precisely
// is handled by flushing the whole cache.
type Coordinator struct {
	target   analytics.Invalidator
	recorder Recorder
	logger   *zap.Logger
}

// CoordinatorOption is a functional option for configuring the coordinator
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the logger
func WithCoordinatorLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithCoordinatorRecorder sets the metrics recorder
func WithCoordinatorRecorder(recorder Recorder) CoordinatorOption {
	return func(c *Coordinator) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// NewCoordinator creates a coordinator that invalidates through target
func NewCoordinator(target analytics.Invalidator, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		target:   target,
		recorder: NopRecorder{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EventTypes returns the mutations that can change a metric
func (c *Coordinator) EventTypes() []string {
	return []string{"order.*", crm.EventTypeCampaignDeleted, crm.EventTypeCustomerDeleted}
}

// Handle implements shared.EventHandler
func (c *Coordinator) Handle(ctx context.Context, event shared.DomainEvent) error {
	mutation, ok := event.(*crm.MutationEvent)
	if !ok {
		c.failSafe(ctx, event.EventType(), fmt.Errorf("unexpected event payload %T", event))
		return nil
	}
	c.OnMutation(ctx, mutation)
	return nil
}

// OnMutation invalidates every key the mutation affects
func (c *Coordinator) OnMutation(ctx context.Context, event *crm.MutationEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.failSafe(ctx, event.EventType(), fmt.Errorf("panic: %v", r))
		}
	}()

	switch event.Entity {
	case crm.EntityOrder:
		keys, err := OrderKeys(event)
		if err != nil {
			c.failSafe(ctx, event.EventType(), err)
			return
		}
		for _, key := range keys {
			c.target.Invalidate(key)
		}
		c.recorder.RecordInvalidation(ctx, string(event.Entity), len(keys))
		c.logger.Debug("invalidated order metrics",
			zap.String("event_type", event.EventType()),
			zap.String("order_id", event.EntityID().String()),
			zap.Int("keys", len(keys)),
		)

	case crm.EntityCampaign, crm.EntityCustomer:
		if event.Change != crm.ChangeDeleted {
			return
		}
		subject := analytics.SubjectCampaign
		if event.Entity == crm.EntityCustomer {
			subject = analytics.SubjectCustomer
		}
		c.target.InvalidateSubject(subject, event.EntityID())
		c.recorder.RecordInvalidation(ctx, string(event.Entity), len(analytics.KindsFor(subject)))
		c.logger.Debug("invalidated subject metrics",
			zap.String("subject_type", string(subject)),
			zap.String("subject_id", event.EntityID().String()),
		)

	default:
		c.failSafe(ctx, event.EventType(), fmt.Errorf("unknown entity type %q", event.Entity))
	}
}

func (c *Coordinator) failSafe(ctx context.Context, eventType string, reason error) {
	c.logger.Warn("cannot map mutation to metric keys, flushing metric cache",
		zap.String("event_type", eventType),
		zap.Error(reason),
	)
	c.target.InvalidateAll()
	c.recorder.RecordInvalidation(ctx, "flush", 0)
}

// OrderKeys returns the keys an order mutation invalidates: the metrics of
// its customer and, when attributed, of its campaign, under both the
// current and the previous attribution.
func OrderKeys(event *crm.MutationEvent) ([]analytics.MetricKey, error) {
	if event.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("order event %s has no customer", event.EventID())
	}

	keys := make([]analytics.MetricKey, 0, 10)
	seen := make(map[analytics.MetricKey]struct{}, 10)
	add := func(key analytics.MetricKey) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	addCustomer := func(id uuid.UUID) {
		add(analytics.NewMetricKey(analytics.MetricLifetimeValue, analytics.SubjectCustomer, id))
		add(analytics.NewMetricKey(analytics.MetricOrderCount, analytics.SubjectCustomer, id))
	}
	addCampaign := func(id *uuid.UUID) {
		if id == nil || *id == uuid.Nil {
			return
		}
		add(analytics.NewMetricKey(analytics.MetricRevenue, analytics.SubjectCampaign, *id))
		add(analytics.NewMetricKey(analytics.MetricOrderCount, analytics.SubjectCampaign, *id))
		add(analytics.NewMetricKey(analytics.MetricConversionRate, analytics.SubjectCampaign, *id))
	}

	addCampaign(event.CampaignID)
	addCustomer(event.CustomerID)
	addCampaign(event.PreviousCampaignID)
	if event.PreviousCustomerID != nil && *event.PreviousCustomerID != uuid.Nil {
		addCustomer(*event.PreviousCustomerID)
	}
	return keys, nil
}

var _ shared.EventHandler = (*Coordinator)(nil)
