// Package analytics computes CRM metrics, keeps them cached and
// invalidates them as orders, campaigns and customers change.
package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minicrm/backend/internal/domain/analytics"
	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/infrastructure/telemetry"
)

// ConversionRatePlaces is the number of decimal places kept in conversion rates
const ConversionRatePlaces = 4

// Engine computes metrics by scanning the matching orders in the entity
// store. It holds no state between calls.
type Engine struct {
	store analytics.EntityReader
}

// NewEngine creates an engine over store
func NewEngine(store analytics.EntityReader) *Engine {
	return &Engine{store: store}
}

// Compute returns the current value of the metric. Every failure, a
// missing subject included, is reported as analytics.ErrDataUnavailable.
func (e *Engine) Compute(ctx context.Context, key analytics.MetricKey) (analytics.MetricValue, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "analytics_engine", "compute",
		telemetry.WithAttribute(telemetry.SpanAttrMetricKind, string(key.Kind)),
		telemetry.WithAttribute(telemetry.SpanAttrSubjectType, string(key.SubjectType)),
		telemetry.WithAttribute(telemetry.SpanAttrSubjectID, key.SubjectID.String()),
	)
	defer span.End()

	value, err := e.compute(ctx, key)
	if err != nil {
		telemetry.RecordError(span, err)
		return analytics.MetricValue{}, err
	}
	return value, nil
}

func (e *Engine) compute(ctx context.Context, key analytics.MetricKey) (analytics.MetricValue, error) {
	if err := key.Validate(); err != nil {
		return analytics.MetricValue{}, err
	}
	if err := e.ensureSubject(ctx, key.SubjectType, key.SubjectID); err != nil {
		return analytics.MetricValue{}, err
	}

	filter := subjectFilter(key.SubjectType, key.SubjectID)
	switch key.Kind {
	case analytics.MetricRevenue, analytics.MetricLifetimeValue:
		completed := crm.OrderStatusCompleted
		filter.Status = &completed
		total, err := e.sumAmounts(ctx, filter)
		if err != nil {
			return analytics.MetricValue{}, err
		}
		return analytics.MetricValue{Value: total}, nil

	case analytics.MetricOrderCount:
		breakdown, err := e.countByStatus(ctx, filter)
		if err != nil {
			return analytics.MetricValue{}, err
		}
		return analytics.MetricValue{
			Value:     decimal.NewFromInt(breakdown.Total()),
			Breakdown: &breakdown,
		}, nil

	case analytics.MetricConversionRate:
		breakdown, err := e.countByStatus(ctx, filter)
		if err != nil {
			return analytics.MetricValue{}, err
		}
		return analytics.MetricValue{Value: ConversionRate(breakdown)}, nil
	}

	return analytics.MetricValue{}, analytics.ErrInvalidMetricKey.WithMessage(fmt.Sprintf("metric %q has no aggregation", key.Kind))
}

// ConversionRate is completed over total. It is zero when there are no orders.
func ConversionRate(b analytics.StatusBreakdown) decimal.Decimal {
	total := b.Total()
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(b.Completed).
		DivRound(decimal.NewFromInt(total), ConversionRatePlaces)
}

func (e *Engine) ensureSubject(ctx context.Context, subject analytics.SubjectType, id uuid.UUID) error {
	var err error
	switch subject {
	case analytics.SubjectCampaign:
		_, err = e.store.GetCampaign(ctx, id)
	case analytics.SubjectCustomer:
		_, err = e.store.GetCustomer(ctx, id)
	}
	if err != nil {
		return analytics.DataUnavailable(err)
	}
	return nil
}

func (e *Engine) sumAmounts(ctx context.Context, filter crm.OrderFilter) (decimal.Decimal, error) {
	total := decimal.Zero
	for order, err := range e.store.FindOrders(ctx, filter) {
		if err != nil {
			return decimal.Zero, analytics.DataUnavailable(err)
		}
		total = total.Add(order.Amount)
	}
	return total, nil
}

func (e *Engine) countByStatus(ctx context.Context, filter crm.OrderFilter) (analytics.StatusBreakdown, error) {
	var b analytics.StatusBreakdown
	for order, err := range e.store.FindOrders(ctx, filter) {
		if err != nil {
			return analytics.StatusBreakdown{}, analytics.DataUnavailable(err)
		}
		switch order.Status {
		case crm.OrderStatusPending:
			b.Pending++
		case crm.OrderStatusCompleted:
			b.Completed++
		case crm.OrderStatusCancelled:
			b.Cancelled++
		}
	}
	return b, nil
}

func subjectFilter(subject analytics.SubjectType, id uuid.UUID) crm.OrderFilter {
	subjectID := id
	if subject == analytics.SubjectCampaign {
		return crm.OrderFilter{CampaignID: &subjectID}
	}
	return crm.OrderFilter{CustomerID: &subjectID}
}

var _ analytics.Aggregator = (*Engine)(nil)
