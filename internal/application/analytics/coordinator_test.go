package analytics

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minicrm/backend/internal/domain/analytics"
	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

// recordingInvalidator captures invalidation calls
type recordingInvalidator struct {
	keys     []analytics.MetricKey
	subjects []analytics.MetricKey
	flushes  int
}

func (r *recordingInvalidator) Invalidate(key analytics.MetricKey) {
	r.keys = append(r.keys, key)
}

func (r *recordingInvalidator) InvalidateSubject(subject analytics.SubjectType, id uuid.UUID) {
	r.subjects = append(r.subjects, analytics.MetricKey{SubjectType: subject, SubjectID: id})
}

func (r *recordingInvalidator) InvalidateAll() {
	r.flushes++
}

func orderEvent(change crm.ChangeKind, customerID uuid.UUID, campaignID *uuid.UUID) *crm.MutationEvent {
	o := &crm.Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		CampaignID:        campaignID,
	}
	return crm.NewOrderMutation(o, change)
}

func TestCoordinator_OrderMutations(t *testing.T) {
	customer := uuid.New()
	campaign := uuid.New()

	expectedAttributed := []analytics.MetricKey{
		analytics.NewMetricKey(analytics.MetricRevenue, analytics.SubjectCampaign, campaign),
		analytics.NewMetricKey(analytics.MetricOrderCount, analytics.SubjectCampaign, campaign),
		analytics.NewMetricKey(analytics.MetricConversionRate, analytics.SubjectCampaign, campaign),
		analytics.NewMetricKey(analytics.MetricLifetimeValue, analytics.SubjectCustomer, customer),
		analytics.NewMetricKey(analytics.MetricOrderCount, analytics.SubjectCustomer, customer),
	}

	for _, change := range []crm.ChangeKind{crm.ChangeCreated, crm.ChangeUpdated, crm.ChangeDeleted, crm.ChangeStatusChanged} {
		t.Run(string(change)+" attributed", func(t *testing.T) {
			target := &recordingInvalidator{}
			NewCoordinator(target).OnMutation(context.Background(), orderEvent(change, customer, &campaign))

			assert.ElementsMatch(t, expectedAttributed, target.keys)
			assert.Zero(t, target.flushes)
		})
	}

	t.Run("unattributed touches only the customer", func(t *testing.T) {
		target := &recordingInvalidator{}
		NewCoordinator(target).OnMutation(context.Background(), orderEvent(crm.ChangeCreated, customer, nil))

		assert.ElementsMatch(t, []analytics.MetricKey{
			analytics.NewMetricKey(analytics.MetricLifetimeValue, analytics.SubjectCustomer, customer),
			analytics.NewMetricKey(analytics.MetricOrderCount, analytics.SubjectCustomer, customer),
		}, target.keys)
	})
}

func TestOrderKeys_PreviousAttribution(t *testing.T) {
	customer, prevCustomer := uuid.New(), uuid.New()
	campaign, prevCampaign := uuid.New(), uuid.New()

	event := orderEvent(crm.ChangeUpdated, customer, &campaign)
	event.PreviousCampaignID = &prevCampaign
	event.PreviousCustomerID = &prevCustomer

	keys, err := OrderKeys(event)
	require.NoError(t, err)

	assert.Len(t, keys, 10)
	assert.Contains(t, keys, analytics.NewMetricKey(analytics.MetricRevenue, analytics.SubjectCampaign, prevCampaign))
	assert.Contains(t, keys, analytics.NewMetricKey(analytics.MetricLifetimeValue, analytics.SubjectCustomer, prevCustomer))
}

func TestOrderKeys_Deduplicates(t *testing.T) {
	customer, campaign := uuid.New(), uuid.New()
	event := orderEvent(crm.ChangeUpdated, customer, &campaign)
	same := campaign
	event.PreviousCampaignID = &same

	keys, err := OrderKeys(event)
	require.NoError(t, err)
	assert.Len(t, keys, 5)
}

func TestCoordinator_SubjectDeletion(t *testing.T) {
	id := uuid.New()

	t.Run("campaign deleted", func(t *testing.T) {
		target := &recordingInvalidator{}
		NewCoordinator(target).OnMutation(context.Background(), crm.NewCampaignMutation(id, crm.ChangeDeleted))

		require.Len(t, target.subjects, 1)
		assert.Equal(t, analytics.SubjectCampaign, target.subjects[0].SubjectType)
		assert.Equal(t, id, target.subjects[0].SubjectID)
	})

	t.Run("customer deleted", func(t *testing.T) {
		target := &recordingInvalidator{}
		NewCoordinator(target).OnMutation(context.Background(), crm.NewCustomerMutation(id, crm.ChangeDeleted))

		require.Len(t, target.subjects, 1)
		assert.Equal(t, analytics.SubjectCustomer, target.subjects[0].SubjectType)
	})

	t.Run("campaign update invalidates nothing", func(t *testing.T) {
		target := &recordingInvalidator{}
		NewCoordinator(target).OnMutation(context.Background(), crm.NewCampaignMutation(id, crm.ChangeUpdated))

		assert.Empty(t, target.keys)
		assert.Empty(t, target.subjects)
		assert.Zero(t, target.flushes)
	})
}

type foreignEvent struct {
	shared.BaseDomainEvent
}

func TestCoordinator_FailSafe(t *testing.T) {
	t.Run("unknown payload flushes", func(t *testing.T) {
		target := &recordingInvalidator{}
		err := NewCoordinator(target).Handle(context.Background(), &foreignEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent("order.created", "order", uuid.New()),
		})

		require.NoError(t, err)
		assert.Equal(t, 1, target.flushes)
	})

	t.Run("order without customer flushes", func(t *testing.T) {
		target := &recordingInvalidator{}
		NewCoordinator(target).OnMutation(context.Background(), orderEvent(crm.ChangeCreated, uuid.Nil, nil))

		assert.Empty(t, target.keys)
		assert.Equal(t, 1, target.flushes)
	})

	t.Run("unknown entity flushes", func(t *testing.T) {
		target := &recordingInvalidator{}
		event := crm.NewCustomerMutation(uuid.New(), crm.ChangeUpdated)
		event.Entity = "invoice"
		NewCoordinator(target).OnMutation(context.Background(), event)

		assert.Equal(t, 1, target.flushes)
	})

	t.Run("panicking target flushes", func(t *testing.T) {
		target := &panickyInvalidator{}
		NewCoordinator(target).OnMutation(context.Background(), orderEvent(crm.ChangeCreated, uuid.New(), nil))

		assert.Equal(t, 1, target.flushes)
	})
}

type panickyInvalidator struct {
	recordingInvalidator
}

func (p *panickyInvalidator) Invalidate(analytics.MetricKey) {
	panic("bookkeeping failed")
}

func TestCoordinator_EventTypes(t *testing.T) {
	types := NewCoordinator(&recordingInvalidator{}).EventTypes()
	assert.Contains(t, types, "order.*")
	assert.Contains(t, types, crm.EventTypeCampaignDeleted)
	assert.Contains(t, types, crm.EventTypeCustomerDeleted)
}
