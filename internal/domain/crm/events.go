package crm

import (
	"github.com/google/uuid"

	"github.com/minicrm/backend/internal/domain/shared"
)

// EntityType names the kind of record a mutation touched
type EntityType string

const (
	EntityCustomer EntityType = "customer"
	EntityCampaign EntityType = "campaign"
	EntityOrder    EntityType = "order"
)

// ChangeKind describes what happened to the record
type ChangeKind string

const (
	ChangeCreated       ChangeKind = "created"
	ChangeUpdated       ChangeKind = "updated"
	ChangeDeleted       ChangeKind = "deleted"
	ChangeStatusChanged ChangeKind = "status_changed"
)

// Event type constants, formatted as "<entity>.<change>"
const (
	EventTypeCustomerCreated = "customer.created"
	EventTypeCustomerUpdated = "customer.updated"
	EventTypeCustomerDeleted = "customer.deleted"

	EventTypeCampaignCreated       = "campaign.created"
	EventTypeCampaignUpdated       = "campaign.updated"
	EventTypeCampaignStatusChanged = "campaign.status_changed"
	EventTypeCampaignDeleted       = "campaign.deleted"

	EventTypeOrderCreated       = "order.created"
	EventTypeOrderUpdated       = "order.updated"
	EventTypeOrderStatusChanged = "order.status_changed"
	EventTypeOrderDeleted       = "order.deleted"
)

// OrderEventTypes lists every order mutation event type
var OrderEventTypes = []string{
	EventTypeOrderCreated,
	EventTypeOrderUpdated,
	EventTypeOrderStatusChanged,
	EventTypeOrderDeleted,
}

// EventTypeFor returns the event type for an entity/change pair
func EventTypeFor(entity EntityType, change ChangeKind) string {
	return string(entity) + "." + string(change)
}

// MutationEvent is published after every committed write to a customer,
// campaign or order.
//
// Order events carry the attribution the order has after the write and,
// when the write moved the order, the attribution it had before.
type MutationEvent struct {
	shared.BaseDomainEvent
	Entity EntityType `json:"entity_type"`
	Change ChangeKind `json:"change_kind"`

	CustomerID         uuid.UUID  `json:"customer_id,omitempty"`
	CampaignID         *uuid.UUID `json:"campaign_id,omitempty"`
	PreviousCustomerID *uuid.UUID `json:"previous_customer_id,omitempty"`
	PreviousCampaignID *uuid.UUID `json:"previous_campaign_id,omitempty"`
}

// EntityID returns the id of the mutated record
func (e *MutationEvent) EntityID() uuid.UUID {
	return e.AggID
}

// NewCustomerMutation creates a mutation event for a customer
func NewCustomerMutation(customerID uuid.UUID, change ChangeKind) *MutationEvent {
	return &MutationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFor(EntityCustomer, change), string(EntityCustomer), customerID),
		Entity:          EntityCustomer,
		Change:          change,
	}
}

// NewCampaignMutation creates a mutation event for a campaign
func NewCampaignMutation(campaignID uuid.UUID, change ChangeKind) *MutationEvent {
	return &MutationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFor(EntityCampaign, change), string(EntityCampaign), campaignID),
		Entity:          EntityCampaign,
		Change:          change,
	}
}

// NewOrderMutation creates a mutation event for an order in its current state
func NewOrderMutation(order *Order, change ChangeKind) *MutationEvent {
	return &MutationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFor(EntityOrder, change), string(EntityOrder), order.ID),
		Entity:          EntityOrder,
		Change:          change,
		CustomerID:      order.CustomerID,
		CampaignID:      copyID(order.CampaignID),
	}
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
