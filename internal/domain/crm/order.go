package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minicrm/backend/internal/domain/shared"
)

// OrderStatus represents the state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValid reports whether the status is known
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a purchase by a customer, optionally attributed to a campaign
type Order struct {
	shared.BaseAggregateRoot
	CustomerID      uuid.UUID
	CampaignID      *uuid.UUID
	Amount          decimal.Decimal
	Status          OrderStatus
	ProductCategory string
	OrderDate       time.Time
}

// NewOrder creates an order. An empty status defaults to completed and a
// zero order date defaults to now.
func NewOrder(customerID uuid.UUID, campaignID *uuid.UUID, amount decimal.Decimal, status OrderStatus, category string, orderDate time.Time) (*Order, error) {
	if customerID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("Order requires a customer")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if status == "" {
		status = OrderStatusCompleted
	}
	if !status.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage("Invalid order status")
	}
	if campaignID != nil && *campaignID == uuid.Nil {
		campaignID = nil
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		CampaignID:        copyID(campaignID),
		Amount:            amount,
		Status:            status,
		ProductCategory:   category,
		OrderDate:         orderDate,
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = o.CreatedAt
	}
	o.AddDomainEvent(NewOrderMutation(o, ChangeCreated))
	return o, nil
}

// UpdateDetails replaces the amount and product category
func (o *Order) UpdateDetails(amount decimal.Decimal, category string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount.Equal(o.Amount) && category == o.ProductCategory {
		return nil
	}
	o.Amount = amount
	o.ProductCategory = category
	o.Touch()
	o.AddDomainEvent(NewOrderMutation(o, ChangeUpdated))
	return nil
}

// Attribute moves the order to another campaign, or detaches it when
// campaignID is nil. The event carries the previous campaign.
func (o *Order) Attribute(campaignID *uuid.UUID) {
	if campaignID != nil && *campaignID == uuid.Nil {
		campaignID = nil
	}
	if sameID(o.CampaignID, campaignID) {
		return
	}
	previous := o.CampaignID
	o.CampaignID = copyID(campaignID)
	o.Touch()

	event := NewOrderMutation(o, ChangeUpdated)
	event.PreviousCampaignID = copyID(previous)
	o.AddDomainEvent(event)
}

// Reassign moves the order to another customer. The event carries the
// previous customer.
func (o *Order) Reassign(customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return shared.ErrInvalidInput.WithMessage("Order requires a customer")
	}
	if customerID == o.CustomerID {
		return nil
	}
	previous := o.CustomerID
	o.CustomerID = customerID
	o.Touch()

	event := NewOrderMutation(o, ChangeUpdated)
	event.PreviousCustomerID = &previous
	o.AddDomainEvent(event)
	return nil
}

// ChangeStatus applies a status transition. Cancelled is terminal.
func (o *Order) ChangeStatus(status OrderStatus) error {
	if !status.IsValid() {
		return shared.ErrInvalidInput.WithMessage("Invalid order status")
	}
	if status == o.Status {
		return nil
	}
	if o.Status == OrderStatusCancelled {
		return shared.ErrInvalidState.WithMessage("Cancelled orders cannot change status")
	}
	if o.Status == OrderStatusCompleted && status == OrderStatusPending {
		return shared.ErrInvalidState.WithMessage("Completed orders cannot return to pending")
	}
	o.Status = status
	o.Touch()
	o.AddDomainEvent(NewOrderMutation(o, ChangeStatusChanged))
	return nil
}

// MarkDeleted records the deletion event. The caller removes the record.
func (o *Order) MarkDeleted() {
	o.AddDomainEvent(NewOrderMutation(o, ChangeDeleted))
}

// IsCompleted reports whether the order contributes to revenue
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// Amounts are stored as decimal(18,2).
const amountScale = 2

var maxAmount = decimal.New(1, 18-amountScale)

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.ErrInvalidInput.WithMessage("Order amount cannot be negative")
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return shared.ErrInvalidInput.WithMessage("Order amount cannot have more than 2 decimal places")
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return shared.ErrInvalidInput.WithMessage("Order amount is too large")
	}
	return nil
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
