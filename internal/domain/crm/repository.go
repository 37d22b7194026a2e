package crm

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minicrm/backend/internal/domain/shared"
)

// CustomerFilter narrows customer listings
type CustomerFilter struct {
	shared.Filter
	ActiveOnly bool
}

// CampaignFilter narrows campaign listings
type CampaignFilter struct {
	shared.Filter
	Status CampaignStatus
}

// OrderFilter selects orders. Nil fields match everything.
type OrderFilter struct {
	CampaignID *uuid.UUID
	CustomerID *uuid.UUID
	Status     *OrderStatus
}

// CustomerRepository defines persistence for customers
type CustomerRepository interface {
	// FindByID returns shared.ErrNotFound when the customer does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindAll(ctx context.Context, filter CustomerFilter) ([]Customer, int64, error)
	CountActive(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
	Save(ctx context.Context, customer *Customer) error
	// Delete fails with shared.ErrInvalidState while orders reference the customer
	Delete(ctx context.Context, id uuid.UUID) error
}

// CampaignRepository defines persistence for campaigns
type CampaignRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Campaign, error)
	FindAll(ctx context.Context, filter CampaignFilter) ([]Campaign, int64, error)
	Count(ctx context.Context) (int64, error)
	Save(ctx context.Context, campaign *Campaign) error
	// DeleteDetachingOrders removes the campaign and clears the attribution
	// of its orders in one transaction. It returns the detached orders as
	// they were before the update.
	DeleteDetachingOrders(ctx context.Context, id uuid.UUID) ([]Order, error)
}

// OrderRepository defines persistence for orders
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindOrders returns a lazy sequence over the matching orders. Each call
	// starts a fresh query; ranging over the result a second time re-runs it.
	FindOrders(ctx context.Context, filter OrderFilter) iter.Seq2[*Order, error]
	FindAll(ctx context.Context, filter OrderFilter, page shared.Filter) ([]Order, int64, error)
	Count(ctx context.Context) (int64, error)
	CountByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
	CompletedRevenue(ctx context.Context) (decimal.Decimal, error)
	// SummarizeActiveCustomers returns one summary per active customer,
	// including customers without orders.
	SummarizeActiveCustomers(ctx context.Context) ([]CustomerOrderSummary, error)
	Save(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}
