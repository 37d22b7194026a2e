package persistence

import (
	"context"
	"iter"

	"github.com/google/uuid"

	"github.com/minicrm/backend/internal/domain/crm"
)

// EntityReader adapts the CRM repositories to the read port of the
// aggregation engine
type EntityReader struct {
	customers crm.CustomerRepository
	campaigns crm.CampaignRepository
	orders    crm.OrderRepository
}

// NewEntityReader creates an EntityReader over the given repositories
func NewEntityReader(customers crm.CustomerRepository, campaigns crm.CampaignRepository, orders crm.OrderRepository) *EntityReader {
	return &EntityReader{customers: customers, campaigns: campaigns, orders: orders}
}

// FindOrders returns a fresh sequence over the matching orders
func (r *EntityReader) FindOrders(ctx context.Context, filter crm.OrderFilter) iter.Seq2[*crm.Order, error] {
	return r.orders.FindOrders(ctx, filter)
}

// GetCustomer returns shared.ErrNotFound for unknown customers
func (r *EntityReader) GetCustomer(ctx context.Context, id uuid.UUID) (*crm.Customer, error) {
	return r.customers.FindByID(ctx, id)
}

// GetCampaign returns shared.ErrNotFound for unknown campaigns
func (r *EntityReader) GetCampaign(ctx context.Context, id uuid.UUID) (*crm.Campaign, error) {
	return r.campaigns.FindByID(ctx, id)
}
