package crm

import (
	"context"
	"iter"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

// MockCustomerRepository is a mock implementation of crm.CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*crm.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByEmail(ctx context.Context, email string) (*crm.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Customer), args.Error(1)
}

func (m *MockCustomerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerRepository) FindAll(ctx context.Context, filter crm.CustomerFilter) ([]crm.Customer, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]crm.Customer), args.Get(1).(int64), args.Error(2)
}

func (m *MockCustomerRepository) CountActive(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCustomerRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCustomerRepository) Save(ctx context.Context, customer *crm.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCampaignRepository is a mock implementation of crm.CampaignRepository
type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) FindByID(ctx context.Context, id uuid.UUID) (*crm.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) FindAll(ctx context.Context, filter crm.CampaignFilter) ([]crm.Campaign, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]crm.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCampaignRepository) Save(ctx context.Context, campaign *crm.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

func (m *MockCampaignRepository) DeleteDetachingOrders(ctx context.Context, id uuid.UUID) ([]crm.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]crm.Order), args.Error(1)
}

// MockOrderRepository is a mock implementation of crm.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*crm.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Order), args.Error(1)
}

func (m *MockOrderRepository) FindOrders(ctx context.Context, filter crm.OrderFilter) iter.Seq2[*crm.Order, error] {
	args := m.Called(ctx, filter)
	return args.Get(0).(iter.Seq2[*crm.Order, error])
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter crm.OrderFilter, page shared.Filter) ([]crm.Order, int64, error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).([]crm.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CompletedRevenue(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockOrderRepository) SummarizeActiveCustomers(ctx context.Context) ([]crm.CustomerOrderSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]crm.CustomerOrderSummary), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *crm.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func (p *recordingPublisher) mutations() []*crm.MutationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*crm.MutationEvent
	for _, e := range p.events {
		if m, ok := e.(*crm.MutationEvent); ok {
			out = append(out, m)
		}
	}
	return out
}

type countingFlusher struct {
	flushes int
}

func (f *countingFlusher) InvalidateAll() { f.flushes++ }
