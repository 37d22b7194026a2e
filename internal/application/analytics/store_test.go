package analytics

import (
	"context"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

// memStore is an in-memory entity store. Writes publish their mutation
// events on the configured publisher before returning.
type memStore struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*crm.Customer
	campaigns map[uuid.UUID]*crm.Campaign
	orders    map[uuid.UUID]*crm.Order
	orderSeq  []uuid.UUID

	publisher  shared.EventPublisher
	failOrders error
	findCalls  atomic.Int64
}

func newMemStore(publisher shared.EventPublisher) *memStore {
	return &memStore{
		customers: make(map[uuid.UUID]*crm.Customer),
		campaigns: make(map[uuid.UUID]*crm.Campaign),
		orders:    make(map[uuid.UUID]*crm.Order),
		publisher: publisher,
	}
}

func (s *memStore) FindOrders(ctx context.Context, filter crm.OrderFilter) iter.Seq2[*crm.Order, error] {
	s.findCalls.Add(1)
	return func(yield func(*crm.Order, error) bool) {
		s.mu.Lock()
		failure := s.failOrders
		var matched []*crm.Order
		for _, id := range s.orderSeq {
			o, ok := s.orders[id]
			if !ok || !matches(o, filter) {
				continue
			}
			c := *o
			matched = append(matched, &c)
		}
		s.mu.Unlock()

		if failure != nil {
			yield(nil, failure)
			return
		}
		for _, o := range matched {
			if !yield(o, nil) {
				return
			}
		}
	}
}

func matches(o *crm.Order, f crm.OrderFilter) bool {
	if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
		return false
	}
	if f.CampaignID != nil && (o.CampaignID == nil || *o.CampaignID != *f.CampaignID) {
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	return true
}

func (s *memStore) GetCustomer(ctx context.Context, id uuid.UUID) (*crm.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (s *memStore) GetCampaign(ctx context.Context, id uuid.UUID) (*crm.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

func (s *memStore) publish(src eventSource) {
	if s.publisher != nil {
		_ = s.publisher.Publish(context.Background(), src.GetDomainEvents()...)
	}
	src.ClearDomainEvents()
}

func (s *memStore) addCustomer(name string) *crm.Customer {
	c, err := crm.NewCustomer(name, name+"@example.com", "")
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.customers[c.ID] = c
	s.mu.Unlock()
	s.publish(c)
	return c
}

func (s *memStore) addCampaign(name string) *crm.Campaign {
	c, err := crm.NewCampaign(crm.CampaignInput{Name: name})
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.campaigns[c.ID] = c
	s.mu.Unlock()
	s.publish(c)
	return c
}

func (s *memStore) addOrder(customer *crm.Customer, campaign *crm.Campaign, amount int64, status crm.OrderStatus) *crm.Order {
	var campaignID *uuid.UUID
	if campaign != nil {
		campaignID = &campaign.ID
	}
	o, err := crm.NewOrder(customer.ID, campaignID, decimal.NewFromInt(amount), status, "", time.Time{})
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.orders[o.ID] = o
	s.orderSeq = append(s.orderSeq, o.ID)
	s.mu.Unlock()
	s.publish(o)
	return o
}

// mutateOrder applies fn to the stored order under the store lock, then
// publishes what fn raised.
func (s *memStore) mutateOrder(id uuid.UUID, fn func(o *crm.Order) error) error {
	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return shared.ErrNotFound
	}
	err := fn(o)
	s.mu.Unlock()
	s.publish(o)
	return err
}

func (s *memStore) deleteOrder(id uuid.UUID) {
	s.mu.Lock()
	o, ok := s.orders[id]
	if ok {
		delete(s.orders, id)
		s.orderSeq = slices.DeleteFunc(s.orderSeq, func(v uuid.UUID) bool { return v == id })
	}
	s.mu.Unlock()
	if ok {
		o.MarkDeleted()
		s.publish(o)
	}
}

// deleteCampaign removes the campaign and detaches its orders
func (s *memStore) deleteCampaign(id uuid.UUID) {
	s.mu.Lock()
	c, ok := s.campaigns[id]
	delete(s.campaigns, id)
	var detached []*crm.Order
	for _, o := range s.orders {
		if o.CampaignID != nil && *o.CampaignID == id {
			o.Attribute(nil)
			detached = append(detached, o)
		}
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	c.MarkDeleted()
	s.publish(c)
	for _, o := range detached {
		s.publish(o)
	}
}

// groundTruthRevenue recomputes revenue without any engine or cache
func (s *memStore) groundTruthRevenue(campaignID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, o := range s.orders {
		if o.CampaignID != nil && *o.CampaignID == campaignID && o.Status == crm.OrderStatusCompleted {
			total = total.Add(o.Amount)
		}
	}
	return total
}
