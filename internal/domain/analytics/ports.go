package analytics

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/minicrm/backend/internal/domain/crm"
)

// EntityReader is the read side of the entity store the engine depends on
type EntityReader interface {
	// FindOrders returns a finite sequence over matching orders, fresh per call
	FindOrders(ctx context.Context, filter crm.OrderFilter) iter.Seq2[*crm.Order, error]
	GetCustomer(ctx context.Context, id uuid.UUID) (*crm.Customer, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*crm.Campaign, error)
}

// Aggregator computes a metric from current entity state
type Aggregator interface {
	Compute(ctx context.Context, key MetricKey) (MetricValue, error)
}

// CachedAggregate is one memoized metric. It is replaced wholesale, never
// mutated.
type CachedAggregate struct {
	Value      MetricValue
	ComputedAt time.Time
	Token      uint64
}

// Token is issued by a cache lookup and must accompany the matching Put.
// A Put whose token predates an invalidation of the key is discarded.
type Token = uint64

// MetricCache memoizes aggregates with explicit invalidation
type MetricCache interface {
	Lookup(key MetricKey) (CachedAggregate, Token, bool)
	Put(key MetricKey, value MetricValue, token Token) bool
	Invalidate(key MetricKey)
	InvalidateSubject(subject SubjectType, id uuid.UUID)
	InvalidateAll()
}

// Invalidator receives the keys a mutation made stale
type Invalidator interface {
	Invalidate(key MetricKey)
	InvalidateSubject(subject SubjectType, id uuid.UUID)
	InvalidateAll()
}
