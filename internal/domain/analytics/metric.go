// Package analytics defines the metrics computed over customers, campaigns
// and orders, and the ports the aggregation core depends on.
package analytics

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetricKind names one derived metric
type MetricKind string

const (
	MetricRevenue        MetricKind = "revenue"
	MetricLifetimeValue  MetricKind = "lifetime_value"
	MetricOrderCount     MetricKind = "order_count"
	MetricConversionRate MetricKind = "conversion_rate"
)

// SubjectType names the entity a metric is computed about
type SubjectType string

const (
	SubjectCampaign SubjectType = "campaign"
	SubjectCustomer SubjectType = "customer"
)

// kindsBySubject lists the metrics defined for each subject type
var kindsBySubject = map[SubjectType][]MetricKind{
	SubjectCampaign: {MetricRevenue, MetricOrderCount, MetricConversionRate},
	SubjectCustomer: {MetricLifetimeValue, MetricOrderCount},
}

// KindsFor returns the metric kinds defined for the subject type.
// The returned slice must not be modified.
func KindsFor(subject SubjectType) []MetricKind {
	return kindsBySubject[subject]
}

// MetricKey identifies one cacheable aggregate
type MetricKey struct {
	Kind        MetricKind  `json:"kind"`
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   uuid.UUID   `json:"subject_id"`
}

// NewMetricKey builds a key without validating it
func NewMetricKey(kind MetricKind, subject SubjectType, id uuid.UUID) MetricKey {
	return MetricKey{Kind: kind, SubjectType: subject, SubjectID: id}
}

// Validate returns ErrInvalidMetricKey unless the kind is defined for the
// subject type and the subject id is set.
func (k MetricKey) Validate() error {
	kinds, ok := kindsBySubject[k.SubjectType]
	if !ok {
		return ErrInvalidMetricKey.WithMessage(fmt.Sprintf("unknown subject type %q", k.SubjectType))
	}
	if k.SubjectID == uuid.Nil {
		return ErrInvalidMetricKey.WithMessage("subject id is required")
	}
	for _, kind := range kinds {
		if kind == k.Kind {
			return nil
		}
	}
	return ErrInvalidMetricKey.WithMessage(fmt.Sprintf("metric %q is not defined for subject %q", k.Kind, k.SubjectType))
}

// String renders the key as kind/subject_type/subject_id
func (k MetricKey) String() string {
	return string(k.Kind) + "/" + string(k.SubjectType) + "/" + k.SubjectID.String()
}

// StatusBreakdown counts orders per status
type StatusBreakdown struct {
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
}

// Total returns the number of orders across all statuses
func (b StatusBreakdown) Total() int64 {
	return b.Pending + b.Completed + b.Cancelled
}

// MetricValue is the result of one aggregation. Breakdown is set for
// order_count only.
type MetricValue struct {
	Value     decimal.Decimal  `json:"value"`
	Breakdown *StatusBreakdown `json:"breakdown,omitempty"`
}

// Clone returns a copy that shares no memory with v
func (v MetricValue) Clone() MetricValue {
	out := MetricValue{Value: v.Value}
	if v.Breakdown != nil {
		b := *v.Breakdown
		out.Breakdown = &b
	}
	return out
}
