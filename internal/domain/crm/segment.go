package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AudienceType selects which customers a campaign targets
type AudienceType string

const (
	AudienceAllCustomers   AudienceType = "All Customers"
	AudienceHighValue      AudienceType = "High Value"
	AudienceRecentlyActive AudienceType = "Recently Active"
	AudienceInactive       AudienceType = "Inactive"
	AudienceNew            AudienceType = "New"
)

// IsValid reports whether the audience type is known
func (a AudienceType) IsValid() bool {
	switch a {
	case AudienceAllCustomers, AudienceHighValue, AudienceRecentlyActive, AudienceInactive, AudienceNew:
		return true
	}
	return false
}

// Segment returns the customer segment an audience maps to.
// ok is false for AudienceAllCustomers.
func (a AudienceType) Segment() (Segment, bool) {
	switch a {
	case AudienceHighValue:
		return SegmentHighValue, true
	case AudienceRecentlyActive:
		return SegmentRecentlyActive, true
	case AudienceInactive:
		return SegmentInactive, true
	case AudienceNew:
		return SegmentNew, true
	}
	return "", false
}

// Segment is a named group of customers derived from their order history
type Segment string

const (
	SegmentHighValue      Segment = "high_value"
	SegmentRecentlyActive Segment = "recently_active"
	SegmentInactive       Segment = "inactive"
	SegmentNew            Segment = "new"
)

// Segments lists every segment in report order
var Segments = []Segment{SegmentHighValue, SegmentRecentlyActive, SegmentInactive, SegmentNew}

// HighValueThreshold is the completed spend above which a customer is high value
var HighValueThreshold = decimal.NewFromInt(30000)

// CustomerOrderSummary is the order history of one active customer
type CustomerOrderSummary struct {
	CustomerID     uuid.UUID
	OrderCount     int64
	CompletedSpend decimal.Decimal
	LastOrderDate  *time.Time
}

// In reports whether the summary belongs to the segment.
// Segments overlap: a customer with one order is both new and recently active.
func (s CustomerOrderSummary) In(seg Segment) bool {
	switch seg {
	case SegmentHighValue:
		return s.CompletedSpend.GreaterThan(HighValueThreshold)
	case SegmentRecentlyActive:
		return s.OrderCount > 0
	case SegmentInactive:
		return s.OrderCount == 0
	case SegmentNew:
		return s.OrderCount <= 1
	}
	return false
}

// CountSegments tallies summaries per segment
func CountSegments(summaries []CustomerOrderSummary) map[Segment]int {
	counts := make(map[Segment]int, len(Segments))
	for _, seg := range Segments {
		counts[seg] = 0
	}
	for _, s := range summaries {
		for _, seg := range Segments {
			if s.In(seg) {
				counts[seg]++
			}
		}
	}
	return counts
}
