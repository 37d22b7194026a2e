package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minicrm/backend/internal/domain/crm"
)

// SeedResult counts the rows written by SeedSampleData
type SeedResult struct {
	Skipped   bool
	Customers int
	Campaigns int
	Orders    int
}

type sampleCustomer struct {
	name, email, phone string
	spend              string
	orders             int
	lastOrder          time.Time
}

type sampleCampaign struct {
	name, template string
	audience       crm.AudienceType
	audienceSize   int
}

var sampleCustomers = []sampleCustomer{
	{"Rahul Sharma", "rahul@example.com", "+91-9876543210", "25000.50", 5, time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)},
	{"Priya Singh", "priya@example.com", "+91-9876543211", "45000.75", 8, time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)},
	{"Amit Kumar", "amit@example.com", "+91-9876543212", "8000.00", 2, time.Date(2023, 12, 10, 0, 0, 0, 0, time.UTC)},
	{"Sneha Patel", "sneha@example.com", "+91-9876543213", "67000.25", 12, time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC)},
}

var sampleCampaigns = []sampleCampaign{
	{"Welcome Campaign", "Welcome {name}! Thanks for joining us!", crm.AudienceNew, 15},
	{"Reactivation Campaign", "We miss you {name}! Come back with 20% off!", crm.AudienceInactive, 8},
}

const sampleCreatedBy = "admin@example.com"

// SeedSampleData fills an empty database with demo customers, their
// completed orders and two draft campaigns. Nothing is written when any
// customer already exists.
func SeedSampleData(ctx context.Context, db *gorm.DB) (SeedResult, error) {
	var result SeedResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customers := NewGormCustomerRepository(tx)
		existing, err := customers.Count(ctx)
		if err != nil {
			return fmt.Errorf("count customers: %w", err)
		}
		if existing > 0 {
			result.Skipped = true
			return nil
		}

		orders := NewGormOrderRepository(tx)
		for _, s := range sampleCustomers {
			c, err := crm.NewCustomer(s.name, s.email, s.phone)
			if err != nil {
				return fmt.Errorf("sample customer %s: %w", s.email, err)
			}
			if err := customers.Save(ctx, c); err != nil {
				return fmt.Errorf("save customer %s: %w", s.email, err)
			}
			result.Customers++

			for i, amount := range splitAmount(decimal.RequireFromString(s.spend), s.orders) {
				at := s.lastOrder.AddDate(0, 0, -30*(s.orders-1-i))
				o, err := crm.NewOrder(c.ID, nil, amount, crm.OrderStatusCompleted, "", at)
				if err != nil {
					return fmt.Errorf("sample order for %s: %w", s.email, err)
				}
				if err := orders.Save(ctx, o); err != nil {
					return fmt.Errorf("save order for %s: %w", s.email, err)
				}
				result.Orders++
			}
		}

		campaigns := NewGormCampaignRepository(tx)
		for _, s := range sampleCampaigns {
			c, err := crm.NewCampaign(crm.CampaignInput{
				Name:            s.name,
				MessageTemplate: s.template,
				AudienceType:    s.audience,
				CreatedBy:       sampleCreatedBy,
			})
			if err != nil {
				return fmt.Errorf("sample campaign %q: %w", s.name, err)
			}
			c.SetAudienceSize(s.audienceSize)
			if err := campaigns.Save(ctx, c); err != nil {
				return fmt.Errorf("save campaign %q: %w", s.name, err)
			}
			result.Campaigns++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}

// splitAmount divides total into n cent-exact parts; the last part takes
// the remainder
func splitAmount(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	share := total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	parts := make([]decimal.Decimal, n)
	rest := total
	for i := 0; i < n-1; i++ {
		parts[i] = share
		rest = rest.Sub(share)
	}
	parts[n-1] = rest
	return parts
}
