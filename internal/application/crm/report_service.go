package crm

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/minicrm/backend/internal/domain/crm"
)

// AvgSpendPlaces is the number of decimal places kept in the average spend
const AvgSpendPlaces = 2

// ReportService builds the overview reports. Reports read the store
// directly and are not cached.
type ReportService struct {
	customerRepo crm.CustomerRepository
	campaignRepo crm.CampaignRepository
	orderRepo    crm.OrderRepository
}

// NewReportService creates a new ReportService
func NewReportService(customerRepo crm.CustomerRepository, campaignRepo crm.CampaignRepository, orderRepo crm.OrderRepository) *ReportService {
	return &ReportService{
		customerRepo: customerRepo,
		campaignRepo: campaignRepo,
		orderRepo:    orderRepo,
	}
}

// Dashboard returns totals across the store. Customers count active
// customers only, and the average spend divides completed revenue by them.
func (s *ReportService) Dashboard(ctx context.Context) (*DashboardResponse, error) {
	customers, err := s.customerRepo.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.campaignRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.orderRepo.CompletedRevenue(ctx)
	if err != nil {
		return nil, err
	}

	avg := decimal.Zero
	if customers > 0 {
		avg = revenue.DivRound(decimal.NewFromInt(customers), AvgSpendPlaces)
	}
	return &DashboardResponse{
		TotalCustomers: customers,
		TotalOrders:    orders,
		TotalCampaigns: campaigns,
		TotalRevenue:   revenue,
		AvgSpend:       avg,
	}, nil
}

// Segments counts active customers per segment
func (s *ReportService) Segments(ctx context.Context) (*SegmentsResponse, error) {
	summaries, err := s.orderRepo.SummarizeActiveCustomers(ctx)
	if err != nil {
		return nil, err
	}
	counts := crm.CountSegments(summaries)
	return &SegmentsResponse{
		HighValueCustomers: counts[crm.SegmentHighValue],
		RecentlyActive:     counts[crm.SegmentRecentlyActive],
		InactiveCustomers:  counts[crm.SegmentInactive],
		NewCustomers:       counts[crm.SegmentNew],
	}, nil
}
