package crm

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minicrm/backend/internal/domain/crm"
)

func TestReportService_Dashboard(t *testing.T) {
	ctx := context.Background()

	t.Run("averages completed revenue over active customers", func(t *testing.T) {
		customers, campaigns, orders := new(MockCustomerRepository), new(MockCampaignRepository), new(MockOrderRepository)
		svc := NewReportService(customers, campaigns, orders)

		customers.On("CountActive", ctx).Return(int64(3), nil)
		orders.On("Count", ctx).Return(int64(9), nil)
		campaigns.On("Count", ctx).Return(int64(2), nil)
		orders.On("CompletedRevenue", ctx).Return(decimal.NewFromInt(100), nil)

		resp, err := svc.Dashboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.TotalCustomers)
		assert.Equal(t, int64(9), resp.TotalOrders)
		assert.Equal(t, int64(2), resp.TotalCampaigns)
		assert.Equal(t, "33.33", resp.AvgSpend.StringFixed(2))
	})

	t.Run("zero customers", func(t *testing.T) {
		customers, campaigns, orders := new(MockCustomerRepository), new(MockCampaignRepository), new(MockOrderRepository)
		svc := NewReportService(customers, campaigns, orders)

		customers.On("CountActive", ctx).Return(int64(0), nil)
		orders.On("Count", ctx).Return(int64(0), nil)
		campaigns.On("Count", ctx).Return(int64(0), nil)
		orders.On("CompletedRevenue", ctx).Return(decimal.Zero, nil)

		resp, err := svc.Dashboard(ctx)
		require.NoError(t, err)
		assert.True(t, resp.AvgSpend.IsZero())
	})

	t.Run("store failure", func(t *testing.T) {
		customers, campaigns, orders := new(MockCustomerRepository), new(MockCampaignRepository), new(MockOrderRepository)
		svc := NewReportService(customers, campaigns, orders)

		customers.On("CountActive", ctx).Return(int64(0), assert.AnError)

		_, err := svc.Dashboard(ctx)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestReportService_Segments(t *testing.T) {
	ctx := context.Background()
	orders := new(MockOrderRepository)
	svc := NewReportService(new(MockCustomerRepository), new(MockCampaignRepository), orders)

	orders.On("SummarizeActiveCustomers", ctx).Return([]crm.CustomerOrderSummary{
		{CustomerID: uuid.New(), OrderCount: 5, CompletedSpend: decimal.NewFromInt(45000)},
		{CustomerID: uuid.New(), OrderCount: 1, CompletedSpend: decimal.NewFromInt(30000)},
		{CustomerID: uuid.New(), OrderCount: 0, CompletedSpend: decimal.Zero},
	}, nil)

	resp, err := svc.Segments(ctx)
	require.NoError(t, err)
	assert.Equal(t, SegmentsResponse{
		HighValueCustomers: 1,
		RecentlyActive:     2,
		InactiveCustomers:  1,
		NewCustomers:       2,
	}, *resp)
}

func TestSuggestMessages(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		resp := SuggestMessages(SuggestMessagesRequest{})
		assert.Equal(t, DefaultObjective, resp.Objective)
		assert.Equal(t, string(crm.AudienceAllCustomers), resp.Audience)
		require.Len(t, resp.Messages, 3)
		for _, m := range resp.Messages {
			assert.Contains(t, m, "{name}")
		}
	})

	t.Run("lower-cases objective after the first draft", func(t *testing.T) {
		resp := SuggestMessages(SuggestMessagesRequest{Objective: "Boost Loyalty"})
		assert.Contains(t, resp.Messages[0], "Boost Loyalty")
		assert.Contains(t, resp.Messages[1], "boost loyalty")
	})

	t.Run("audience specific closer", func(t *testing.T) {
		resp := SuggestMessages(SuggestMessagesRequest{Objective: "shop again", AudienceType: "Inactive"})
		assert.Contains(t, resp.Messages[2], "We miss you")
	})
}
