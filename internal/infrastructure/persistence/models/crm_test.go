package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minicrm/backend/internal/domain/crm"
)

func TestOrderModel_KeepsAttribution(t *testing.T) {
	campaignID := uuid.New()
	order, err := crm.NewOrder(uuid.New(), &campaignID, decimal.RequireFromString("19.99"), crm.OrderStatusPending, "books", time.Now())
	require.NoError(t, err)

	back := OrderModelFromDomain(order).ToDomain()

	assert.Equal(t, order.ID, back.ID)
	require.NotNil(t, back.CampaignID)
	assert.Equal(t, campaignID, *back.CampaignID)
	assert.True(t, order.Amount.Equal(back.Amount))
	assert.Equal(t, crm.OrderStatusPending, back.Status)
	assert.Empty(t, back.GetDomainEvents())
}

func TestCustomerModel_InactiveCustomer(t *testing.T) {
	customer, err := crm.NewCustomer("Ada", "ada@example.com", "")
	require.NoError(t, err)
	customer.SetActive(false)

	m := CustomerModelFromDomain(customer)
	assert.False(t, m.IsActive)
	assert.Equal(t, "customers", m.TableName())
	assert.False(t, m.ToDomain().IsActive)
}

func TestCampaignModel_Audience(t *testing.T) {
	campaign, err := crm.NewCampaign(crm.CampaignInput{Name: "Spring", AudienceType: crm.AudienceHighValue})
	require.NoError(t, err)
	campaign.SetAudienceSize(12)

	back := CampaignModelFromDomain(campaign).ToDomain()
	assert.Equal(t, crm.AudienceHighValue, back.AudienceType)
	assert.Equal(t, 12, back.AudienceSize)
	assert.Equal(t, crm.CampaignStatusDraft, back.Status)
	assert.Equal(t, "system", back.CreatedBy)
}
