package crm

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minicrm/backend/internal/domain/shared"
)

func TestNewCampaign(t *testing.T) {
	t.Run("creates draft with defaults", func(t *testing.T) {
		c, err := NewCampaign(CampaignInput{Name: "Diwali Sale", Budget: decimal.NewFromInt(5000)})

		require.NoError(t, err)
		assert.Equal(t, CampaignStatusDraft, c.Status)
		assert.Equal(t, AudienceAllCustomers, c.AudienceType)
		assert.Equal(t, "system", c.CreatedBy)
		assert.Len(t, c.GetDomainEvents(), 1)
	})

	t.Run("rejects inverted date range", func(t *testing.T) {
		start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, -1)
		_, err := NewCampaign(CampaignInput{Name: "x", StartDate: &start, EndDate: &end})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("rejects negative budget", func(t *testing.T) {
		_, err := NewCampaign(CampaignInput{Name: "x", Budget: decimal.NewFromInt(-5)})
		assert.ErrorContains(t, err, "Budget")
	})

	t.Run("rejects unknown audience", func(t *testing.T) {
		_, err := NewCampaign(CampaignInput{Name: "x", AudienceType: "Everyone Ever"})
		assert.ErrorContains(t, err, "audience")
	})
}

func TestCampaign_ChangeStatus(t *testing.T) {
	c, err := NewCampaign(CampaignInput{Name: "Launch"})
	require.NoError(t, err)

	require.NoError(t, c.ChangeStatus(CampaignStatusActive))
	assert.True(t, errors.Is(c.ChangeStatus(CampaignStatusDraft), shared.ErrInvalidState))
	require.NoError(t, c.ChangeStatus(CampaignStatusCompleted))
	assert.True(t, errors.Is(c.ChangeStatus(CampaignStatusActive), shared.ErrInvalidState))
	assert.True(t, errors.Is(c.ChangeStatus("paused"), shared.ErrInvalidInput))
}

func TestCountSegments(t *testing.T) {
	summaries := []CustomerOrderSummary{
		{OrderCount: 0, CompletedSpend: decimal.Zero},
		{OrderCount: 1, CompletedSpend: decimal.NewFromInt(500)},
		{OrderCount: 4, CompletedSpend: decimal.NewFromInt(30001)},
		{OrderCount: 2, CompletedSpend: decimal.NewFromInt(30000)},
	}

	counts := CountSegments(summaries)

	assert.Equal(t, 1, counts[SegmentHighValue])
	assert.Equal(t, 3, counts[SegmentRecentlyActive])
	assert.Equal(t, 1, counts[SegmentInactive])
	assert.Equal(t, 2, counts[SegmentNew])
}

func TestAudienceType_Segment(t *testing.T) {
	_, ok := AudienceAllCustomers.Segment()
	assert.False(t, ok)

	seg, ok := AudienceHighValue.Segment()
	assert.True(t, ok)
	assert.Equal(t, SegmentHighValue, seg)
}
