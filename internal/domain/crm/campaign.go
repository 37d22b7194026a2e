package crm

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minicrm/backend/internal/domain/shared"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// IsValid reports whether the status is known
func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusCompleted:
		return true
	}
	return false
}

// Campaign is a marketing push that orders may be attributed to
type Campaign struct {
	shared.BaseAggregateRoot
	Name            string
	MessageTemplate string
	AudienceType    AudienceType
	AudienceSize    int
	Status          CampaignStatus
	CreatedBy       string
	StartDate       *time.Time
	EndDate         *time.Time
	Budget          decimal.Decimal
}

// CampaignInput holds the editable fields of a campaign
type CampaignInput struct {
	Name            string
	MessageTemplate string
	AudienceType    AudienceType
	CreatedBy       string
	StartDate       *time.Time
	EndDate         *time.Time
	Budget          decimal.Decimal
}

// NewCampaign creates a draft campaign. AudienceSize is set by the caller
// once the audience has been counted.
func NewCampaign(in CampaignInput) (*Campaign, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.AudienceType == "" {
		in.AudienceType = AudienceAllCustomers
	}
	if err := validateCampaign(in); err != nil {
		return nil, err
	}
	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}

	c := &Campaign{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              in.Name,
		MessageTemplate:   in.MessageTemplate,
		AudienceType:      in.AudienceType,
		Status:            CampaignStatusDraft,
		CreatedBy:         createdBy,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		Budget:            in.Budget,
	}
	c.AddDomainEvent(NewCampaignMutation(c.ID, ChangeCreated))
	return c, nil
}

// Update replaces the editable fields. The creator and audience type are kept.
func (c *Campaign) Update(in CampaignInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.AudienceType = c.AudienceType
	if err := validateCampaign(in); err != nil {
		return err
	}
	c.Name = in.Name
	c.MessageTemplate = in.MessageTemplate
	c.StartDate = in.StartDate
	c.EndDate = in.EndDate
	c.Budget = in.Budget
	c.Touch()
	c.AddDomainEvent(NewCampaignMutation(c.ID, ChangeUpdated))
	return nil
}

// SetAudienceSize records the counted audience
func (c *Campaign) SetAudienceSize(size int) {
	if size < 0 {
		size = 0
	}
	c.AudienceSize = size
}

// ChangeStatus moves the campaign through draft -> active -> completed
func (c *Campaign) ChangeStatus(status CampaignStatus) error {
	if !status.IsValid() {
		return shared.ErrInvalidInput.WithMessage("Invalid campaign status")
	}
	if status == c.Status {
		return nil
	}
	if c.Status == CampaignStatusCompleted {
		return shared.ErrInvalidState.WithMessage("Completed campaigns cannot change status")
	}
	if c.Status == CampaignStatusActive && status == CampaignStatusDraft {
		return shared.ErrInvalidState.WithMessage("Active campaigns cannot return to draft")
	}
	c.Status = status
	c.Touch()
	c.AddDomainEvent(NewCampaignMutation(c.ID, ChangeStatusChanged))
	return nil
}

// MarkDeleted records the deletion event. The caller removes the record.
func (c *Campaign) MarkDeleted() {
	c.AddDomainEvent(NewCampaignMutation(c.ID, ChangeDeleted))
}

func validateCampaign(in CampaignInput) error {
	if in.Name == "" {
		return shared.ErrInvalidInput.WithMessage("Campaign name cannot be empty")
	}
	if len(in.Name) > 200 {
		return shared.ErrInvalidInput.WithMessage("Campaign name cannot exceed 200 characters")
	}
	if !in.AudienceType.IsValid() {
		return shared.ErrInvalidInput.WithMessage("Unknown audience type")
	}
	if in.Budget.IsNegative() {
		return shared.ErrInvalidInput.WithMessage("Budget cannot be negative")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return shared.ErrInvalidInput.WithMessage("End date cannot be before start date")
	}
	return nil
}
