package crm

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

// CampaignService handles campaign-related business operations
type CampaignService struct {
	serviceBase
	campaignRepo crm.CampaignRepository
	customerRepo crm.CustomerRepository
	orderRepo    crm.OrderRepository
}

// NewCampaignService creates a new CampaignService
func NewCampaignService(campaignRepo crm.CampaignRepository, customerRepo crm.CustomerRepository, orderRepo crm.OrderRepository, opts ...Option) *CampaignService {
	return &CampaignService{
		serviceBase:  newServiceBase(opts),
		campaignRepo: campaignRepo,
		customerRepo: customerRepo,
		orderRepo:    orderRepo,
	}
}

// Create creates a draft campaign and sizes its audience
func (s *CampaignService) Create(ctx context.Context, req CreateCampaignRequest) (*CampaignResponse, error) {
	in := crm.CampaignInput{
		Name:            req.Name,
		MessageTemplate: req.MessageTemplate,
		AudienceType:    crm.AudienceType(req.AudienceType),
		CreatedBy:       req.CreatedBy,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}
	if req.Budget != nil {
		in.Budget = *req.Budget
	}

	campaign, err := crm.NewCampaign(in)
	if err != nil {
		return nil, err
	}

	size, err := s.AudienceSize(ctx, campaign.AudienceType)
	if err != nil {
		return nil, err
	}
	campaign.SetAudienceSize(size)

	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, campaign)

	s.logger.Info("Campaign created",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("audience_type", string(campaign.AudienceType)),
		zap.Int("audience_size", size),
	)
	response := ToCampaignResponse(campaign)
	return &response, nil
}

// AudienceSize counts the customers an audience type targets
func (s *CampaignService) AudienceSize(ctx context.Context, audience crm.AudienceType) (int, error) {
	segment, ok := audience.Segment()
	if !ok {
		active, err := s.customerRepo.CountActive(ctx)
		if err != nil {
			return 0, err
		}
		return int(active), nil
	}

	summaries, err := s.orderRepo.SummarizeActiveCustomers(ctx)
	if err != nil {
		return 0, err
	}
	return crm.CountSegments(summaries)[segment], nil
}

// GetByID retrieves a campaign by ID
func (s *CampaignService) GetByID(ctx context.Context, id uuid.UUID) (*CampaignResponse, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToCampaignResponse(campaign)
	return &response, nil
}

// List retrieves a page of campaigns
func (s *CampaignService) List(ctx context.Context, filter CampaignListFilter) ([]CampaignResponse, int64, error) {
	domainFilter := crm.CampaignFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		}.Normalize(),
		Status: crm.CampaignStatus(filter.Status),
	}

	campaigns, total, err := s.campaignRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToCampaignResponses(campaigns), total, nil
}

// Update applies the non-nil fields of req
func (s *CampaignService) Update(ctx context.Context, id uuid.UUID, req UpdateCampaignRequest) (*CampaignResponse, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	in := crm.CampaignInput{
		Name:            campaign.Name,
		MessageTemplate: campaign.MessageTemplate,
		StartDate:       campaign.StartDate,
		EndDate:         campaign.EndDate,
		Budget:          campaign.Budget,
	}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.MessageTemplate != nil {
		in.MessageTemplate = *req.MessageTemplate
	}
	if req.StartDate != nil {
		in.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		in.EndDate = req.EndDate
	}
	if req.Budget != nil {
		in.Budget = *req.Budget
	}

	if err := campaign.Update(in); err != nil {
		return nil, err
	}
	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, campaign)

	response := ToCampaignResponse(campaign)
	return &response, nil
}

// UpdateStatus moves the campaign to another lifecycle state
func (s *CampaignService) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateCampaignStatusRequest) (*CampaignResponse, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := campaign.ChangeStatus(crm.CampaignStatus(req.Status)); err != nil {
		return nil, err
	}
	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, campaign)

	response := ToCampaignResponse(campaign)
	return &response, nil
}

// Delete removes the campaign and detaches its orders. Each detached
// order publishes an update carrying its previous campaign.
func (s *CampaignService) Delete(ctx context.Context, id uuid.UUID) (*CampaignDeleteResponse, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detached, err := s.campaignRepo.DeleteDetachingOrders(ctx, id)
	if err != nil {
		return nil, err
	}

	sources := make([]eventSource, 0, len(detached)+1)
	ids := make([]uuid.UUID, len(detached))
	for i := range detached {
		order := &detached[i]
		order.Attribute(nil)
		sources = append(sources, order)
		ids[i] = order.ID
	}
	campaign.MarkDeleted()
	sources = append(sources, campaign)
	s.publishDomainEvents(ctx, sources...)

	s.logger.Info("Campaign deleted",
		zap.String("campaign_id", id.String()),
		zap.Int("detached_orders", len(detached)),
	)
	return &CampaignDeleteResponse{ID: id, DetachedOrders: ids}, nil
}
