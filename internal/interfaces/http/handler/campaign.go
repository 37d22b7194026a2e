package handler

import (
	"github.com/gin-gonic/gin"

	crmapp "github.com/minicrm/backend/internal/application/crm"
	"github.com/minicrm/backend/internal/infrastructure/logger"
)

// CampaignHandler handles campaign-related API endpoints
type CampaignHandler struct {
	BaseHandler
	campaignService *crmapp.CampaignService
}

// NewCampaignHandler creates a new CampaignHandler
func NewCampaignHandler(campaignService *crmapp.CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
	}
}

// Create handles POST /campaigns. The creator is taken from the X-Actor header.
func (h *CampaignHandler) Create(c *gin.Context) {
	var req crmapp.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.CreatedBy = logger.GetActor(c.Request.Context())

	campaign, err := h.campaignService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, campaign)
}

// GetByID handles GET /campaigns/:id
func (h *CampaignHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id", "campaign")
	if !ok {
		return
	}

	campaign, err := h.campaignService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, campaign)
}

// List handles GET /campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	var filter crmapp.CampaignListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}

	campaigns, total, err := h.campaignService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, campaigns, total, page, pageSize)
}

// Update handles PUT /campaigns/:id
func (h *CampaignHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c, "id", "campaign")
	if !ok {
		return
	}
	var req crmapp.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	campaign, err := h.campaignService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, campaign)
}

// UpdateStatus handles PATCH /campaigns/:id/status
func (h *CampaignHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.parseID(c, "id", "campaign")
	if !ok {
		return
	}
	var req crmapp.UpdateCampaignStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	campaign, err := h.campaignService.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, campaign)
}

// Delete handles DELETE /campaigns/:id. Attributed orders are detached and
// reported in the response.
func (h *CampaignHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c, "id", "campaign")
	if !ok {
		return
	}

	result, err := h.campaignService.Delete(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// SuggestMessages handles POST /campaigns/suggestions
func (h *CampaignHandler) SuggestMessages(c *gin.Context) {
	var req crmapp.SuggestMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	h.Success(c, crmapp.SuggestMessages(req))
}
