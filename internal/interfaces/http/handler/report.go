package handler

import (
	"github.com/gin-gonic/gin"

	crmapp "github.com/minicrm/backend/internal/application/crm"
)

// ReportHandler serves the overview reports
type ReportHandler struct {
	BaseHandler
	reportService *crmapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *crmapp.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// Dashboard handles GET /reports/dashboard
func (h *ReportHandler) Dashboard(c *gin.Context) {
	report, err := h.reportService.Dashboard(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, report)
}

// Segments handles GET /reports/segments
func (h *ReportHandler) Segments(c *gin.Context) {
	report, err := h.reportService.Segments(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, report)
}
