package handler

import (
	"github.com/gin-gonic/gin"

	appanalytics "github.com/minicrm/backend/internal/application/analytics"
	"github.com/minicrm/backend/internal/domain/analytics"
	"github.com/minicrm/backend/internal/infrastructure/cache"
)

// CacheStatsSource reports metric cache counters
type CacheStatsSource interface {
	GetStats() cache.Stats
}

// AnalyticsHandler serves derived metrics
type AnalyticsHandler struct {
	BaseHandler
	queryService *appanalytics.QueryService
	stats        CacheStatsSource
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(queryService *appanalytics.QueryService, stats CacheStatsSource) *AnalyticsHandler {
	return &AnalyticsHandler{
		queryService: queryService,
		stats:        stats,
	}
}

// MetricResponse is one metric for one subject, flattened to
// {kind, subject_type, subject_id, value, breakdown}
type MetricResponse struct {
	analytics.MetricKey
	analytics.MetricValue
}

// GetMetric handles GET /analytics/metrics/:kind/:subject_type/:id
func (h *AnalyticsHandler) GetMetric(c *gin.Context) {
	id, ok := h.parseID(c, "id", "subject")
	if !ok {
		return
	}
	kind := analytics.MetricKind(c.Param("kind"))
	subject := analytics.SubjectType(c.Param("subject_type"))

	value, err := h.queryService.Query(c.Request.Context(), kind, subject, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, MetricResponse{
		MetricKey:   analytics.NewMetricKey(kind, subject, id),
		MetricValue: value,
	})
}

// GetCampaignMetrics handles GET /analytics/campaigns/:id
func (h *AnalyticsHandler) GetCampaignMetrics(c *gin.Context) {
	h.subjectMetrics(c, analytics.SubjectCampaign, "campaign")
}

// GetCustomerMetrics handles GET /analytics/customers/:id
func (h *AnalyticsHandler) GetCustomerMetrics(c *gin.Context) {
	h.subjectMetrics(c, analytics.SubjectCustomer, "customer")
}

func (h *AnalyticsHandler) subjectMetrics(c *gin.Context, subject analytics.SubjectType, label string) {
	id, ok := h.parseID(c, "id", label)
	if !ok {
		return
	}
	metrics, err := h.queryService.QueryAll(c.Request.Context(), subject, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, metrics)
}

// GetCacheStats handles GET /analytics/cache/stats
func (h *AnalyticsHandler) GetCacheStats(c *gin.Context) {
	h.Success(c, h.stats.GetStats())
}
