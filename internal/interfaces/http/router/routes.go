package router

import (
	"github.com/minicrm/backend/internal/interfaces/http/handler"
)

// Handlers bundles every endpoint handler the API serves
type Handlers struct {
	Customer  *handler.CustomerHandler
	Campaign  *handler.CampaignHandler
	Order     *handler.OrderHandler
	Analytics *handler.AnalyticsHandler
	Report    *handler.ReportHandler
	System    *handler.SystemHandler
}

// APIGroups builds the route groups mounted under /api/<version>
func APIGroups(h Handlers) []*DomainGroup {
	customers := NewDomainGroup("customers", "/customers")
	customers.POST("", h.Customer.Create).
		GET("", h.Customer.List).
		GET("/:id", h.Customer.GetByID).
		PUT("/:id", h.Customer.Update).
		POST("/:id/activate", h.Customer.Activate).
		POST("/:id/deactivate", h.Customer.Deactivate).
		DELETE("/:id", h.Customer.Delete)

	campaigns := NewDomainGroup("campaigns", "/campaigns")
	campaigns.POST("", h.Campaign.Create).
		GET("", h.Campaign.List).
		POST("/suggestions", h.Campaign.SuggestMessages).
		GET("/:id", h.Campaign.GetByID).
		PUT("/:id", h.Campaign.Update).
		PATCH("/:id/status", h.Campaign.UpdateStatus).
		DELETE("/:id", h.Campaign.Delete)

	orders := NewDomainGroup("orders", "/orders")
	orders.POST("", h.Order.Create).
		GET("", h.Order.List).
		GET("/:id", h.Order.GetByID).
		PUT("/:id", h.Order.Update).
		PATCH("/:id/status", h.Order.ChangeStatus).
		DELETE("/:id", h.Order.Delete)

	analyticsRoutes := NewDomainGroup("analytics", "/analytics")
	analyticsRoutes.GET("/metrics/:kind/:subject_type/:id", h.Analytics.GetMetric).
		GET("/campaigns/:id", h.Analytics.GetCampaignMetrics).
		GET("/customers/:id", h.Analytics.GetCustomerMetrics).
		GET("/cache/stats", h.Analytics.GetCacheStats)

	reports := NewDomainGroup("reports", "/reports")
	reports.GET("/dashboard", h.Report.Dashboard).
		GET("/segments", h.Report.Segments)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo).
		GET("/ping", h.System.Ping)

	return []*DomainGroup{customers, campaigns, orders, analyticsRoutes, reports, system}
}
