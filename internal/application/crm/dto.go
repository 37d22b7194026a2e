package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minicrm/backend/internal/domain/crm"
)

// CreateCustomerRequest represents a request to create a customer
type CreateCustomerRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=200"`
	Email string `json:"email" binding:"required,email,max=200"`
	Phone string `json:"phone" binding:"max=50"`
}

// UpdateCustomerRequest represents a request to update a customer.
// Nil fields are left unchanged.
type UpdateCustomerRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=200"`
	Email    *string `json:"email" binding:"omitempty,email,max=200"`
	Phone    *string `json:"phone" binding:"omitempty,max=50"`
	IsActive *bool   `json:"is_active"`
}

// CustomerListFilter represents customer list query parameters
type CustomerListFilter struct {
	Search     string `form:"search"`
	ActiveOnly bool   `form:"active_only"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToCustomerResponse converts a domain customer to a response
func ToCustomerResponse(c *crm.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToCustomerResponses converts a slice of domain customers
func ToCustomerResponses(customers []crm.Customer) []CustomerResponse {
	out := make([]CustomerResponse, len(customers))
	for i := range customers {
		out[i] = ToCustomerResponse(&customers[i])
	}
	return out
}

// CreateCampaignRequest represents a request to create a campaign
type CreateCampaignRequest struct {
	Name            string           `json:"name" binding:"required,min=1,max=200"`
	MessageTemplate string           `json:"message_template" binding:"max=2000"`
	AudienceType    string           `json:"audience_type" binding:"omitempty,oneof='All Customers' 'High Value' 'Recently Active' 'Inactive' 'New'"`
	StartDate       *time.Time       `json:"start_date"`
	EndDate         *time.Time       `json:"end_date"`
	Budget          *decimal.Decimal `json:"budget"`
	CreatedBy       string           `json:"-"` // set from the X-Actor header
}

// UpdateCampaignRequest represents a request to update a campaign.
// Nil fields are left unchanged.
type UpdateCampaignRequest struct {
	Name            *string          `json:"name" binding:"omitempty,min=1,max=200"`
	MessageTemplate *string          `json:"message_template" binding:"omitempty,max=2000"`
	StartDate       *time.Time       `json:"start_date"`
	EndDate         *time.Time       `json:"end_date"`
	Budget          *decimal.Decimal `json:"budget"`
}

// UpdateCampaignStatusRequest represents a campaign status transition
type UpdateCampaignStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft active completed"`
}

// CampaignListFilter represents campaign list query parameters
type CampaignListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=draft active completed"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CampaignResponse represents a campaign in API responses
type CampaignResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	MessageTemplate string          `json:"message_template"`
	AudienceType    string          `json:"audience_type"`
	AudienceSize    int             `json:"audience_size"`
	Status          string          `json:"status"`
	CreatedBy       string          `json:"created_by"`
	StartDate       *time.Time      `json:"start_date,omitempty"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	Budget          decimal.Decimal `json:"budget"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ToCampaignResponse converts a domain campaign to a response
func ToCampaignResponse(c *crm.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:              c.ID,
		Name:            c.Name,
		MessageTemplate: c.MessageTemplate,
		AudienceType:    string(c.AudienceType),
		AudienceSize:    c.AudienceSize,
		Status:          string(c.Status),
		CreatedBy:       c.CreatedBy,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		Budget:          c.Budget,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// ToCampaignResponses converts a slice of domain campaigns
func ToCampaignResponses(campaigns []crm.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, len(campaigns))
	for i := range campaigns {
		out[i] = ToCampaignResponse(&campaigns[i])
	}
	return out
}

// CampaignDeleteResponse reports what a campaign delete changed
type CampaignDeleteResponse struct {
	ID             uuid.UUID   `json:"id"`
	DetachedOrders []uuid.UUID `json:"detached_orders"`
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerID      uuid.UUID        `json:"customer_id" binding:"required"`
	CampaignID      *uuid.UUID       `json:"campaign_id"`
	Amount          *decimal.Decimal `json:"amount" binding:"required"`
	Status          string           `json:"status" binding:"omitempty,oneof=pending completed cancelled"`
	ProductCategory string           `json:"product_category" binding:"max=100"`
	OrderDate       *time.Time       `json:"order_date"`
}

// UpdateOrderRequest represents a request to update an order. Nil fields
// are left unchanged. DetachCampaign clears the attribution and takes
// precedence over CampaignID.
type UpdateOrderRequest struct {
	CustomerID      *uuid.UUID       `json:"customer_id"`
	CampaignID      *uuid.UUID       `json:"campaign_id"`
	DetachCampaign  bool             `json:"detach_campaign"`
	Amount          *decimal.Decimal `json:"amount"`
	ProductCategory *string          `json:"product_category" binding:"omitempty,max=100"`
}

// UpdateOrderStatusRequest represents an order status transition
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending completed cancelled"`
}

// OrderListFilter represents order list query parameters. CustomerID and
// CampaignID are parsed by the caller.
type OrderListFilter struct {
	CustomerID *uuid.UUID `form:"-"`
	CampaignID *uuid.UUID `form:"-"`
	Status     string     `form:"status" binding:"omitempty,oneof=pending completed cancelled"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID              uuid.UUID       `json:"id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	CampaignID      *uuid.UUID      `json:"campaign_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	ProductCategory string          `json:"product_category,omitempty"`
	OrderDate       time.Time       `json:"order_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ToOrderResponse converts a domain order to a response
func ToOrderResponse(o *crm.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		CampaignID:      o.CampaignID,
		Amount:          o.Amount,
		Status:          string(o.Status),
		ProductCategory: o.ProductCategory,
		OrderDate:       o.OrderDate,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// ToOrderResponses converts a slice of domain orders
func ToOrderResponses(orders []crm.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = ToOrderResponse(&orders[i])
	}
	return out
}

// DashboardResponse is the overview of the whole book of business
type DashboardResponse struct {
	TotalCustomers int64           `json:"total_customers"`
	TotalOrders    int64           `json:"total_orders"`
	TotalCampaigns int64           `json:"total_campaigns"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	AvgSpend       decimal.Decimal `json:"avg_spend"`
}

// SegmentsResponse counts active customers per segment. Segments overlap.
type SegmentsResponse struct {
	HighValueCustomers int `json:"high_value_customers"`
	RecentlyActive     int `json:"recently_active"`
	InactiveCustomers  int `json:"inactive_customers"`
	NewCustomers       int `json:"new_customers"`
}

// SuggestMessagesRequest asks for campaign message drafts
type SuggestMessagesRequest struct {
	Objective    string `json:"objective" binding:"max=200"`
	AudienceType string `json:"audience_type" binding:"omitempty,oneof='All Customers' 'High Value' 'Recently Active' 'Inactive' 'New'"`
}

// SuggestMessagesResponse holds the drafted messages
type SuggestMessagesResponse struct {
	Objective string   `json:"objective"`
	Audience  string   `json:"audience"`
	Messages  []string `json:"messages"`
}
