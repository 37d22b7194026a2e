package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minicrm/backend/internal/domain/crm"
)

// CustomerModel is the persistence model for crm.Customer
type CustomerModel struct {
	BaseModel
	Name     string `gorm:"size:200;not null"`
	Email    string `gorm:"size:254;not null;uniqueIndex"`
	Phone    string `gorm:"size:50"`
	IsActive bool   `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the model to a domain customer
func (m *CustomerModel) ToDomain() *crm.Customer {
	return &crm.Customer{
		BaseAggregateRoot: aggregateRoot(m.BaseModel),
		Name:              m.Name,
		Email:             m.Email,
		Phone:             m.Phone,
		IsActive:          m.IsActive,
	}
}

// CustomerModelFromDomain creates a persistence model from a domain customer
func CustomerModelFromDomain(c *crm.Customer) *CustomerModel {
	m := &CustomerModel{
		Name:     c.Name,
		Email:    c.Email,
		Phone:    c.Phone,
		IsActive: c.IsActive,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// CampaignModel is the persistence model for crm.Campaign
type CampaignModel struct {
	BaseModel
	Name            string          `gorm:"size:200;not null"`
	MessageTemplate string          `gorm:"type:text"`
	AudienceType    string          `gorm:"size:50;not null"`
	AudienceSize    int             `gorm:"not null"`
	Status          string          `gorm:"size:20;not null;index"`
	CreatedBy       string          `gorm:"size:100;not null"`
	StartDate       *time.Time
	EndDate         *time.Time
	Budget          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (CampaignModel) TableName() string {
	return "campaigns"
}

// ToDomain converts the model to a domain campaign
func (m *CampaignModel) ToDomain() *crm.Campaign {
	return &crm.Campaign{
		BaseAggregateRoot: aggregateRoot(m.BaseModel),
		Name:              m.Name,
		MessageTemplate:   m.MessageTemplate,
		AudienceType:      crm.AudienceType(m.AudienceType),
		AudienceSize:      m.AudienceSize,
		Status:            crm.CampaignStatus(m.Status),
		CreatedBy:         m.CreatedBy,
		StartDate:         m.StartDate,
		EndDate:           m.EndDate,
		Budget:            m.Budget,
	}
}

// CampaignModelFromDomain creates a persistence model from a domain campaign
func CampaignModelFromDomain(c *crm.Campaign) *CampaignModel {
	m := &CampaignModel{
		Name:            c.Name,
		MessageTemplate: c.MessageTemplate,
		AudienceType:    string(c.AudienceType),
		AudienceSize:    c.AudienceSize,
		Status:          string(c.Status),
		CreatedBy:       c.CreatedBy,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		Budget:          c.Budget,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// OrderModel is the persistence model for crm.Order
type OrderModel struct {
	BaseModel
	CustomerID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	CampaignID      *uuid.UUID      `gorm:"type:uuid;index"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Status          string          `gorm:"size:20;not null;index"`
	ProductCategory string          `gorm:"size:100"`
	OrderDate       time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the model to a domain order
func (m *OrderModel) ToDomain() *crm.Order {
	return &crm.Order{
		BaseAggregateRoot: aggregateRoot(m.BaseModel),
		CustomerID:        m.CustomerID,
		CampaignID:        m.CampaignID,
		Amount:            m.Amount,
		Status:            crm.OrderStatus(m.Status),
		ProductCategory:   m.ProductCategory,
		OrderDate:         m.OrderDate,
	}
}

// OrderModelFromDomain creates a persistence model from a domain order
func OrderModelFromDomain(o *crm.Order) *OrderModel {
	m := &OrderModel{
		CustomerID:      o.CustomerID,
		CampaignID:      o.CampaignID,
		Amount:          o.Amount,
		Status:          string(o.Status),
		ProductCategory: o.ProductCategory,
		OrderDate:       o.OrderDate,
	}
	m.FromDomainBaseEntity(o.BaseEntity)
	return m
}
