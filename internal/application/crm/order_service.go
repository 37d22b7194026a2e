package crm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

// OrderService handles order-related business operations
type OrderService struct {
	serviceBase
	orderRepo    crm.OrderRepository
	customerRepo crm.CustomerRepository
	campaignRepo crm.CampaignRepository
}

// NewOrderService creates a new OrderService
func NewOrderService(orderRepo crm.OrderRepository, customerRepo crm.CustomerRepository, campaignRepo crm.CampaignRepository, opts ...Option) *OrderService {
	return &OrderService{
		serviceBase:  newServiceBase(opts),
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		campaignRepo: campaignRepo,
	}
}

// Create records an order for an existing customer and, optionally, an
// existing campaign
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	if req.Amount == nil {
		return nil, shared.ErrInvalidInput.WithMessage("Order amount is required")
	}
	if err := s.ensureCustomer(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if err := s.ensureCampaign(ctx, req.CampaignID); err != nil {
		return nil, err
	}

	var orderDate time.Time
	if req.OrderDate != nil {
		orderDate = *req.OrderDate
	}
	order, err := crm.NewOrder(req.CustomerID, req.CampaignID, *req.Amount, crm.OrderStatus(req.Status), req.ProductCategory, orderDate)
	if err != nil {
		return nil, err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, order)

	s.logger.Debug("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", order.CustomerID.String()),
	)
	response := ToOrderResponse(order)
	return &response, nil
}

// GetByID retrieves an order by ID
func (s *OrderService) GetByID(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToOrderResponse(order)
	return &response, nil
}

// List retrieves a page of orders
func (s *OrderService) List(ctx context.Context, filter OrderListFilter) ([]OrderResponse, int64, error) {
	orderFilter := crm.OrderFilter{
		CustomerID: filter.CustomerID,
		CampaignID: filter.CampaignID,
	}
	if filter.Status != "" {
		status := crm.OrderStatus(filter.Status)
		orderFilter.Status = &status
	}
	page := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	}.Normalize()

	orders, total, err := s.orderRepo.FindAll(ctx, orderFilter, page)
	if err != nil {
		return nil, 0, err
	}
	return ToOrderResponses(orders), total, nil
}

// Update applies the non-nil fields of req
func (s *OrderService) Update(ctx context.Context, id uuid.UUID, req UpdateOrderRequest) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Amount != nil || req.ProductCategory != nil {
		amount, category := order.Amount, order.ProductCategory
		if req.Amount != nil {
			amount = *req.Amount
		}
		if req.ProductCategory != nil {
			category = *req.ProductCategory
		}
		if err := order.UpdateDetails(amount, category); err != nil {
			return nil, err
		}
	}

	if req.CustomerID != nil {
		if err := s.ensureCustomer(ctx, *req.CustomerID); err != nil {
			return nil, err
		}
		if err := order.Reassign(*req.CustomerID); err != nil {
			return nil, err
		}
	}

	switch {
	case req.DetachCampaign:
		order.Attribute(nil)
	case req.CampaignID != nil:
		if err := s.ensureCampaign(ctx, req.CampaignID); err != nil {
			return nil, err
		}
		order.Attribute(req.CampaignID)
	}

	if len(order.GetDomainEvents()) > 0 {
		if err := s.orderRepo.Save(ctx, order); err != nil {
			return nil, err
		}
		s.publishDomainEvents(ctx, order)
	}

	response := ToOrderResponse(order)
	return &response, nil
}

// ChangeStatus applies a status transition
func (s *OrderService) ChangeStatus(ctx context.Context, id uuid.UUID, req UpdateOrderStatusRequest) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := order.ChangeStatus(crm.OrderStatus(req.Status)); err != nil {
		return nil, err
	}
	if len(order.GetDomainEvents()) > 0 {
		if err := s.orderRepo.Save(ctx, order); err != nil {
			return nil, err
		}
		s.publishDomainEvents(ctx, order)
	}

	response := ToOrderResponse(order)
	return &response, nil
}

// Delete removes an order
func (s *OrderService) Delete(ctx context.Context, id uuid.UUID) error {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return err
	}
	order.MarkDeleted()
	s.publishDomainEvents(ctx, order)
	return nil
}

func (s *OrderService) ensureCustomer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.customerRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrInvalidInput.WithMessage("Customer does not exist")
		}
		return err
	}
	return nil
}

func (s *OrderService) ensureCampaign(ctx context.Context, id *uuid.UUID) error {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	if _, err := s.campaignRepo.FindByID(ctx, *id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrInvalidInput.WithMessage("Campaign does not exist")
		}
		return err
	}
	return nil
}
