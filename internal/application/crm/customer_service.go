package crm

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

// CustomerService handles customer-related business operations
type CustomerService struct {
	serviceBase
	customerRepo crm.CustomerRepository
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customerRepo crm.CustomerRepository, opts ...Option) *CustomerService {
	return &CustomerService{
		serviceBase:  newServiceBase(opts),
		customerRepo: customerRepo,
	}
}

// Create creates a new active customer
func (s *CustomerService) Create(ctx context.Context, req CreateCustomerRequest) (*CustomerResponse, error) {
	exists, err := s.customerRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.ErrAlreadyExists.WithMessage("Customer with this email already exists")
	}

	customer, err := crm.NewCustomer(req.Name, req.Email, req.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.customerRepo.Save(ctx, customer); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, customer)

	s.logger.Info("Customer created", zap.String("customer_id", customer.ID.String()))
	response := ToCustomerResponse(customer)
	return &response, nil
}

// GetByID retrieves a customer by ID
func (s *CustomerService) GetByID(ctx context.Context, id uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToCustomerResponse(customer)
	return &response, nil
}

// List retrieves a page of customers
func (s *CustomerService) List(ctx context.Context, filter CustomerListFilter) ([]CustomerResponse, int64, error) {
	domainFilter := crm.CustomerFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		}.Normalize(),
		ActiveOnly: filter.ActiveOnly,
	}

	customers, total, err := s.customerRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToCustomerResponses(customers), total, nil
}

// Update applies the non-nil fields of req
func (s *CustomerService) Update(ctx context.Context, id uuid.UUID, req UpdateCustomerRequest) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil || req.Phone != nil {
		name, phone := customer.Name, customer.Phone
		if req.Name != nil {
			name = *req.Name
		}
		if req.Phone != nil {
			phone = *req.Phone
		}
		if err := customer.UpdateProfile(name, phone); err != nil {
			return nil, err
		}
	}

	if req.Email != nil {
		existing, err := s.customerRepo.FindByEmail(ctx, *req.Email)
		switch {
		case err == nil && existing.ID != customer.ID:
			return nil, shared.ErrAlreadyExists.WithMessage("Customer with this email already exists")
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
		if err := customer.ChangeEmail(*req.Email); err != nil {
			return nil, err
		}
	}

	if req.IsActive != nil {
		customer.SetActive(*req.IsActive)
	}

	if len(customer.GetDomainEvents()) > 0 {
		if err := s.customerRepo.Save(ctx, customer); err != nil {
			return nil, err
		}
		s.publishDomainEvents(ctx, customer)
	}

	response := ToCustomerResponse(customer)
	return &response, nil
}

// SetActive activates or deactivates a customer
func (s *CustomerService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*CustomerResponse, error) {
	return s.Update(ctx, id, UpdateCustomerRequest{IsActive: &active})
}

// Delete removes a customer. Customers with orders are rejected with
// shared.ErrInvalidState.
func (s *CustomerService) Delete(ctx context.Context, id uuid.UUID) error {
	customer, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.customerRepo.Delete(ctx, id); err != nil {
		return err
	}
	customer.MarkDeleted()
	s.publishDomainEvents(ctx, customer)

	s.logger.Info("Customer deleted", zap.String("customer_id", id.String()))
	return nil
}
