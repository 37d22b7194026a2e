package crm

import (
	"regexp"
	"strings"

	"github.com/minicrm/backend/internal/domain/shared"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-\(\)\+]+$`)
)

// Customer is a person or business that places orders
type Customer struct {
	shared.BaseAggregateRoot
	Name     string
	Email    string
	Phone    string
	IsActive bool
}

// NewCustomer creates an active customer. The email is stored lower-cased.
func NewCustomer(name, email, phone string) (*Customer, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if err := validateCustomerName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePhone(phone); err != nil {
		return nil, err
	}

	c := &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Email:             email,
		Phone:             phone,
		IsActive:          true,
	}
	c.AddDomainEvent(NewCustomerMutation(c.ID, ChangeCreated))
	return c, nil
}

// UpdateProfile replaces the customer's name and phone
func (c *Customer) UpdateProfile(name, phone string) error {
	name = strings.TrimSpace(name)
	if err := validateCustomerName(name); err != nil {
		return err
	}
	if err := validatePhone(phone); err != nil {
		return err
	}
	c.Name = name
	c.Phone = phone
	c.Touch()
	c.AddDomainEvent(NewCustomerMutation(c.ID, ChangeUpdated))
	return nil
}

// ChangeEmail replaces the customer's email
func (c *Customer) ChangeEmail(email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if email == c.Email {
		return nil
	}
	c.Email = email
	c.Touch()
	c.AddDomainEvent(NewCustomerMutation(c.ID, ChangeUpdated))
	return nil
}

// SetActive activates or deactivates the customer
func (c *Customer) SetActive(active bool) {
	if c.IsActive == active {
		return
	}
	c.IsActive = active
	c.Touch()
	c.AddDomainEvent(NewCustomerMutation(c.ID, ChangeUpdated))
}

// MarkDeleted records the deletion event. The caller removes the record.
func (c *Customer) MarkDeleted() {
	c.AddDomainEvent(NewCustomerMutation(c.ID, ChangeDeleted))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCustomerName(name string) error {
	if name == "" {
		return shared.ErrInvalidInput.WithMessage("Customer name cannot be empty")
	}
	if len(name) > 200 {
		return shared.ErrInvalidInput.WithMessage("Customer name cannot exceed 200 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if len(email) > 200 {
		return shared.ErrInvalidInput.WithMessage("Email cannot exceed 200 characters")
	}
	if !emailPattern.MatchString(email) {
		return shared.ErrInvalidInput.WithMessage("Invalid email format")
	}
	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if len(phone) > 50 {
		return shared.ErrInvalidInput.WithMessage("Phone number cannot exceed 50 characters")
	}
	if !phonePattern.MatchString(phone) {
		return shared.ErrInvalidInput.WithMessage("Invalid phone number format")
	}
	return nil
}
