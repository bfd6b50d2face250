package service

import (
	"context"
	"strings"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// CustomerService manages customer records.
type CustomerService struct {
	customers repository.CustomerRepository
}

// NewCustomerService constructs the service.
func NewCustomerService(customers repository.CustomerRepository) *CustomerService {
	return &CustomerService{customers: customers}
}

// CustomerInput is the editable customer payload.
type CustomerInput struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Status  domain.CustomerStatus
}

// List returns customers ordered by name.
func (s *CustomerService) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	return s.customers.List(ctx, limit, offset)
}

// Create stores a new customer.
func (s *CustomerService) Create(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	customer := &domain.Customer{}
	if err := applyCustomerInput(customer, input); err != nil {
		return nil, err
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// Update replaces the editable fields of a customer.
func (s *CustomerService) Update(ctx context.Context, id int64, input CustomerInput) (*domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyCustomerInput(customer, input); err != nil {
		return nil, err
	}
	if err := s.customers.Update(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// Delete removes a customer. Tickets keep their denormalized contact data.
func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	return s.customers.Delete(ctx, id)
}

func applyCustomerInput(customer *domain.Customer, input CustomerInput) error {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return errorutil.NewValidationError("name and a valid email are required", nil)
	}
	status := input.Status
	if status == "" {
		status = domain.CustomerStatusActive
	}
	if status != domain.CustomerStatusActive && status != domain.CustomerStatusInactive {
		return errorutil.NewValidationError("invalid status", map[string]any{"status": status})
	}
	customer.Name = name
	customer.Email = email
	customer.Phone = strings.TrimSpace(input.Phone)
	customer.Company = strings.TrimSpace(input.Company)
	customer.Status = status
	return nil
}
