package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-helpdesk/internal/api/dto"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/service"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// CustomersHandler exposes customer CRUD.
type CustomersHandler struct {
	service *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(svc *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{service: svc}
}

// List GET /api/customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 100)
	customers, err := h.service.List(c.UserContext(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	resp := make([]dto.CustomerResponse, 0, len(customers))
	for i := range customers {
		resp = append(resp, customerResponse(&customers[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Create POST /api/customers.
func (h *CustomersHandler) Create(c *fiber.Ctx) error {
	var req dto.CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	customer, err := h.service.Create(c.UserContext(), customerInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": customerResponse(customer)})
}

// Update PUT /api/customers/:id.
func (h *CustomersHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req dto.CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	customer, err := h.service.Update(c.UserContext(), id, customerInput(req))
	if err != nil {
		return notFoundAs(err, "customer")
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// Delete DELETE /api/customers/:id.
func (h *CustomersHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return notFoundAs(err, "customer")
	}
	return c.SendStatus(http.StatusNoContent)
}

func customerInput(req dto.CustomerRequest) service.CustomerInput {
	return service.CustomerInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Status:  req.Status,
	}
}

func customerResponse(customer *domain.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:        customer.ID,
		Name:      customer.Name,
		Email:     customer.Email,
		Phone:     customer.Phone,
		Company:   customer.Company,
		Status:    customer.Status,
		CreatedAt: customer.CreatedAt,
		UpdatedAt: customer.UpdatedAt,
	}
}
