package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-helpdesk/internal/api/dto"
	"github.com/spec-kit/crm-helpdesk/internal/auth"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
	"github.com/spec-kit/crm-helpdesk/internal/service"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// TicketsHandler exposes ticket endpoints for agents.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(svc *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: svc}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListTickets(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	resp := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		resp = append(resp, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), currentAgent(c), service.TicketCreateInput{
		Title:           req.Title,
		Description:     req.Description,
		Priority:        req.Priority,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		AssignedTo:      req.AssignedTo,
		CreateCustomer:  req.CreateCustomer,
		CustomerPhone:   req.CustomerPhone,
		CustomerCompany: req.CustomerCompany,

		Software: req.Software,
		Group:    req.Group,
		Type:     req.Type,

		RapportoDanea:                 req.RapportoDanea,
		IDAssistenza:                  req.IDAssistenza,
		PasswordTeleassistenza:        req.PasswordTeleassistenza,
		NumeroRichiestaTeleassistenza: req.NumeroRichiestaTeleassistenza,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return notFoundAs(err, "ticket")
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	ticket, changes, err := h.service.UpdateTicket(c.UserContext(), currentAgent(c), id, service.TicketUpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Status:        req.Status,
		Priority:      req.Priority,
		AssignedTo:    req.AssignedTo,

		Software: req.Software,
		Group:    req.Group,
		Type:     req.Type,

		RapportoDanea:                 req.RapportoDanea,
		IDAssistenza:                  req.IDAssistenza,
		PasswordTeleassistenza:        req.PasswordTeleassistenza,
		NumeroRichiestaTeleassistenza: req.NumeroRichiestaTeleassistenza,
	})
	if err != nil {
		return notFoundAs(err, "ticket")
	}
	if changes == nil {
		changes = []string{}
	}
	return c.JSON(fiber.Map{"data": dto.TicketUpdateResponse{Ticket: ticketResponse(ticket), Changes: changes}})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), id); err != nil {
		return notFoundAs(err, "ticket")
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListMessages GET /api/tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	messages, err := h.service.ListMessages(c.UserContext(), id)
	if err != nil {
		return notFoundAs(err, "ticket")
	}
	resp := make([]dto.TicketMessageResponse, 0, len(messages))
	for i := range messages {
		resp = append(resp, ticketMessageResponse(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// AddMessage POST /api/tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.AddMessage(c.UserContext(), currentAgent(c), id, service.MessageInput{
		SenderType:  req.SenderType,
		SenderName:  req.SenderName,
		SenderEmail: req.SenderEmail,
		Text:        req.MessageText,
		IsInternal:  req.IsInternal,
	})
	if err != nil {
		return notFoundAs(err, "ticket")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketMessageResponse(msg)})
}

// ListHistory GET /api/tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListHistory(c.UserContext(), id)
	if err != nil {
		return notFoundAs(err, "ticket")
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := domain.TicketStatus(status)
		filter.Status = &s
	}
	if priority := strings.TrimSpace(c.Query("priority")); priority != "" {
		p := domain.TicketPriority(priority)
		filter.Priority = &p
	}
	if customer := c.Query("customer_id"); customer != "" {
		if id, err := strconv.ParseInt(customer, 10, 64); err == nil {
			filter.CustomerID = &id
		}
	}
	if assigned := strings.TrimSpace(c.Query("assigned_to")); assigned != "" {
		filter.AssignedTo = &assigned
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		filter.SearchTerm = &search
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:            ticket.ID,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Status:        ticket.Status,
		Priority:      ticket.Priority,
		CustomerID:    ticket.CustomerID,
		CustomerName:  ticket.CustomerName,
		CustomerEmail: ticket.CustomerEmail,
		AssignedTo:    ticket.AssignedTo,

		Software: ticket.Software,
		Group:    ticket.Group,
		Type:     ticket.Type,

		RapportoDanea:                 ticket.RapportoDanea,
		IDAssistenza:                  ticket.IDAssistenza,
		PasswordTeleassistenza:        ticket.PasswordTeleassistenza,
		NumeroRichiestaTeleassistenza: ticket.NumeroRichiestaTeleassistenza,

		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}

func ticketMessageResponse(msg *domain.TicketMessage) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:          msg.ID,
		TicketID:    msg.TicketID,
		SenderType:  msg.SenderType,
		SenderName:  msg.SenderName,
		SenderEmail: msg.SenderEmail,
		MessageText: msg.MessageText,
		IsInternal:  msg.IsInternal,
		CreatedAt:   msg.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedBy:     entry.ChangedBy,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}

func currentAgent(c *fiber.Ctx) *domain.Agent {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil
	}
	return principal.Agent
}
