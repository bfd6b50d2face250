package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/events"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows initiated by agents.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	customers  repository.CustomerRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.TicketMessageRepository
	CustomerRepo repository.CustomerRepository
	HistoryRepo  repository.TicketHistoryRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title           string
	Description     string
	Priority        domain.TicketPriority
	CustomerID      *int64
	CustomerName    string
	CustomerEmail   string
	AssignedTo      *string
	CreateCustomer  bool
	CustomerPhone   string
	CustomerCompany string

	Software string
	Group    string
	Type     string

	RapportoDanea                 string
	IDAssistenza                  string
	PasswordTeleassistenza        string
	NumeroRichiestaTeleassistenza string
}

// TicketUpdateInput carries the fields to change; nil leaves a field as is.
type TicketUpdateInput struct {
	Title         *string
	Description   *string
	CustomerName  *string
	CustomerEmail *string
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	AssignedTo    *string

	Software *string
	Group    *string
	Type     *string

	RapportoDanea                 *string
	IDAssistenza                  *string
	PasswordTeleassistenza        *string
	NumeroRichiestaTeleassistenza *string
}

// MessageInput describes a message posted through the UI.
type MessageInput struct {
	SenderType  domain.SenderType
	SenderName  string
	SenderEmail string
	Text        string
	IsInternal  bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		customers:  deps.CustomerRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("tickets"),
	}
}

// CreateTicket creates a ticket, optionally creating its customer first.
func (s *TicketService) CreateTicket(ctx context.Context, agent *domain.Agent, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errorutil.NewValidationError("title is required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, errorutil.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	customerID := input.CustomerID
	if customerID == nil && input.CreateCustomer {
		customer := &domain.Customer{
			Name:    strings.TrimSpace(input.CustomerName),
			Email:   strings.TrimSpace(input.CustomerEmail),
			Phone:   input.CustomerPhone,
			Company: input.CustomerCompany,
			Status:  domain.CustomerStatusActive,
		}
		if customer.Email == "" {
			return nil, errorutil.NewValidationError("customer_email is required", nil)
		}
		if err := s.customers.Create(ctx, customer); err != nil {
			return nil, err
		}
		customerID = &customer.ID
	}

	ticket := &domain.Ticket{
		Title:                         title,
		Description:                   strings.TrimSpace(input.Description),
		Status:                        domain.TicketStatusOpen,
		Priority:                      priority,
		CustomerID:                    customerID,
		CustomerName:                  strings.TrimSpace(input.CustomerName),
		CustomerEmail:                 strings.TrimSpace(input.CustomerEmail),
		AssignedTo:                    input.AssignedTo,
		Software:                      input.Software,
		Group:                         input.Group,
		Type:                          input.Type,
		RapportoDanea:                 input.RapportoDanea,
		IDAssistenza:                  input.IDAssistenza,
		PasswordTeleassistenza:        input.PasswordTeleassistenza,
		NumeroRichiestaTeleassistenza: input.NumeroRichiestaTeleassistenza,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, agentActor(agent),
		events.TicketCreatedPayload{Ticket: *ticket}))
	return ticket, nil
}

// ListTickets returns tickets matching filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, filter)
}

// GetTicket fetches a ticket.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// UpdateTicket applies input and returns the ticket with the names of the
// fields that actually changed. Nothing is written when nothing changed.
func (s *TicketService) UpdateTicket(ctx context.Context, agent *domain.Agent, id int64, input TicketUpdateInput) (*domain.Ticket, []string, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, nil, errorutil.NewValidationError("invalid status", map[string]any{"status": *input.Status})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, nil, errorutil.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
	}

	before := *ticket
	var changes []string
	setString := func(field string, dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changes = append(changes, field)
		}
	}
	setString("title", &ticket.Title, input.Title)
	setString("description", &ticket.Description, input.Description)
	setString("customer_name", &ticket.CustomerName, input.CustomerName)
	setString("customer_email", &ticket.CustomerEmail, input.CustomerEmail)
	if input.Status != nil && ticket.Status != *input.Status {
		ticket.Status = *input.Status
		changes = append(changes, "status")
	}
	if input.Priority != nil && ticket.Priority != *input.Priority {
		ticket.Priority = *input.Priority
		changes = append(changes, "priority")
	}
	if input.AssignedTo != nil && derefString(ticket.AssignedTo) != *input.AssignedTo {
		assigned := *input.AssignedTo
		if assigned == "" {
			ticket.AssignedTo = nil
		} else {
			ticket.AssignedTo = &assigned
		}
		changes = append(changes, "assigned_to")
	}
	setString("software", &ticket.Software, input.Software)
	setString("group", &ticket.Group, input.Group)
	setString("type", &ticket.Type, input.Type)
	setString("rapporto_danea", &ticket.RapportoDanea, input.RapportoDanea)
	setString("id_assistenza", &ticket.IDAssistenza, input.IDAssistenza)
	setString("password_teleassistenza", &ticket.PasswordTeleassistenza, input.PasswordTeleassistenza)
	setString("numero_richiesta_teleassistenza", &ticket.NumeroRichiestaTeleassistenza, input.NumeroRichiestaTeleassistenza)

	if len(changes) == 0 {
		return ticket, nil, nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, err
	}

	actor := agentName(agent)
	if err := recordStatusChange(ctx, s.history, domain.HistoryActorAgent, actor, ticket.ID, before.Status, ticket.Status, ""); err != nil {
		s.logger.Warn("history write failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
	if err := recordPriorityChange(ctx, s.history, actor, ticket.ID, before.Priority, ticket.Priority); err != nil {
		s.logger.Warn("history write failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
	if err := recordAssigneeChange(ctx, s.history, actor, ticket.ID, before.AssignedTo, ticket.AssignedTo); err != nil {
		s.logger.Warn("history write failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketUpdated, ticket.ID, agentActor(agent),
		events.TicketUpdatedPayload{
			Ticket:      *ticket,
			Changes:     changes,
			Description: UpdateSummary(changes),
		}))
	return ticket, changes, nil
}

// UpdateSummary is the customer-facing description of changed fields.
func UpdateSummary(changes []string) string {
	return fmt.Sprintf("Il ticket è stato aggiornato con i seguenti campi: %s", strings.Join(changes, ", "))
}

// DeleteTicket removes a ticket and its thread.
func (s *TicketService) DeleteTicket(ctx context.Context, id int64) error {
	return s.tickets.Delete(ctx, id)
}

// ListMessages returns the ticket thread in chronological order.
func (s *TicketService) ListMessages(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticketID)
}

// AddMessage appends a message to a ticket thread.
func (s *TicketService) AddMessage(ctx context.Context, agent *domain.Agent, ticketID int64, input MessageInput) (*domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errorutil.NewValidationError("message_text is required", nil)
	}
	senderType := input.SenderType
	if senderType == "" {
		senderType = domain.SenderTypeAgent
	}
	switch senderType {
	case domain.SenderTypeAgent, domain.SenderTypeCustomer, domain.SenderTypeSystem:
	default:
		return nil, errorutil.NewValidationError("invalid sender_type", map[string]any{"sender_type": senderType})
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		SenderType:  senderType,
		SenderName:  strings.TrimSpace(input.SenderName),
		SenderEmail: strings.TrimSpace(input.SenderEmail),
		MessageText: text,
		IsInternal:  input.IsInternal,
	}
	if senderType == domain.SenderTypeAgent && agent != nil {
		if msg.SenderName == "" {
			msg.SenderName = agent.FullName
		}
		if msg.SenderEmail == "" {
			msg.SenderEmail = agent.Email
		}
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketMessageAdded, ticket.ID, agentActor(agent),
		events.TicketMessageAddedPayload{Ticket: *ticket, Message: *msg}))
	return msg, nil
}

// ListHistory returns audit entries for a ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func agentActor(agent *domain.Agent) events.Actor {
	return events.Actor{Type: domain.HistoryActorAgent, Name: agentName(agent)}
}

func agentName(agent *domain.Agent) string {
	if agent == nil {
		return ""
	}
	return agent.FullName
}

