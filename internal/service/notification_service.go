package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/events"
	"github.com/spec-kit/crm-helpdesk/internal/inbound"
	"github.com/spec-kit/crm-helpdesk/internal/notify"
	"github.com/spec-kit/crm-helpdesk/internal/observability"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
)

// Notification kinds recorded in metrics.
const (
	notifyKindNewTicket = "new_ticket"
	notifyKindUpdate    = "ticket_updated"
	notifyKindCustomer  = "message_to_customer"
	notifyKindAgents    = "message_to_agents"
)

// NotificationSettings supplies relay settings and templates.
type NotificationSettings interface {
	SMTP(ctx context.Context) (config.SMTPConfig, error)
	Template(ctx context.Context, t domain.TemplateType) (domain.EmailTemplate, error)
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     notify.Sender
	settings   NotificationSettings
	agents     repository.AgentRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NotificationDependencies bundles collaborators for notifications.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Sender     notify.Sender
	Settings   NotificationSettings
	AgentRepo  repository.AgentRepository
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		sender:     deps.Sender,
		settings:   deps.Settings,
		agents:     deps.AgentRepo,
		metrics:    deps.Metrics,
		logger:     logger.Named("notifications"),
		cfg:        deps.Config,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return n.NotifyNewTicket(ctx, &payload.Ticket)
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketUpdatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return n.NotifyTicketUpdated(ctx, &payload.Ticket, payload.Description)
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.Message.IsInternal {
		return nil
	}
	switch payload.Message.SenderType {
	case domain.SenderTypeAgent:
		return n.NotifyMessageToCustomer(ctx, &payload.Ticket, &payload.Message)
	case domain.SenderTypeCustomer:
		return n.NotifyMessageToAgents(ctx, &payload.Ticket, &payload.Message)
	}
	return nil
}

// NotifyNewTicket sends the creation confirmation to the ticket's customer.
func (n *NotificationService) NotifyNewTicket(ctx context.Context, ticket *domain.Ticket) error {
	return n.sendTemplate(ctx, notifyKindNewTicket, domain.TemplateNewTicket, ticket, "")
}

// NotifyTicketUpdated tells the customer what changed.
func (n *NotificationService) NotifyTicketUpdated(ctx context.Context, ticket *domain.Ticket, change string) error {
	return n.sendTemplate(ctx, notifyKindUpdate, domain.TemplateUpdateTicket, ticket, change)
}

// NotifyMessageToCustomer forwards a public agent message to the customer.
// The body ends with the ticket trailer that inbound parsing strips again.
func (n *NotificationService) NotifyMessageToCustomer(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) error {
	if msg.IsInternal {
		return nil
	}
	if strings.TrimSpace(ticket.CustomerEmail) == "" {
		return n.finish(notifyKindCustomer, ticket.ID, errors.New("ticket has no customer email"))
	}
	body := fmt.Sprintf(`Gentile %s,

%s

---
Ticket ID: #%d
Titolo: %s
Stato: %s
Priorità: %s

Per rispondere, basta rispondere a questa email.

Cordiali saluti,
Il Team di Supporto`, ticket.CustomerName, msg.MessageText, ticket.ID, ticket.Title, ticket.Status, ticket.Priority)

	err := n.deliver(ctx, func(ctx context.Context, cfg config.SMTPConfig) error {
		return n.sender.Send(ctx, cfg, notify.Email{
			To:      []string{ticket.CustomerEmail},
			ReplyTo: cfg.FromEmail,
			Subject: fmt.Sprintf("Re: %s - %s", inbound.TicketReference(ticket.ID), ticket.Title),
			Text:    body,
		})
	})
	return n.finish(notifyKindCustomer, ticket.ID, err)
}

// NotifyMessageToAgents mails a customer message to the assigned agent and
// every approved admin. Each recipient gets a separate message.
func (n *NotificationService) NotifyMessageToAgents(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) error {
	recipients := n.agentRecipients(ctx, ticket)
	if len(recipients) == 0 {
		n.logger.Info("no agents to notify", zap.Int64("ticket_id", ticket.ID))
		return nil
	}
	assigned := "Non assegnato"
	if ticket.AssignedTo != nil && *ticket.AssignedTo != "" {
		assigned = *ticket.AssignedTo
	}
	body := fmt.Sprintf(`Nuovo messaggio ricevuto per il ticket #%d.

Da: %s (%s)
Data: %s

Messaggio:
%s

---
Dettagli Ticket:
ID: #%d
Titolo: %s
Cliente: %s (%s)
Stato: %s
Priorità: %s
Assegnato a: %s

Accedi al CRM per rispondere al cliente.

Il Sistema CRM`, ticket.ID, msg.SenderName, msg.SenderEmail, msg.CreatedAt.Format(time.RFC3339),
		msg.MessageText, ticket.ID, ticket.Title, ticket.CustomerName, ticket.CustomerEmail,
		ticket.Status, ticket.Priority, assigned)
	subject := fmt.Sprintf("Nuovo Messaggio Cliente - %s", inbound.TicketReference(ticket.ID))

	err := n.deliver(ctx, func(ctx context.Context, cfg config.SMTPConfig) error {
		var errs []error
		for _, to := range recipients {
			if err := n.sender.Send(ctx, cfg, notify.Email{To: []string{to}, Subject: subject, Text: body}); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", to, err))
			}
		}
		return errors.Join(errs...)
	})
	return n.finish(notifyKindAgents, ticket.ID, err)
}

func (n *NotificationService) agentRecipients(ctx context.Context, ticket *domain.Ticket) []string {
	seen := map[string]struct{}{}
	var recipients []string
	add := func(email string) {
		key := strings.ToLower(strings.TrimSpace(email))
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		recipients = append(recipients, strings.TrimSpace(email))
	}

	if n.agents == nil {
		return nil
	}
	if ticket.AssignedTo != nil && strings.TrimSpace(*ticket.AssignedTo) != "" {
		agent, err := n.agents.GetByFullName(ctx, *ticket.AssignedTo)
		if err != nil {
			n.logger.Warn("assigned agent lookup failed", zap.String("assigned_to", *ticket.AssignedTo), zap.Error(err))
		} else {
			add(agent.Email)
		}
	}
	role := domain.AgentRoleAdmin
	status := domain.AgentStatusApproved
	admins, err := n.agents.List(ctx, repository.AgentFilter{Role: &role, Status: &status})
	if err != nil {
		n.logger.Warn("admin lookup failed", zap.Error(err))
	}
	for _, admin := range admins {
		add(admin.Email)
	}
	return recipients
}

func (n *NotificationService) sendTemplate(ctx context.Context, kind string, t domain.TemplateType, ticket *domain.Ticket, change string) error {
	if strings.TrimSpace(ticket.CustomerEmail) == "" {
		return n.finish(kind, ticket.ID, errors.New("ticket has no customer email"))
	}
	err := n.deliver(ctx, func(ctx context.Context, cfg config.SMTPConfig) error {
		tpl, err := n.settings.Template(ctx, t)
		if err != nil {
			return err
		}
		vars := notify.TicketVars(ticket, change)
		return n.sender.Send(ctx, cfg, notify.Email{
			To:      []string{ticket.CustomerEmail},
			Subject: notify.Render(tpl.Subject, vars),
			Text:    notify.Render(tpl.Body, vars),
		})
	})
	return n.finish(kind, ticket.ID, err)
}

// deliver loads the relay settings and runs send under the notification deadline.
func (n *NotificationService) deliver(ctx context.Context, send func(context.Context, config.SMTPConfig) error) error {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout())
	defer cancel()

	cfg, err := n.settings.SMTP(ctx)
	if err != nil {
		return err
	}
	if !cfg.Configured() {
		return notify.ErrNotConfigured
	}
	return send(ctx, cfg)
}

func (n *NotificationService) finish(kind string, ticketID int64, err error) error {
	switch {
	case err == nil:
		n.metrics.RecordNotification(kind, "sent")
		n.logger.Info("notification sent", zap.String("kind", kind), zap.Int64("ticket_id", ticketID))
	case errors.Is(err, notify.ErrNotConfigured):
		n.metrics.RecordNotification(kind, "skipped")
		n.logger.Warn("notification skipped; smtp not configured", zap.String("kind", kind), zap.Int64("ticket_id", ticketID))
	default:
		n.metrics.RecordNotification(kind, "failed")
		n.logger.Warn("notification failed", zap.String("kind", kind), zap.Int64("ticket_id", ticketID), zap.Error(err))
	}
	return err
}
