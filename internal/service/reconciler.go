package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/inbound"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
)

const (
	noSubjectTitle     = "Email senza oggetto"
	noContentBody      = "Email senza contenuto"
	systemSenderName   = "Sistema"
	defaultNotifyLimit = 20 * time.Second
)

// Outcome is the result of reconciling one inbound message.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeAppended  Outcome = "appended"
	OutcomeDuplicate Outcome = "duplicate"
)

// Reconciliation describes what Reconcile did.
type Reconciliation struct {
	Outcome         Outcome
	TicketID        int64
	Reopened        bool
	CustomerCreated bool
}

// Acknowledger marks the source message as processed on the mailbox.
type Acknowledger func(ctx context.Context) error

// NewTicketNotifier sends the new-ticket confirmation.
type NewTicketNotifier interface {
	NotifyNewTicket(ctx context.Context, ticket *domain.Ticket) error
}

// Reconciler turns inbound messages into ticket mutations.
type Reconciler struct {
	tickets       repository.TicketRepository
	customers     repository.CustomerRepository
	messages      repository.TicketMessageRepository
	history       repository.TicketHistoryRepository
	notifier      NewTicketNotifier
	notifyTimeout time.Duration
	logger        *zap.Logger
}

// ReconcilerDependencies bundles collaborators for the reconciler.
type ReconcilerDependencies struct {
	TicketRepo    repository.TicketRepository
	CustomerRepo  repository.CustomerRepository
	MessageRepo   repository.TicketMessageRepository
	HistoryRepo   repository.TicketHistoryRepository
	Notifier      NewTicketNotifier
	NotifyTimeout time.Duration
	Logger        *zap.Logger
}

// NewReconciler constructs the reconciler.
func NewReconciler(deps ReconcilerDependencies) *Reconciler {
	timeout := deps.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		tickets:       deps.TicketRepo,
		customers:     deps.CustomerRepo,
		messages:      deps.MessageRepo,
		history:       deps.HistoryRepo,
		notifier:      deps.Notifier,
		notifyTimeout: timeout,
		logger:        logger.Named("reconciler"),
	}
}

// Reconcile appends msg to the ticket its subject references, or opens a new
// ticket. ack is called once the store mutation succeeded; a returned error
// means nothing was acknowledged and the message stays eligible for retry.
func (r *Reconciler) Reconcile(ctx context.Context, msg *domain.InboxMessage, ack Acknowledger) (Reconciliation, error) {
	if msg == nil {
		return Reconciliation{}, errors.New("nil inbound message")
	}
	if c := inbound.Classify(msg.Subject); c.Matched {
		ticket, err := r.tickets.GetByID(ctx, c.TicketID)
		switch {
		case err == nil:
			return r.appendReply(ctx, ticket, msg, ack)
		case errors.Is(err, pgx.ErrNoRows):
			r.logger.Info("referenced ticket not found; opening new ticket",
				zap.Int64("ticket_id", c.TicketID), zap.String("message_id", msg.MessageID))
		default:
			return Reconciliation{}, fmt.Errorf("load ticket %d: %w", c.TicketID, err)
		}
	}
	return r.createTicket(ctx, msg, ack)
}

func (r *Reconciler) appendReply(ctx context.Context, ticket *domain.Ticket, msg *domain.InboxMessage, ack Acknowledger) (Reconciliation, error) {
	result := Reconciliation{Outcome: OutcomeAppended, TicketID: ticket.ID}

	if msg.MessageID != "" {
		dup, err := r.messages.ExistsByEmailMessageID(ctx, ticket.ID, msg.MessageID)
		if err != nil {
			return Reconciliation{}, fmt.Errorf("dedup check: %w", err)
		}
		if dup {
			result.Outcome = OutcomeDuplicate
			r.acknowledge(ctx, ack, msg)
			return result, nil
		}
	}

	if ticket.Status == domain.TicketStatusResolved {
		result.Reopened = r.reopen(ctx, ticket, msg.SenderName)
	}

	reply := &domain.TicketMessage{
		TicketID:       ticket.ID,
		SenderType:     domain.SenderTypeCustomer,
		SenderName:     msg.SenderName,
		SenderEmail:    msg.SenderAddr,
		MessageText:    inbound.StripQuotedReply(msg.Body),
		IsInternal:     false,
		EmailMessageID: msg.MessageID,
	}
	if err := r.messages.Create(ctx, reply); err != nil {
		return Reconciliation{}, fmt.Errorf("append message to ticket %d: %w", ticket.ID, err)
	}

	r.acknowledge(ctx, ack, msg)
	r.logger.Info("reply appended",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("sender", msg.SenderAddr),
		zap.Bool("reopened", result.Reopened))
	return result, nil
}

// reopen moves a resolved ticket back to In Progress. Failures are logged and
// never block the reply from being stored.
func (r *Reconciler) reopen(ctx context.Context, ticket *domain.Ticket, senderName string) bool {
	oldStatus := ticket.Status
	if err := r.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress); err != nil {
		r.logger.Warn("auto-reopen failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	ticket.Status = domain.TicketStatusInProgress

	note := &domain.TicketMessage{
		TicketID:    ticket.ID,
		SenderType:  domain.SenderTypeSystem,
		SenderName:  systemSenderName,
		MessageText: fmt.Sprintf("Ticket riaperto automaticamente dopo una nuova risposta di %s", senderName),
		IsInternal:  true,
	}
	if err := r.messages.Create(ctx, note); err != nil {
		r.logger.Warn("auto-reopen note failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
	if err := recordStatusChange(ctx, r.history, domain.HistoryActorSystem, "", ticket.ID, oldStatus, ticket.Status, "auto_reopen"); err != nil {
		r.logger.Warn("auto-reopen history failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
	return true
}

func (r *Reconciler) createTicket(ctx context.Context, msg *domain.InboxMessage, ack Acknowledger) (Reconciliation, error) {
	result := Reconciliation{Outcome: OutcomeCreated}

	customer, err := r.customers.GetByEmail(ctx, msg.SenderAddr)
	if errors.Is(err, pgx.ErrNoRows) {
		customer = &domain.Customer{
			Name:   msg.SenderName,
			Email:  msg.SenderAddr,
			Status: domain.CustomerStatusActive,
		}
		if err := r.customers.Create(ctx, customer); err != nil {
			return Reconciliation{}, fmt.Errorf("create customer %s: %w", msg.SenderAddr, err)
		}
		result.CustomerCreated = true
	} else if err != nil {
		return Reconciliation{}, fmt.Errorf("lookup customer %s: %w", msg.SenderAddr, err)
	}

	title := strings.TrimSpace(msg.Subject)
	if title == "" {
		title = noSubjectTitle
	}
	description := inbound.StripQuotedReply(msg.Body)
	if description == "" {
		description = noContentBody
	}
	customerID := customer.ID
	ticket := &domain.Ticket{
		Title:         title,
		Description:   description,
		Status:        domain.TicketStatusOpen,
		Priority:      domain.TicketPriorityMedium,
		CustomerID:    &customerID,
		CustomerName:  msg.SenderName,
		CustomerEmail: msg.SenderAddr,
	}
	if err := r.tickets.Create(ctx, ticket); err != nil {
		return Reconciliation{}, fmt.Errorf("create ticket: %w", err)
	}
	result.TicketID = ticket.ID

	r.acknowledge(ctx, ack, msg)
	r.logger.Info("ticket created from email",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("sender", msg.SenderAddr),
		zap.Bool("new_customer", result.CustomerCreated))

	r.notifyNewTicket(ctx, ticket)
	return result, nil
}

func (r *Reconciler) notifyNewTicket(ctx context.Context, ticket *domain.Ticket) {
	if r.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, r.notifyTimeout)
	defer cancel()
	if err := r.notifier.NotifyNewTicket(nctx, ticket); err != nil {
		r.logger.Warn("new ticket notification failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (r *Reconciler) acknowledge(ctx context.Context, ack Acknowledger, msg *domain.InboxMessage) {
	if ack == nil {
		return
	}
	// The store write already happened; the flag must follow even if the
	// caller gave up meanwhile.
	if err := ack(context.WithoutCancel(ctx)); err != nil {
		r.logger.Warn("mark seen failed",
			zap.Uint32("imap_uid", msg.UID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
	}
}
