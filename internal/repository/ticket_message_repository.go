package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// TicketMessageRepository manages ticket thread messages.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error)
	ExistsByEmailMessageID(ctx context.Context, ticketID int64, emailMessageID string) (bool, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_type, sender_name, sender_email, message_text, is_internal, email_message_id)
        VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''))
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderType,
		msg.SenderName,
		msg.SenderEmail,
		msg.MessageText,
		msg.IsInternal,
		msg.EmailMessageID,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, sender_type, sender_name, sender_email, message_text, is_internal,
               COALESCE(email_message_id, ''), created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderType,
			&msg.SenderName,
			&msg.SenderEmail,
			&msg.MessageText,
			&msg.IsInternal,
			&msg.EmailMessageID,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *ticketMessageRepository) ExistsByEmailMessageID(ctx context.Context, ticketID int64, emailMessageID string) (bool, error) {
	if emailMessageID == "" {
		return false, nil
	}
	const query = `SELECT EXISTS(SELECT 1 FROM ticket_messages WHERE ticket_id=$1 AND email_message_id=$2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ticketID, emailMessageID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
