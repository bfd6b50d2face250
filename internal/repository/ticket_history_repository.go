package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// TicketHistoryRepository is the append-only audit trail of ticket changes.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

const historyColumns = `id, ticket_id, changed_by_type, changed_by, change_type, old_value, new_value, created_at`

func (r *ticketHistoryRepository) Create(ctx context.Context, h *domain.TicketHistory) error {
	return r.pool.QueryRow(ctx, `
        INSERT INTO ticket_history (ticket_id, changed_by_type, changed_by, change_type, old_value, new_value)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`,
		h.TicketID, h.ChangedByType, h.ChangedBy, h.ChangeType, h.OldValue, h.NewValue,
	).Scan(&h.ID, &h.CreatedAt)
}

// ListByTicket returns entries oldest first; ties on created_at keep insert order.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+historyColumns+` FROM ticket_history WHERE ticket_id = $1 ORDER BY created_at, id`,
		ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketHistory, error) {
		return scanHistory(row)
	})
}

func scanHistory(row pgx.Row) (domain.TicketHistory, error) {
	var h domain.TicketHistory
	err := row.Scan(&h.ID, &h.TicketID, &h.ChangedByType, &h.ChangedBy, &h.ChangeType, &h.OldValue, &h.NewValue, &h.CreatedAt)
	return h, err
}
