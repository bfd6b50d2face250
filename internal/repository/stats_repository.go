package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// StatsRepository aggregates dashboard counters.
type StatsRepository interface {
	TicketsByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
	CustomersByStatus(ctx context.Context) (map[domain.CustomerStatus]int, error)
	AgentsByStatus(ctx context.Context) (map[domain.AgentStatus]int, error)
}

type statsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) TicketsByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	return countByStatus[domain.TicketStatus](ctx, r.pool, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
}

func (r *statsRepository) CustomersByStatus(ctx context.Context) (map[domain.CustomerStatus]int, error) {
	return countByStatus[domain.CustomerStatus](ctx, r.pool, `SELECT status, COUNT(*) FROM customers GROUP BY status`)
}

func (r *statsRepository) AgentsByStatus(ctx context.Context) (map[domain.AgentStatus]int, error) {
	return countByStatus[domain.AgentStatus](ctx, r.pool, `SELECT status, COUNT(*) FROM agents GROUP BY status`)
}

func countByStatus[S ~string](ctx context.Context, pool *pgxpool.Pool, query string) (map[S]int, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	counts := map[S]int{}
	var (
		status string
		n      int
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &n}, func() error {
		counts[S(status)] = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
