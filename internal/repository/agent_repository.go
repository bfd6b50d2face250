package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// AgentRepository handles persistence for support operators.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	Update(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id int64) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
	GetByFullName(ctx context.Context, fullName string) (*domain.Agent, error)
	List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error)
}

// AgentFilter defines query params for agent listing.
type AgentFilter struct {
	Role   *domain.AgentRole
	Status *domain.AgentStatus
	Limit  int
	Offset int
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `id, full_name, email, password_hash, role, status, created_at, updated_at`

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (full_name, email, password_hash, role, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		agent.FullName,
		agent.Email,
		agent.PasswordHash,
		agent.Role,
		agent.Status,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
}

func (r *agentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	const query = `
        UPDATE agents
        SET full_name=$1, email=$2, password_hash=$3, role=$4, status=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.pool.Exec(ctx, query,
		agent.FullName,
		agent.Email,
		agent.PasswordHash,
		agent.Role,
		agent.Status,
		agent.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id int64) (*domain.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=$1`, id))
}

func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE LOWER(email)=LOWER($1)`
	return scanAgent(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *agentRepository) GetByFullName(ctx context.Context, fullName string) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE full_name=$1 ORDER BY id LIMIT 1`
	return scanAgent(r.pool.QueryRow(ctx, query, fullName))
}

func (r *agentRepository) List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM agents WHERE %s ORDER BY full_name ASC LIMIT %d OFFSET %d`,
		agentColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(
		&agent.ID,
		&agent.FullName,
		&agent.Email,
		&agent.PasswordHash,
		&agent.Role,
		&agent.Status,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
