package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// EmailTemplateRepository stores operator overrides of notification templates.
type EmailTemplateRepository interface {
	Get(ctx context.Context, templateType domain.TemplateType) (*domain.EmailTemplate, error)
	List(ctx context.Context) ([]domain.EmailTemplate, error)
	Upsert(ctx context.Context, tpl *domain.EmailTemplate) error
}

type emailTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewEmailTemplateRepository builds repository.
func NewEmailTemplateRepository(pool *pgxpool.Pool) EmailTemplateRepository {
	return &emailTemplateRepository{pool: pool}
}

func (r *emailTemplateRepository) Get(ctx context.Context, templateType domain.TemplateType) (*domain.EmailTemplate, error) {
	const query = `SELECT type, subject, body, updated_at FROM email_templates WHERE type=$1`
	var tpl domain.EmailTemplate
	if err := r.pool.QueryRow(ctx, query, templateType).Scan(&tpl.Type, &tpl.Subject, &tpl.Body, &tpl.UpdatedAt); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *emailTemplateRepository) List(ctx context.Context) ([]domain.EmailTemplate, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, subject, body, updated_at FROM email_templates ORDER BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EmailTemplate
	for rows.Next() {
		var tpl domain.EmailTemplate
		if err := rows.Scan(&tpl.Type, &tpl.Subject, &tpl.Body, &tpl.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

func (r *emailTemplateRepository) Upsert(ctx context.Context, tpl *domain.EmailTemplate) error {
	const query = `
        INSERT INTO email_templates (type, subject, body)
        VALUES ($1,$2,$3)
        ON CONFLICT (type) DO UPDATE SET subject=EXCLUDED.subject, body=EXCLUDED.body, updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, tpl.Type, tpl.Subject, tpl.Body).Scan(&tpl.UpdatedAt)
}
