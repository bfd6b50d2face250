package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings types stored in email_settings.
const (
	SettingsIMAP = "imap"
	SettingsSMTP = "smtp"
)

// EmailSettingsRepository stores the raw JSON mail settings documents.
type EmailSettingsRepository interface {
	Get(ctx context.Context, settingsType string) ([]byte, error)
	Save(ctx context.Context, settingsType string, raw []byte) error
}

type emailSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewEmailSettingsRepository builds repository.
func NewEmailSettingsRepository(pool *pgxpool.Pool) EmailSettingsRepository {
	return &emailSettingsRepository{pool: pool}
}

// Get returns the active document, or pgx.ErrNoRows.
func (r *emailSettingsRepository) Get(ctx context.Context, settingsType string) ([]byte, error) {
	const query = `
        SELECT config::text FROM email_settings
        WHERE type=$1 AND is_active
        ORDER BY updated_at DESC LIMIT 1`
	var raw string
	if err := r.pool.QueryRow(ctx, query, settingsType).Scan(&raw); err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

func (r *emailSettingsRepository) Save(ctx context.Context, settingsType string, raw []byte) error {
	const query = `
        INSERT INTO email_settings (type, config, is_active)
        VALUES ($1, $2::jsonb, TRUE)
        ON CONFLICT (type) DO UPDATE SET config=EXCLUDED.config, is_active=TRUE, updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, settingsType, string(raw))
	return err
}
