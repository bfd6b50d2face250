package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/notify"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// SettingsService exposes stored mail settings and templates. Missing
// settings documents fall back to the process environment.
type SettingsService struct {
	settings        repository.EmailSettingsRepository
	templates       repository.EmailTemplateRepository
	mailboxDefaults config.MailboxConfig
	smtpDefaults    config.SMTPConfig
}

// SettingsDependencies bundles collaborators for settings.
type SettingsDependencies struct {
	SettingsRepo    repository.EmailSettingsRepository
	TemplateRepo    repository.EmailTemplateRepository
	MailboxDefaults config.MailboxConfig
	SMTPDefaults    config.SMTPConfig
}

// NewSettingsService constructs the service.
func NewSettingsService(deps SettingsDependencies) *SettingsService {
	return &SettingsService{
		settings:        deps.SettingsRepo,
		templates:       deps.TemplateRepo,
		mailboxDefaults: deps.MailboxDefaults.WithDefaults(),
		smtpDefaults:    deps.SMTPDefaults.WithDefaults(),
	}
}

// Mailbox returns the current inbound mailbox configuration.
func (s *SettingsService) Mailbox(ctx context.Context) (config.MailboxConfig, error) {
	raw, err := s.settings.Get(ctx, repository.SettingsIMAP)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.mailboxDefaults, nil
	}
	if err != nil {
		return config.MailboxConfig{}, fmt.Errorf("load mailbox settings: %w", err)
	}
	return config.ParseMailboxSettings(raw)
}

// SaveMailbox validates and stores cfg. An empty password keeps the stored one.
func (s *SettingsService) SaveMailbox(ctx context.Context, cfg config.MailboxConfig) (config.MailboxConfig, error) {
	if cfg.Password == "" {
		if current, err := s.Mailbox(ctx); err == nil {
			cfg.Password = current.Password
		}
	}
	cfg = cfg.WithDefaults()
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	if err := cfg.Validate(); err != nil {
		return config.MailboxConfig{}, errorutil.NewValidationError(err.Error(), nil)
	}
	raw, err := config.EncodeMailboxSettings(cfg)
	if err != nil {
		return config.MailboxConfig{}, err
	}
	if err := s.settings.Save(ctx, repository.SettingsIMAP, raw); err != nil {
		return config.MailboxConfig{}, fmt.Errorf("save mailbox settings: %w", err)
	}
	return cfg, nil
}

// SMTP returns the current outbound relay configuration.
func (s *SettingsService) SMTP(ctx context.Context) (config.SMTPConfig, error) {
	raw, err := s.settings.Get(ctx, repository.SettingsSMTP)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.smtpDefaults, nil
	}
	if err != nil {
		return config.SMTPConfig{}, fmt.Errorf("load smtp settings: %w", err)
	}
	return config.ParseSMTPSettings(raw)
}

// SaveSMTP validates and stores cfg. An empty password keeps the stored one.
func (s *SettingsService) SaveSMTP(ctx context.Context, cfg config.SMTPConfig) (config.SMTPConfig, error) {
	if cfg.Password == "" {
		if current, err := s.SMTP(ctx); err == nil {
			cfg.Password = current.Password
		}
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return config.SMTPConfig{}, errorutil.NewValidationError(err.Error(), nil)
	}
	raw, err := config.EncodeSMTPSettings(cfg)
	if err != nil {
		return config.SMTPConfig{}, err
	}
	if err := s.settings.Save(ctx, repository.SettingsSMTP, raw); err != nil {
		return config.SMTPConfig{}, fmt.Errorf("save smtp settings: %w", err)
	}
	return cfg, nil
}

// Template returns the stored override for t or the built-in default.
func (s *SettingsService) Template(ctx context.Context, t domain.TemplateType) (domain.EmailTemplate, error) {
	tpl, err := s.templates.Get(ctx, t)
	if err == nil {
		return *tpl, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.EmailTemplate{}, fmt.Errorf("load template %s: %w", t, err)
	}
	def, ok := notify.DefaultTemplate(t)
	if !ok {
		return domain.EmailTemplate{}, fmt.Errorf("unknown template %q", t)
	}
	return def, nil
}

// Templates returns every known template with stored overrides applied.
func (s *SettingsService) Templates(ctx context.Context) ([]domain.EmailTemplate, error) {
	stored, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	byType := make(map[domain.TemplateType]domain.EmailTemplate, len(stored))
	for _, tpl := range stored {
		byType[tpl.Type] = tpl
	}
	result := make([]domain.EmailTemplate, 0, 2)
	for _, t := range []domain.TemplateType{domain.TemplateNewTicket, domain.TemplateUpdateTicket} {
		if tpl, ok := byType[t]; ok {
			result = append(result, tpl)
			continue
		}
		def, _ := notify.DefaultTemplate(t)
		result = append(result, def)
	}
	return result, nil
}

// SaveTemplate stores an override.
func (s *SettingsService) SaveTemplate(ctx context.Context, tpl domain.EmailTemplate) error {
	if _, ok := notify.DefaultTemplate(tpl.Type); !ok {
		return errorutil.NewValidationError("unknown template type", map[string]any{"type": tpl.Type})
	}
	if strings.TrimSpace(tpl.Subject) == "" || strings.TrimSpace(tpl.Body) == "" {
		return errorutil.NewValidationError("template subject and body are required", nil)
	}
	return s.templates.Upsert(ctx, &tpl)
}
