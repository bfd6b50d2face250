package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/api/dto"
	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/mailbox"
	"github.com/spec-kit/crm-helpdesk/internal/notify"
	"github.com/spec-kit/crm-helpdesk/internal/service"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// Monitor controls the background mailbox poller.
type Monitor interface {
	Start() bool
	Stop()
	IsRunning() bool
}

// EmailHandler exposes mail settings, templates and the inbox monitor.
type EmailHandler struct {
	settings  *service.SettingsService
	ingestion *service.IngestionService
	monitor   Monitor
	dialer    mailbox.Dialer
	sender    notify.Sender
	logger    *zap.Logger

	monitorMu  sync.Mutex
	monitorGen atomic.Uint64
}

// EmailHandlerDependencies wires the handler.
type EmailHandlerDependencies struct {
	Settings  *service.SettingsService
	Ingestion *service.IngestionService
	Monitor   Monitor
	Dialer    mailbox.Dialer
	Sender    notify.Sender
	Logger    *zap.Logger
}

// NewEmailHandler constructs handler.
func NewEmailHandler(deps EmailHandlerDependencies) *EmailHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailHandler{
		settings:  deps.Settings,
		ingestion: deps.Ingestion,
		monitor:   deps.Monitor,
		dialer:    deps.Dialer,
		sender:    deps.Sender,
		logger:    logger.Named("email_api"),
	}
}

// GetIMAP GET /api/email/imap.
func (h *EmailHandler) GetIMAP(c *fiber.Ctx) error {
	cfg, err := h.settings.Mailbox(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mailboxResponse(cfg)})
}

// SaveIMAP PUT /api/email/imap. The monitor is restarted in the background
// when checking is enabled and stopped otherwise; the response does not wait
// for an in-flight pass.
func (h *EmailHandler) SaveIMAP(c *fiber.Ctx) error {
	var req dto.MailboxSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	cfg, err := mailboxFromRequest(req)
	if err != nil {
		return err
	}
	saved, err := h.settings.SaveMailbox(c.UserContext(), cfg)
	if err != nil {
		return err
	}

	h.restartMonitor(saved.Enabled)
	h.logger.Info("mailbox settings saved",
		zap.String("host", saved.Host),
		zap.Bool("enabled", saved.Enabled),
		zap.Int("interval_seconds", saved.IntervalSeconds))
	return c.JSON(fiber.Map{"data": mailboxResponse(saved)})
}

// GetSMTP GET /api/email/smtp.
func (h *EmailHandler) GetSMTP(c *fiber.Ctx) error {
	cfg, err := h.settings.SMTP(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": smtpResponse(cfg)})
}

// SaveSMTP PUT /api/email/smtp.
func (h *EmailHandler) SaveSMTP(c *fiber.Ctx) error {
	var req dto.SMTPSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	cfg, err := smtpFromRequest(req)
	if err != nil {
		return err
	}
	saved, err := h.settings.SaveSMTP(c.UserContext(), cfg)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": smtpResponse(saved)})
}

// TestIMAP POST /api/email/test-imap. An empty body tests the stored settings.
func (h *EmailHandler) TestIMAP(c *fiber.Ctx) error {
	stored, err := h.settings.Mailbox(c.UserContext())
	if err != nil {
		return err
	}
	cfg := stored
	if len(bytes.TrimSpace(c.Body())) > 0 {
		var req dto.MailboxSettingsRequest
		if err := c.BodyParser(&req); err != nil {
			return errorutil.NewValidationError("invalid payload", nil)
		}
		if req.Host != "" {
			if cfg, err = mailboxFromRequest(req); err != nil {
				return err
			}
			if cfg.Password == "" {
				cfg.Password = stored.Password
			}
			cfg = cfg.WithDefaults()
		}
	}
	if !cfg.Configured() {
		return errorutil.NewValidationError("mailbox host, username and password required", nil)
	}
	if err := h.dialer.Test(c.UserContext(), cfg); err != nil {
		return errorutil.NewUpstreamError("imap connection failed", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "Connessione IMAP riuscita"}})
}

// TestSMTP POST /api/email/test-smtp. A recipient in the body also receives a
// test message.
func (h *EmailHandler) TestSMTP(c *fiber.Ctx) error {
	var req dto.TestSMTPRequest
	if len(bytes.TrimSpace(c.Body())) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorutil.NewValidationError("invalid payload", nil)
		}
	}
	cfg, err := h.settings.SMTP(c.UserContext())
	if err != nil {
		return err
	}
	if !cfg.Configured() {
		return errorutil.NewValidationError("smtp host and from_email required", nil)
	}
	if err := h.sender.TestConnection(c.UserContext(), cfg); err != nil {
		return errorutil.NewUpstreamError("smtp connection failed", err)
	}
	if req.To != "" {
		err := h.sender.Send(c.UserContext(), cfg, notify.Email{
			To:      []string{req.To},
			Subject: "Test configurazione SMTP",
			Text:    "Questa è una email di prova inviata dal sistema CRM.",
		})
		if err != nil {
			return errorutil.NewUpstreamError("smtp send failed", err)
		}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "Connessione SMTP riuscita"}})
}

// Status GET /api/email/status.
func (h *EmailHandler) Status(c *fiber.Ctx) error {
	resp := dto.EmailStatusResponse{}
	if h.monitor != nil {
		resp.MonitorActive = h.monitor.IsRunning()
	}
	if smtpCfg, err := h.settings.SMTP(c.UserContext()); err != nil {
		h.logger.Warn("smtp settings unreadable", zap.Error(err))
	} else if smtpCfg.Configured() {
		view := smtpResponse(smtpCfg)
		resp.SMTPConfigured = true
		resp.SMTP = &view
	}
	if imapCfg, err := h.settings.Mailbox(c.UserContext()); err != nil {
		h.logger.Warn("mailbox settings unreadable", zap.Error(err))
	} else if imapCfg.Configured() {
		view := mailboxResponse(imapCfg)
		resp.IMAPConfigured = true
		resp.IMAP = &view
	}
	return c.JSON(fiber.Map{"data": resp})
}

// ListTemplates GET /api/email/templates.
func (h *EmailHandler) ListTemplates(c *fiber.Ctx) error {
	templates, err := h.settings.Templates(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.EmailTemplateResponse, 0, len(templates))
	for _, tpl := range templates {
		resp = append(resp, templateResponse(tpl))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// SaveTemplates PUT /api/email/templates. Accepts one template or a list.
func (h *EmailHandler) SaveTemplates(c *fiber.Ctx) error {
	body := bytes.TrimSpace(c.Body())
	var reqs []dto.EmailTemplateRequest
	if len(body) > 0 && body[0] == '{' {
		var single dto.EmailTemplateRequest
		if err := json.Unmarshal(body, &single); err != nil {
			return errorutil.NewValidationError("invalid payload", nil)
		}
		reqs = append(reqs, single)
	} else if err := json.Unmarshal(body, &reqs); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if len(reqs) == 0 {
		return errorutil.NewValidationError("no templates given", nil)
	}
	for _, req := range reqs {
		err := h.settings.SaveTemplate(c.UserContext(), domain.EmailTemplate{
			Type:    req.Type,
			Subject: req.Subject,
			Body:    req.Body,
		})
		if err != nil {
			return err
		}
	}
	return h.ListTemplates(c)
}

// CheckNow POST /api/email/check-now runs one pass synchronously.
func (h *EmailHandler) CheckNow(c *fiber.Ctx) error {
	cfg, err := h.settings.Mailbox(c.UserContext())
	if err != nil {
		return err
	}
	report, err := h.ingestion.CheckNow(c.UserContext(), cfg)
	if err != nil {
		return passError(err)
	}
	return c.JSON(fiber.Map{"data": report})
}

// MonitorStatus GET /api/email/monitor/status.
func (h *EmailHandler) MonitorStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.MonitorStatusResponse{Running: h.monitor.IsRunning()}})
}

// StartMonitor POST /api/email/monitor/start.
func (h *EmailHandler) StartMonitor(c *fiber.Ctx) error {
	h.monitor.Start()
	return c.JSON(fiber.Map{"data": dto.MonitorStatusResponse{Running: h.monitor.IsRunning()}})
}

// StopMonitor POST /api/email/monitor/stop.
func (h *EmailHandler) StopMonitor(c *fiber.Ctx) error {
	h.monitor.Stop()
	return c.JSON(fiber.Map{"data": dto.MonitorStatusResponse{Running: h.monitor.IsRunning()}})
}

// restartMonitor applies the latest saved state. A save that is superseded
// before its turn is dropped.
func (h *EmailHandler) restartMonitor(enabled bool) {
	if h.monitor == nil {
		return
	}
	gen := h.monitorGen.Add(1)
	go func() {
		h.monitorMu.Lock()
		defer h.monitorMu.Unlock()
		if h.monitorGen.Load() != gen {
			return
		}
		h.monitor.Stop()
		if enabled {
			h.monitor.Start()
		}
	}()
}

func passError(err error) error {
	var connErr *mailbox.ConnectionError
	switch {
	case errors.Is(err, service.ErrMailboxNotConfigured):
		return errorutil.NewValidationError("mailbox not configured", nil)
	case errors.Is(err, service.ErrPassInProgress):
		return errorutil.NewConflict("an ingestion pass is already running", nil)
	case errors.As(err, &connErr):
		return errorutil.NewUpstreamError("mailbox unavailable", err)
	default:
		return err
	}
}

func mailboxFromRequest(req dto.MailboxSettingsRequest) (config.MailboxConfig, error) {
	security, err := config.ParseSecurity(req.Security)
	if err != nil {
		return config.MailboxConfig{}, errorutil.NewValidationError(err.Error(), nil)
	}
	if req.AutoCheck < 0 {
		return config.MailboxConfig{}, errorutil.NewValidationError("auto_check must not be negative", nil)
	}
	enabled := req.AutoCheck > 0
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return config.MailboxConfig{
		Enabled:         enabled,
		Host:            req.Host,
		Port:            req.Port,
		Username:        req.Username,
		Password:        req.Password,
		Security:        security,
		Folder:          req.Folder,
		IntervalSeconds: req.AutoCheck,
	}, nil
}

func smtpFromRequest(req dto.SMTPSettingsRequest) (config.SMTPConfig, error) {
	security, err := config.ParseSecurity(req.Security)
	if err != nil {
		return config.SMTPConfig{}, errorutil.NewValidationError(err.Error(), nil)
	}
	return config.SMTPConfig{
		Host:      req.Host,
		Port:      req.Port,
		Username:  req.Username,
		Password:  req.Password,
		Security:  security,
		FromEmail: req.FromEmail,
		FromName:  req.FromName,
	}, nil
}

func mailboxResponse(cfg config.MailboxConfig) dto.MailboxSettingsResponse {
	return dto.MailboxSettingsResponse{
		Enabled:     cfg.Enabled,
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Security:    string(cfg.Security),
		Folder:      cfg.Folder,
		AutoCheck:   cfg.IntervalSeconds,
		HasPassword: cfg.Password != "",
	}
}

func smtpResponse(cfg config.SMTPConfig) dto.SMTPSettingsResponse {
	return dto.SMTPSettingsResponse{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Security:    string(cfg.Security),
		FromEmail:   cfg.FromEmail,
		FromName:    cfg.FromName,
		HasPassword: cfg.Password != "",
	}
}

func templateResponse(tpl domain.EmailTemplate) dto.EmailTemplateResponse {
	resp := dto.EmailTemplateResponse{Type: tpl.Type, Subject: tpl.Subject, Body: tpl.Body}
	if !tpl.UpdatedAt.IsZero() {
		updated := tpl.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
