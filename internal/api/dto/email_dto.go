package dto

import (
	"time"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// MailboxSettingsRequest payload. An empty password keeps the stored one.
type MailboxSettingsRequest struct {
	Enabled   *bool  `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Security  string `json:"security"`
	Folder    string `json:"folder"`
	AutoCheck int    `json:"auto_check"`
}

// MailboxSettingsResponse omits the password.
type MailboxSettingsResponse struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Security    string `json:"security"`
	Folder      string `json:"folder"`
	AutoCheck   int    `json:"auto_check"`
	HasPassword bool   `json:"has_password"`
}

// SMTPSettingsRequest payload. An empty password keeps the stored one.
type SMTPSettingsRequest struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Security  string `json:"security"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

// SMTPSettingsResponse omits the password.
type SMTPSettingsResponse struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Security    string `json:"security"`
	FromEmail   string `json:"from_email"`
	FromName    string `json:"from_name"`
	HasPassword bool   `json:"has_password"`
}

// TestSMTPRequest optionally names a recipient for a test message.
type TestSMTPRequest struct {
	To string `json:"to"`
}

// EmailStatusResponse summarizes mail configuration.
type EmailStatusResponse struct {
	SMTPConfigured bool                     `json:"smtp_configured"`
	IMAPConfigured bool                     `json:"imap_configured"`
	MonitorActive  bool                     `json:"monitor_active"`
	SMTP           *SMTPSettingsResponse    `json:"smtp_config,omitempty"`
	IMAP           *MailboxSettingsResponse `json:"imap_config,omitempty"`
}

// MonitorStatusResponse reports the poller state.
type MonitorStatusResponse struct {
	Running bool `json:"running"`
}

// EmailTemplateRequest updates one template.
type EmailTemplateRequest struct {
	Type    domain.TemplateType `json:"type"`
	Subject string              `json:"subject"`
	Body    string              `json:"body"`
}

// EmailTemplateResponse view.
type EmailTemplateResponse struct {
	Type      domain.TemplateType `json:"type"`
	Subject   string              `json:"subject"`
	Body      string              `json:"body"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}
