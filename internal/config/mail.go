package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultFolder is the mailbox selected when none is configured.
const DefaultFolder = "INBOX"

// Security selects the transport protection for mail connections.
type Security string

const (
	SecurityNone     Security = "none"
	SecuritySTARTTLS Security = "tls"
	SecuritySSL      Security = "ssl"
)

// ParseSecurity normalizes stored security labels. Empty means none.
func ParseSecurity(value string) (Security, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", "plain":
		return SecurityNone, nil
	case "tls", "starttls":
		return SecuritySTARTTLS, nil
	case "ssl", "implicit", "imaps", "smtps":
		return SecuritySSL, nil
	default:
		return "", fmt.Errorf("unknown security mode %q", value)
	}
}

// MailboxConfig describes the inbox polled for inbound mail.
type MailboxConfig struct {
	Enabled         bool
	Host            string
	Port            int
	Username        string
	Password        string
	Security        Security
	Folder          string
	IntervalSeconds int
}

// WithDefaults fills in folder and port.
func (c MailboxConfig) WithDefaults() MailboxConfig {
	if c.Security == "" {
		c.Security = SecurityNone
	}
	if strings.TrimSpace(c.Folder) == "" {
		c.Folder = DefaultFolder
	}
	if c.Port == 0 {
		if c.Security == SecuritySSL {
			c.Port = 993
		} else {
			c.Port = 143
		}
	}
	return c
}

// Validate checks the fields needed to open a session.
func (c MailboxConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("mailbox host required")
	}
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("mailbox username required")
	}
	if c.Password == "" {
		return errors.New("mailbox password required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("mailbox port %d out of range", c.Port)
	}
	if c.IntervalSeconds < 0 {
		return errors.New("mailbox interval must not be negative")
	}
	return nil
}

// Active reports whether the poller should run passes.
func (c MailboxConfig) Active() bool {
	return c.Enabled && c.IntervalSeconds > 0
}

// Interval returns the sleep between passes.
func (c MailboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Addr returns host:port.
func (c MailboxConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Configured reports whether credentials are present.
func (c MailboxConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// SMTPConfig describes the outbound relay.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Security  Security
	FromEmail string
	FromName  string
}

// WithDefaults fills in the port for the security mode.
func (c SMTPConfig) WithDefaults() SMTPConfig {
	if c.Security == "" {
		c.Security = SecurityNone
	}
	if c.Port == 0 {
		switch c.Security {
		case SecuritySSL:
			c.Port = 465
		case SecuritySTARTTLS:
			c.Port = 587
		default:
			c.Port = 25
		}
	}
	if c.FromEmail == "" {
		c.FromEmail = c.Username
	}
	return c
}

// Validate checks the fields needed to send.
func (c SMTPConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("smtp host required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("smtp port %d out of range", c.Port)
	}
	if strings.TrimSpace(c.FromEmail) == "" {
		return errors.New("smtp from_email required")
	}
	return nil
}

// Addr returns host:port.
func (c SMTPConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Configured reports whether the relay can be used.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.FromEmail != ""
}

// flexInt accepts both JSON numbers and numeric strings, as stored by older clients.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*f = flexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(int(n))
	return nil
}

type mailboxDocument struct {
	Enabled         *bool   `json:"enabled,omitempty"`
	Host            string  `json:"host"`
	Port            flexInt `json:"port"`
	Username        string  `json:"username"`
	Password        string  `json:"password"`
	Security        string  `json:"security"`
	Folder          string  `json:"folder"`
	AutoCheck       flexInt `json:"auto_check"`
	IntervalSeconds flexInt `json:"interval_seconds,omitempty"`
}

type smtpDocument struct {
	Host      string  `json:"host"`
	Port      flexInt `json:"port"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Security  string  `json:"security"`
	FromEmail string  `json:"from_email"`
	FromName  string  `json:"from_name"`
}

// ParseMailboxSettings decodes a stored IMAP settings document. The legacy
// auto_check key carries the interval; enabled defaults to auto_check > 0.
func ParseMailboxSettings(raw []byte) (MailboxConfig, error) {
	var doc mailboxDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return MailboxConfig{}, fmt.Errorf("decode mailbox settings: %w", err)
	}
	security, err := ParseSecurity(doc.Security)
	if err != nil {
		return MailboxConfig{}, err
	}
	interval := int(doc.IntervalSeconds)
	if interval == 0 {
		interval = int(doc.AutoCheck)
	}
	enabled := interval > 0
	if doc.Enabled != nil {
		enabled = *doc.Enabled
	}
	cfg := MailboxConfig{
		Enabled:         enabled,
		Host:            strings.TrimSpace(doc.Host),
		Port:            int(doc.Port),
		Username:        strings.TrimSpace(doc.Username),
		Password:        doc.Password,
		Security:        security,
		Folder:          strings.TrimSpace(doc.Folder),
		IntervalSeconds: interval,
	}.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return MailboxConfig{}, err
	}
	return cfg, nil
}

// EncodeMailboxSettings produces the stored document for cfg.
func EncodeMailboxSettings(cfg MailboxConfig) ([]byte, error) {
	enabled := cfg.Enabled
	return json.Marshal(mailboxDocument{
		Enabled:   &enabled,
		Host:      cfg.Host,
		Port:      flexInt(cfg.Port),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Security:  string(cfg.Security),
		Folder:    cfg.Folder,
		AutoCheck: flexInt(cfg.IntervalSeconds),
	})
}

// ParseSMTPSettings decodes a stored SMTP settings document.
func ParseSMTPSettings(raw []byte) (SMTPConfig, error) {
	var doc smtpDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SMTPConfig{}, fmt.Errorf("decode smtp settings: %w", err)
	}
	security, err := ParseSecurity(doc.Security)
	if err != nil {
		return SMTPConfig{}, err
	}
	cfg := SMTPConfig{
		Host:      strings.TrimSpace(doc.Host),
		Port:      int(doc.Port),
		Username:  strings.TrimSpace(doc.Username),
		Password:  doc.Password,
		Security:  security,
		FromEmail: strings.TrimSpace(doc.FromEmail),
		FromName:  strings.TrimSpace(doc.FromName),
	}.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return SMTPConfig{}, err
	}
	return cfg, nil
}

// EncodeSMTPSettings produces the stored document for cfg.
func EncodeSMTPSettings(cfg SMTPConfig) ([]byte, error) {
	return json.Marshal(smtpDocument{
		Host:      cfg.Host,
		Port:      flexInt(cfg.Port),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Security:  string(cfg.Security),
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
	})
}
