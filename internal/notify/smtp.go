package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-sasl"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/config"
)

// ErrNotConfigured is returned when no SMTP relay has been set up.
var ErrNotConfigured = errors.New("smtp not configured")

// Sender delivers composed mail.
type Sender interface {
	Send(ctx context.Context, cfg config.SMTPConfig, e Email) error
	TestConnection(ctx context.Context, cfg config.SMTPConfig) error
}

// SMTPSender talks to a relay with net/smtp. Every connection carries the
// deadline of the calling context.
type SMTPSender struct {
	dialTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
	dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPSender constructs a sender.
func NewSMTPSender(logger *zap.Logger) *SMTPSender {
	s := &SMTPSender{
		dialTimeout: 10 * time.Second,
		now:         time.Now,
		logger:      logger.Named("smtp"),
	}
	s.dialContext = (&net.Dialer{Timeout: s.dialTimeout}).DialContext
	return s
}

// Send composes e and delivers it to every recipient.
func (s *SMTPSender) Send(ctx context.Context, cfg config.SMTPConfig, e Email) error {
	if !cfg.Configured() {
		return ErrNotConfigured
	}
	raw, err := Compose(cfg, e, s.now())
	if err != nil {
		return err
	}

	client, err := s.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := authenticate(client, cfg); err != nil {
		return err
	}
	if err := client.Mail(cfg.FromEmail); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, to := range e.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", to, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}

	s.logger.Debug("mail sent", zap.Strings("to", e.To), zap.String("subject", e.Subject))
	return nil
}

// TestConnection connects and authenticates without sending.
func (s *SMTPSender) TestConnection(ctx context.Context, cfg config.SMTPConfig) error {
	if !cfg.Configured() {
		return ErrNotConfigured
	}
	client, err := s.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := authenticate(client, cfg); err != nil {
		return err
	}
	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context, cfg config.SMTPConfig) (*smtp.Client, error) {
	conn, err := s.dialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("smtp connect: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if cfg.Security == config.SecuritySSL {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("smtp tls handshake: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp greeting: %w", err)
	}
	if cfg.Security == config.SecuritySTARTTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	}
	return client, nil
}

func authenticate(client *smtp.Client, cfg config.SMTPConfig) error {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}
	auth := saslAuth{client: sasl.NewPlainClient("", cfg.Username, cfg.Password)}
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	return nil
}

// saslAuth adapts a go-sasl client to net/smtp. Unlike smtp.PlainAuth it
// sends credentials on plaintext connections too; whether that is acceptable
// is decided by the configured security mode.
type saslAuth struct {
	client sasl.Client
}

func (a saslAuth) Start(*smtp.ServerInfo) (string, []byte, error) {
	return a.client.Start()
}

func (a saslAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	return a.client.Next(fromServer)
}
