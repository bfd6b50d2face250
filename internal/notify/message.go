// Package notify sends outbound mail over SMTP and renders the
// operator-editable notification templates.
package notify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/spec-kit/crm-helpdesk/internal/config"
)

// Email is one outbound message.
type Email struct {
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Compose renders e as an RFC 5322 message. A non-empty HTML body produces a
// multipart/alternative message with the text part first.
func Compose(cfg config.SMTPConfig, e Email, now time.Time) ([]byte, error) {
	if len(e.To) == 0 {
		return nil, errors.New("no recipients")
	}

	var h mail.Header
	h.SetDate(now)
	h.SetSubject(e.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: cfg.FromName, Address: cfg.FromEmail}})
	to := make([]*mail.Address, 0, len(e.To))
	for _, addr := range e.To {
		to = append(to, &mail.Address{Address: strings.TrimSpace(addr)})
	}
	h.SetAddressList("To", to)
	if e.ReplyTo != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Address: e.ReplyTo}})
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}

	var buf bytes.Buffer
	if e.HTML == "" {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, e.Text); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/plain", e.Text); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html", e.HTML); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(mw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := mw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}
