package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/inbound"
)

const defaultBodyLimit = 256 * 1024

var (
	errEmptyMessage  = errors.New("empty message")
	errMissingSender = errors.New("missing sender address")

	htmlBreaks  = regexp.MustCompile(`(?i)<br\s*/?>|</p\s*>|</div\s*>|</tr\s*>|</li\s*>`)
	stripPolicy = bluemonday.StrictPolicy()
)

// Parse decodes a raw RFC 5322 message. The plain-text part is preferred;
// an HTML-only message is reduced to text. Line endings are normalized to \n.
func Parse(raw []byte, maxBodyBytes int64) (*domain.InboxMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errEmptyMessage
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultBodyLimit
	}

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	defer reader.Close()

	msg := &domain.InboxMessage{}
	msg.Subject = subjectFromHeader(&reader.Header)
	msg.MessageID, _ = reader.Header.MessageID()
	if date, err := reader.Header.Date(); err == nil {
		msg.ReceivedAt = date.UTC()
	}

	from, _ := reader.Header.Text("From")
	if from == "" {
		from = reader.Header.Get("From")
	}
	sender := inbound.ParseSender(from)
	if list, err := reader.Header.AddressList("From"); err == nil && len(list) > 0 {
		sender.Email = strings.TrimSpace(list[0].Address)
		if name := strings.TrimSpace(list[0].Name); name != "" {
			sender.Name = name
		}
	}
	if !strings.Contains(sender.Email, "@") {
		return nil, errMissingSender
	}
	msg.From = from
	msg.SenderName = sender.Name
	msg.SenderAddr = sender.Email

	body, err := readBody(reader, maxBodyBytes)
	if err != nil {
		return nil, err
	}
	msg.Body = normalizeNewlines(body)
	return msg, nil
}

func subjectFromHeader(header *mail.Header) string {
	if subject, err := header.Subject(); err == nil {
		return strings.TrimSpace(subject)
	}
	return strings.TrimSpace(header.Get("Subject"))
}

func readBody(reader *mail.Reader, limit int64) (string, error) {
	var plain, rich string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			if plain != "" || rich != "" {
				break
			}
			return "", fmt.Errorf("read part: %w", err)
		}
		if part == nil {
			continue
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, ctErr := header.ContentType()
		if ctErr != nil || mediaType == "" {
			mediaType = "text/plain"
		}
		data, err := io.ReadAll(io.LimitReader(part.Body, limit))
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		switch strings.ToLower(mediaType) {
		case "text/plain":
			if plain == "" {
				plain = string(data)
			}
		case "text/html":
			if rich == "" {
				rich = string(data)
			}
		}
	}
	if strings.TrimSpace(plain) != "" {
		return plain, nil
	}
	if rich != "" {
		return htmlToText(rich), nil
	}
	return plain, nil
}

func htmlToText(markup string) string {
	markup = htmlBreaks.ReplaceAllString(markup, "\n")
	return html.UnescapeString(stripPolicy.Sanitize(markup))
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
