package domain

import "time"

// TemplateType names a stored notification template.
type TemplateType string

const (
	TemplateNewTicket    TemplateType = "new_ticket"
	TemplateUpdateTicket TemplateType = "update_ticket"
)

// EmailTemplate is an operator-editable subject/body pair.
type EmailTemplate struct {
	Type      TemplateType
	Subject   string
	Body      string
	UpdatedAt time.Time
}

// InboxMessage is the parsed form of a fetched email. It is never persisted.
type InboxMessage struct {
	UID        uint32
	MessageID  string
	Subject    string
	From       string
	SenderName string
	SenderAddr string
	Body       string
	Seen       bool
	ReceivedAt time.Time
}
