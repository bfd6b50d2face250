package domain

import "time"

// SenderType indicates who authored a message.
type SenderType string

const (
	SenderTypeAgent    SenderType = "agent"
	SenderTypeCustomer SenderType = "customer"
	SenderTypeSystem   SenderType = "system"
)

// TicketMessage captures communications in a ticket thread.
type TicketMessage struct {
	ID             int64
	TicketID       int64
	SenderType     SenderType
	SenderName     string
	SenderEmail    string
	MessageText    string
	IsInternal     bool
	EmailMessageID string
	CreatedAt      time.Time
}
