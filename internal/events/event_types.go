package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketUpdated      EventType = "ticket_updated"
	EventTicketMessageAdded EventType = "ticket_message_added"
)

// Actor encapsulates who caused an event.
type Actor struct {
	Type domain.HistoryActor `json:"type"`
	Name string              `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(eventType EventType, ticketID int64, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

// TicketUpdatedPayload lists the fields that changed and a human summary.
type TicketUpdatedPayload struct {
	Ticket      domain.Ticket `json:"ticket"`
	Changes     []string      `json:"changes"`
	Description string        `json:"description"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	Ticket  domain.Ticket        `json:"ticket"`
	Message domain.TicketMessage `json:"message"`
}
