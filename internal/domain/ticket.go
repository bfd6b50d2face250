package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
	TicketPriorityUrgent TicketPriority = "Urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// CustomerName and CustomerEmail are denormalized copies of the customer
// record and may drift from it.
type Ticket struct {
	ID            int64
	Title         string
	Description   string
	Status        TicketStatus
	Priority      TicketPriority
	CustomerID    *int64
	CustomerName  string
	CustomerEmail string
	AssignedTo    *string

	Software string
	Group    string
	Type     string

	RapportoDanea                 string
	IDAssistenza                  string
	PasswordTeleassistenza        string
	NumeroRichiestaTeleassistenza string

	CreatedAt time.Time
	UpdatedAt time.Time
}
