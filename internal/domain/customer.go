package domain

import "time"

// CustomerStatus represents lifecycle states for a customer.
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "Active"
	CustomerStatusInactive CustomerStatus = "Inactive"
)

// Customer is a person or company that opens tickets. Email is the natural
// key used to match inbound senders.
type Customer struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Company   string
	Status    CustomerStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
