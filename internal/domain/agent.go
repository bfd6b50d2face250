package domain

import "time"

// AgentRole enumerates operator roles.
type AgentRole string

const (
	AgentRoleAgent AgentRole = "agent"
	AgentRoleAdmin AgentRole = "admin"
)

// AgentStatus tracks account approval.
type AgentStatus string

const (
	AgentStatusPending  AgentStatus = "pending"
	AgentStatusApproved AgentStatus = "approved"
	AgentStatusRejected AgentStatus = "rejected"
)

// Agent models a support operator. Tickets reference agents by FullName.
type Agent struct {
	ID           int64
	FullName     string
	Email        string
	PasswordHash string
	Role         AgentRole
	Status       AgentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
