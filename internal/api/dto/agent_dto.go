package dto

import (
	"time"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// AgentRegisterRequest payload for new agents.
type AgentRegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AgentLoginRequest payload for login.
type AgentLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AgentApproveRequest approves a pending agent, optionally changing its role.
type AgentApproveRequest struct {
	Role domain.AgentRole `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AgentResponse never carries the password hash.
type AgentResponse struct {
	ID        int64              `json:"id"`
	FullName  string             `json:"full_name"`
	Email     string             `json:"email"`
	Role      domain.AgentRole   `json:"role"`
	Status    domain.AgentStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}
