package dto

import (
	"time"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// CustomerRequest is used for both create and update.
type CustomerRequest struct {
	Name    string                `json:"name"`
	Email   string                `json:"email"`
	Phone   string                `json:"phone"`
	Company string                `json:"company"`
	Status  domain.CustomerStatus `json:"status"`
}

// CustomerResponse view.
type CustomerResponse struct {
	ID        int64                 `json:"id"`
	Name      string                `json:"name"`
	Email     string                `json:"email"`
	Phone     string                `json:"phone"`
	Company   string                `json:"company"`
	Status    domain.CustomerStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}
