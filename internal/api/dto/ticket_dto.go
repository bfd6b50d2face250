package dto

import (
	"time"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Priority        domain.TicketPriority `json:"priority"`
	CustomerID      *int64                `json:"customer_id"`
	CustomerName    string                `json:"customer_name"`
	CustomerEmail   string                `json:"customer_email"`
	CustomerPhone   string                `json:"customer_phone"`
	CustomerCompany string                `json:"customer_company"`
	CreateCustomer  bool                  `json:"create_customer"`
	AssignedTo      *string               `json:"assigned_to"`

	Software string `json:"software"`
	Group    string `json:"group"`
	Type     string `json:"type"`

	RapportoDanea                 string `json:"rapporto_danea"`
	IDAssistenza                  string `json:"id_assistenza"`
	PasswordTeleassistenza        string `json:"password_teleassistenza"`
	NumeroRichiestaTeleassistenza string `json:"numero_richiesta_teleassistenza"`
}

// UpdateTicketRequest carries a partial update. Absent fields are untouched.
type UpdateTicketRequest struct {
	Title         *string                `json:"title"`
	Description   *string                `json:"description"`
	Status        *domain.TicketStatus   `json:"status"`
	Priority      *domain.TicketPriority `json:"priority"`
	CustomerName  *string                `json:"customer_name"`
	CustomerEmail *string                `json:"customer_email"`
	AssignedTo    *string                `json:"assigned_to"`

	Software *string `json:"software"`
	Group    *string `json:"group"`
	Type     *string `json:"type"`

	RapportoDanea                 *string `json:"rapporto_danea"`
	IDAssistenza                  *string `json:"id_assistenza"`
	PasswordTeleassistenza        *string `json:"password_teleassistenza"`
	NumeroRichiestaTeleassistenza *string `json:"numero_richiesta_teleassistenza"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID            int64                 `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        domain.TicketStatus   `json:"status"`
	Priority      domain.TicketPriority `json:"priority"`
	CustomerID    *int64                `json:"customer_id"`
	CustomerName  string                `json:"customer_name"`
	CustomerEmail string                `json:"customer_email"`
	AssignedTo    *string               `json:"assigned_to"`

	Software string `json:"software"`
	Group    string `json:"group"`
	Type     string `json:"type"`

	RapportoDanea                 string `json:"rapporto_danea"`
	IDAssistenza                  string `json:"id_assistenza"`
	PasswordTeleassistenza        string `json:"password_teleassistenza"`
	NumeroRichiestaTeleassistenza string `json:"numero_richiesta_teleassistenza"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TicketUpdateResponse reports which fields an update touched.
type TicketUpdateResponse struct {
	Ticket  TicketResponse `json:"ticket"`
	Changes []string       `json:"changes"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	SenderType  domain.SenderType `json:"sender_type"`
	SenderName  string            `json:"sender_name"`
	SenderEmail string            `json:"sender_email"`
	MessageText string            `json:"message_text"`
	IsInternal  bool              `json:"is_internal"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID          int64             `json:"id"`
	TicketID    int64             `json:"ticket_id"`
	SenderType  domain.SenderType `json:"sender_type"`
	SenderName  string            `json:"sender_name"`
	SenderEmail string            `json:"sender_email"`
	MessageText string            `json:"message_text"`
	IsInternal  bool              `json:"is_internal"`
	CreatedAt   time.Time         `json:"created_at"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID            int64                   `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType domain.HistoryActor     `json:"changed_by_type"`
	ChangedBy     string                  `json:"changed_by"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}
