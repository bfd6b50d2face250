package dto

import "github.com/spec-kit/crm-helpdesk/internal/domain"

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	TotalTickets    int                         `json:"total_tickets"`
	OpenTickets     int                         `json:"open_tickets"`
	ClosedTickets   int                         `json:"closed_tickets"`
	TicketsByStatus map[domain.TicketStatus]int `json:"tickets_by_status"`
	TotalAgents     int                         `json:"total_agents"`
	PendingAgents   int                         `json:"pending_agents"`
	TotalCustomers  int                         `json:"total_customers"`
	ActiveCustomers int                         `json:"active_customers"`
}
