package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-helpdesk/internal/api/dto"
	"github.com/spec-kit/crm-helpdesk/internal/service"
)

// StatsHandler serves dashboard counters.
type StatsHandler struct {
	stats *service.StatsService
}

func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Summary handles GET /api/stats.
func (h *StatsHandler) Summary(c *fiber.Ctx) error {
	s, err := h.stats.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		TotalTickets:    s.TotalTickets,
		OpenTickets:     s.OpenTickets,
		ClosedTickets:   s.ClosedTickets,
		TicketsByStatus: s.TicketsByStatus,
		TotalAgents:     s.TotalAgents,
		PendingAgents:   s.PendingAgents,
		TotalCustomers:  s.TotalCustomers,
		ActiveCustomers: s.ActiveCustomers,
	}})
}
