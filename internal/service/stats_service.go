package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
)

// Stats is the dashboard summary.
type Stats struct {
	TotalTickets    int
	OpenTickets     int
	ClosedTickets   int
	TicketsByStatus map[domain.TicketStatus]int
	TotalAgents     int
	PendingAgents   int
	TotalCustomers  int
	ActiveCustomers int
}

// StatsService computes dashboard counters.
type StatsService struct {
	repo repository.StatsRepository
}

func NewStatsService(repo repository.StatsRepository) *StatsService {
	return &StatsService{repo: repo}
}

// Summary counts tickets by status, approved and pending agents, and all
// and active customers. TotalAgents counts approved agents only.
func (s *StatsService) Summary(ctx context.Context) (Stats, error) {
	tickets, err := s.repo.TicketsByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count tickets: %w", err)
	}
	agents, err := s.repo.AgentsByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count agents: %w", err)
	}
	customers, err := s.repo.CustomersByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count customers: %w", err)
	}

	stats := Stats{
		OpenTickets:     tickets[domain.TicketStatusOpen],
		ClosedTickets:   tickets[domain.TicketStatusClosed],
		TicketsByStatus: map[domain.TicketStatus]int{},
		TotalAgents:     agents[domain.AgentStatusApproved],
		PendingAgents:   agents[domain.AgentStatusPending],
		ActiveCustomers: customers[domain.CustomerStatusActive],
	}
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		stats.TicketsByStatus[status] = 0
	}
	for status, n := range tickets {
		stats.TicketsByStatus[status] = n
		stats.TotalTickets += n
	}
	for _, n := range customers {
		stats.TotalCustomers += n
	}
	return stats, nil
}
