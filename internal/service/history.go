package service

import (
	"context"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
)

func recordStatusChange(ctx context.Context, repo repository.TicketHistoryRepository, actorType domain.HistoryActor, actorName string, ticketID int64, oldStatus, newStatus domain.TicketStatus, comment string) error {
	if repo == nil || oldStatus == newStatus {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: actorType,
		ChangedBy:     actorName,
		ChangeType:    domain.ChangeTypeStatus,
		OldValue: map[string]any{
			"status": oldStatus,
		},
		NewValue: map[string]any{
			"status":  newStatus,
			"comment": comment,
		},
	}
	return repo.Create(ctx, entry)
}

func recordPriorityChange(ctx context.Context, repo repository.TicketHistoryRepository, actorName string, ticketID int64, oldPriority, newPriority domain.TicketPriority) error {
	if repo == nil || oldPriority == newPriority {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: domain.HistoryActorAgent,
		ChangedBy:     actorName,
		ChangeType:    domain.ChangeTypePriority,
		OldValue: map[string]any{
			"priority": oldPriority,
		},
		NewValue: map[string]any{
			"priority": newPriority,
		},
	}
	return repo.Create(ctx, entry)
}

func recordAssigneeChange(ctx context.Context, repo repository.TicketHistoryRepository, actorName string, ticketID int64, oldAssignee, newAssignee *string) error {
	if repo == nil || derefString(oldAssignee) == derefString(newAssignee) {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: domain.HistoryActorAgent,
		ChangedBy:     actorName,
		ChangeType:    domain.ChangeTypeAssignee,
		OldValue: map[string]any{
			"assigned_to": derefString(oldAssignee),
		},
		NewValue: map[string]any{
			"assigned_to": derefString(newAssignee),
		},
	}
	return repo.Create(ctx, entry)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
