package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus   TicketChangeType = "STATUS_CHANGE"
	ChangeTypePriority TicketChangeType = "PRIORITY_CHANGE"
	ChangeTypeAssignee TicketChangeType = "ASSIGNEE_CHANGE"
)

// HistoryActor identifies who caused a change.
type HistoryActor string

const (
	HistoryActorAgent  HistoryActor = "AGENT"
	HistoryActorSystem HistoryActor = "SYSTEM"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            int64
	TicketID      int64
	ChangedByType HistoryActor
	ChangedBy     string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
