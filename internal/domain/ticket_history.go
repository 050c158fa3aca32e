package domain

import "time"

// HistoryAction captures what kind of change a history entry records.
type HistoryAction string

const (
	HistoryActionCreated            HistoryAction = "created"
	HistoryActionStatusChanged      HistoryAction = "status_changed"
	HistoryActionSeverityChanged    HistoryAction = "severity_changed"
	HistoryActionTitleChanged       HistoryAction = "title_changed"
	HistoryActionDescriptionChanged HistoryAction = "description_changed"
	HistoryActionDueDateChanged     HistoryAction = "due_date_changed"
	HistoryActionDeleted            HistoryAction = "deleted"
	HistoryActionRestored           HistoryAction = "restored"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         string
	TicketID   string
	ActionType HistoryAction
	OldValue   map[string]any
	NewValue   map[string]any
	Reason     string
	ChangedBy  string
	CreatedAt  time.Time
}
