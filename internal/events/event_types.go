package events

import (
	"time"

	"github.com/spec-kit/service-ticket/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketApproved      EventType = "ticket_approved"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// AllEventTypes lists every event the ticket service emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketApproved,
	EventTicketDeleted,
	EventTicketStatusChanged,
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	ActorID      string    `json:"actor_id"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title       string                `json:"title"`
	Severity    domain.TicketSeverity `json:"severity"`
	Status      domain.TicketStatus   `json:"status"`
	CreatedByID string                `json:"created_by_id"`
}

// TicketChangedPayload carries the audited diff of an update, approval or
// external status change.
type TicketChangedPayload struct {
	OldValue map[string]any `json:"old_value"`
	NewValue map[string]any `json:"new_value"`
	Reason   string         `json:"reason,omitempty"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Status domain.TicketStatus `json:"status"`
	Reason string              `json:"reason"`
}
