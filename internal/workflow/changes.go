package workflow

import (
	"time"

	"github.com/spec-kit/service-ticket/internal/domain"
)

// Field names a mutable ticket attribute.
type Field string

const (
	FieldTitle        Field = "title"
	FieldDescription  Field = "description"
	FieldSeverity     Field = "severity"
	FieldStatus       Field = "status"
	FieldAssignedToID Field = "assignedToId"
	FieldDueDate      Field = "dueDate"
)

const dueDateLayout = "2006-01-02"

// ChangeSet is a proposed partial update. Nil fields are left untouched.
// An empty AssignedToID clears the assignee and a zero DueDate clears the due date.
type ChangeSet struct {
	Title        *string
	Description  *string
	Severity     *domain.TicketSeverity
	Status       *domain.TicketStatus
	AssignedToID *string
	DueDate      *time.Time
	Reason       string
}

// Fields lists the attributes present in the change set in a stable order.
func (c ChangeSet) Fields() []Field {
	var fields []Field
	if c.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if c.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if c.Severity != nil {
		fields = append(fields, FieldSeverity)
	}
	if c.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if c.AssignedToID != nil {
		fields = append(fields, FieldAssignedToID)
	}
	if c.DueDate != nil {
		fields = append(fields, FieldDueDate)
	}
	return fields
}

// Empty reports whether no field would change.
func (c ChangeSet) Empty() bool {
	return len(c.Fields()) == 0
}

// WithStatus returns a copy of c with the status set.
func (c ChangeSet) WithStatus(status domain.TicketStatus) ChangeSet {
	c.Status = &status
	return c
}

// normalize drops status and severity values that equal the ticket's current
// ones, so re-sending the current value is a no-op.
func (c ChangeSet) normalize(ticket domain.Ticket) ChangeSet {
	if c.Status != nil && *c.Status == ticket.Status {
		c.Status = nil
	}
	if c.Severity != nil && *c.Severity == ticket.Severity {
		c.Severity = nil
	}
	return c
}

// Apply returns a copy of ticket with the change set applied.
func Apply(ticket domain.Ticket, c ChangeSet) domain.Ticket {
	if c.Title != nil {
		ticket.Title = *c.Title
	}
	if c.Description != nil {
		ticket.Description = *c.Description
	}
	if c.Severity != nil {
		ticket.Severity = *c.Severity
	}
	if c.Status != nil {
		ticket.Status = *c.Status
	}
	if c.AssignedToID != nil {
		if *c.AssignedToID == "" {
			ticket.AssignedToID = nil
		} else {
			id := *c.AssignedToID
			ticket.AssignedToID = &id
		}
	}
	if c.DueDate != nil {
		if c.DueDate.IsZero() {
			ticket.DueDate = nil
		} else {
			due := *c.DueDate
			ticket.DueDate = &due
		}
	}
	return ticket
}

// Snapshot captures the audited attributes of a ticket as plain values.
func Snapshot(ticket domain.Ticket) map[string]any {
	snap := map[string]any{
		string(FieldStatus):       string(ticket.Status),
		string(FieldSeverity):     string(ticket.Severity),
		string(FieldTitle):        ticket.Title,
		string(FieldDescription):  ticket.Description,
		string(FieldAssignedToID): nil,
		string(FieldDueDate):      nil,
	}
	if ticket.AssignedToID != nil {
		snap[string(FieldAssignedToID)] = *ticket.AssignedToID
	}
	if ticket.DueDate != nil {
		snap[string(FieldDueDate)] = ticket.DueDate.Format(dueDateLayout)
	}
	return snap
}

// Diff returns the old and new values of every key whose value differs.
// Both maps are empty when nothing changed.
func Diff(before, after map[string]any) (oldValues, newValues map[string]any) {
	oldValues = map[string]any{}
	newValues = map[string]any{}
	for key, next := range after {
		prev := before[key]
		if prev == next {
			continue
		}
		oldValues[key] = prev
		newValues[key] = next
	}
	return oldValues, newValues
}
