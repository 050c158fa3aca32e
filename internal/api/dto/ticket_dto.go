package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/service-ticket/internal/domain"
)

// DueDateLayout is the wire format of ticket due dates.
const DueDateLayout = "2006-01-02"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Severity     string  `json:"severity"`
	AssignedToID *string `json:"assignedToId"`
	DueDate      *string `json:"dueDate"`
}

// UpdateTicketRequest is a partial update; absent fields are left untouched.
type UpdateTicketRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Severity     *string `json:"severity"`
	Status       *string `json:"status"`
	AssignedToID *string `json:"assignedToId"`
	DueDate      *string `json:"dueDate"`
	Reason       string  `json:"reason"`
}

// DeleteTicketRequest optional body of DELETE /tickets/:id.
type DeleteTicketRequest struct {
	Reason string `json:"reason"`
}

// TicketResponse represents one ticket.
type TicketResponse struct {
	ID           string                `json:"id"`
	TicketNumber string                `json:"ticketNumber"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Severity     domain.TicketSeverity `json:"severity"`
	Status       domain.TicketStatus   `json:"status"`
	AssignedToID *string               `json:"assignedToId"`
	CreatedByID  string                `json:"createdById"`
	DueDate      *string               `json:"dueDate"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Data       []TicketResponse `json:"data"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
}

// HistoryResponse represents one audit entry.
type HistoryResponse struct {
	ID         string               `json:"id"`
	TicketID   string               `json:"ticketId"`
	ActionType domain.HistoryAction `json:"actionType"`
	OldValue   map[string]any       `json:"oldValue"`
	NewValue   map[string]any       `json:"newValue"`
	Reason     string               `json:"reason"`
	ChangedBy  string               `json:"changedBy"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// TransitionsResponse lists the statuses reachable from each status.
type TransitionsResponse struct {
	Transitions map[domain.TicketStatus][]domain.TicketStatus `json:"transitions"`
}

// NewTicketResponse maps a ticket for the wire.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:           ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Title:        ticket.Title,
		Description:  ticket.Description,
		Severity:     ticket.Severity,
		Status:       ticket.Status,
		AssignedToID: ticket.AssignedToID,
		CreatedByID:  ticket.CreatedByID,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
	if ticket.DueDate != nil {
		due := ticket.DueDate.Format(DueDateLayout)
		resp.DueDate = &due
	}
	return resp
}

// NewTicketListResponse maps a page of tickets.
func NewTicketListResponse(tickets []domain.Ticket, total, limit, offset int) TicketListResponse {
	data := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		data = append(data, NewTicketResponse(&tickets[i]))
	}
	if limit <= 0 {
		limit = 1
	}
	return TicketListResponse{
		Data:       data,
		Page:       offset/limit + 1,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

// NewHistoryResponses maps audit entries, preserving order.
func NewHistoryResponses(entries []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, HistoryResponse{
			ID:         entry.ID,
			TicketID:   entry.TicketID,
			ActionType: entry.ActionType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			Reason:     entry.Reason,
			ChangedBy:  entry.ChangedBy,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

// ParseDueDate accepts YYYY-MM-DD or RFC3339. Empty input yields nil.
func ParseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if due, err := time.Parse(DueDateLayout, value); err == nil {
		return &due, nil
	}
	due, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q", value)
	}
	due = time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return &due, nil
}

// ParseDueDateUpdate is ParseDueDate for PATCH bodies: an explicit empty
// string yields a zero time, which clears the due date.
func ParseDueDateUpdate(raw *string) (*time.Time, error) {
	if raw != nil && strings.TrimSpace(*raw) == "" {
		return &time.Time{}, nil
	}
	return ParseDueDate(raw)
}

// ParseStatuses splits a comma separated status list in any casing.
func ParseStatuses(raw string) ([]domain.TicketStatus, error) {
	var out []domain.TicketStatus
	for _, part := range splitList(raw) {
		status, err := domain.ParseTicketStatus(part)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

// ParseSeverities splits a comma separated severity list in any casing.
func ParseSeverities(raw string) ([]domain.TicketSeverity, error) {
	var out []domain.TicketSeverity
	for _, part := range splitList(raw) {
		severity, err := domain.ParseTicketSeverity(part)
		if err != nil {
			return nil, err
		}
		out = append(out, severity)
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
