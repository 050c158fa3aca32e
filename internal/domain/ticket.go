package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates workflow stages for tickets.
type TicketStatus string

const (
	TicketStatusDraft   TicketStatus = "DRAFT"
	TicketStatusReview  TicketStatus = "REVIEW"
	TicketStatusPending TicketStatus = "PENDING"
	TicketStatusOpen    TicketStatus = "OPEN"
	TicketStatusClosed  TicketStatus = "CLOSED"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusDraft,
	TicketStatusReview,
	TicketStatusPending,
	TicketStatusOpen,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseTicketStatus accepts any casing and returns the canonical status.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("invalid status: %s", raw)
	}
	return status, nil
}

// TicketSeverity enumerates business priority; see Rank for ordering.
type TicketSeverity string

const (
	TicketSeverityEasy     TicketSeverity = "EASY"
	TicketSeverityLow      TicketSeverity = "LOW"
	TicketSeverityMedium   TicketSeverity = "MEDIUM"
	TicketSeverityHigh     TicketSeverity = "HIGH"
	TicketSeverityVeryHigh TicketSeverity = "VERY_HIGH"
)

// TicketSeverities lists severities from lowest to highest.
var TicketSeverities = []TicketSeverity{
	TicketSeverityEasy,
	TicketSeverityLow,
	TicketSeverityMedium,
	TicketSeverityHigh,
	TicketSeverityVeryHigh,
}

// Rank returns 1 (EASY) through 5 (VERY_HIGH), or 0 for unknown values.
func (s TicketSeverity) Rank() int {
	for i, known := range TicketSeverities {
		if s == known {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s TicketSeverity) Valid() bool {
	return s.Rank() > 0
}

// ParseTicketSeverity accepts any casing and returns the canonical severity.
func ParseTicketSeverity(raw string) (TicketSeverity, error) {
	severity := TicketSeverity(strings.ToUpper(strings.TrimSpace(raw)))
	if !severity.Valid() {
		return "", fmt.Errorf("invalid severity: %s", raw)
	}
	return severity, nil
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           string
	TicketNumber string
	Title        string
	Description  string
	Severity     TicketSeverity
	Status       TicketStatus
	AssignedToID *string
	CreatedByID  string
	DueDate      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reports whether the ticket has been soft deleted.
func (t *Ticket) Deleted() bool {
	return t.DeletedAt != nil
}
