package workflow

import (
	"fmt"

	"github.com/spec-kit/service-ticket/internal/domain"
)

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusDraft:   {domain.TicketStatusReview, domain.TicketStatusPending, domain.TicketStatusOpen},
	domain.TicketStatusReview:  {domain.TicketStatusDraft, domain.TicketStatusPending, domain.TicketStatusOpen, domain.TicketStatusClosed},
	domain.TicketStatusPending: {domain.TicketStatusDraft, domain.TicketStatusReview, domain.TicketStatusOpen, domain.TicketStatusClosed},
	domain.TicketStatusOpen:    {domain.TicketStatusPending, domain.TicketStatusClosed},
	domain.TicketStatusClosed:  {domain.TicketStatusOpen},
}

// InitialStatus returns the status every new ticket starts in.
func InitialStatus() domain.TicketStatus {
	return domain.TicketStatusDraft
}

// AllowedTransitions returns the statuses reachable from current in one step.
// The returned slice is a copy.
func AllowedTransitions(current domain.TicketStatus) []domain.TicketStatus {
	next := allowedTransitions[current]
	out := make([]domain.TicketStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition evaluates whether a ticket may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to domain.TicketStatus) GuardResult {
	if from == to {
		return allow()
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return allow()
		}
	}
	return deny(fmt.Sprintf("invalid status transition from %s to %s", from, to))
}
