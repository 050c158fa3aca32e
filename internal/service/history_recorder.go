package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/repository"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

// Default history reasons.
const (
	ReasonTicketCreated  = "Ticket created"
	ReasonTicketUpdated  = "Ticket updated"
	ReasonTicketApproved = "Ticket approved by Manager"
	ReasonTicketDeleted  = "Ticket deleted"
)

// HistoryEntry is one audit record to be written.
type HistoryEntry struct {
	TicketID string
	ActorID  string
	Action   domain.HistoryAction
	OldValue map[string]any
	NewValue map[string]any
	Reason   string
	// ReasonRequired rejects the entry instead of substituting the default reason.
	ReasonRequired bool
}

// HistoryRecorder writes immutable audit entries. Callers pass the
// transaction-bound repository so the entry commits with the mutation.
type HistoryRecorder struct {
	now   func() time.Time
	newID func() string
}

// NewHistoryRecorder builds a recorder using the given clock and id source.
func NewHistoryRecorder(now func() time.Time, newID func() string) *HistoryRecorder {
	return &HistoryRecorder{now: now, newID: newID}
}

// Record persists entry through repo and returns the stored record.
func (r *HistoryRecorder) Record(ctx context.Context, repo repository.TicketHistoryRepository, entry HistoryEntry) (*domain.TicketHistory, error) {
	if entry.TicketID == "" || entry.ActorID == "" {
		return nil, apperrors.NewValidationError("history entry requires ticket and actor", nil)
	}

	reason := strings.TrimSpace(entry.Reason)
	if reason == "" {
		if entry.ReasonRequired {
			return nil, apperrors.NewValidationError("reason is required for this change", map[string]any{
				"action": string(entry.Action),
			})
		}
		reason = ReasonTicketUpdated
	}

	record := &domain.TicketHistory{
		ID:         r.newID(),
		TicketID:   entry.TicketID,
		ActionType: entry.Action,
		OldValue:   entry.OldValue,
		NewValue:   entry.NewValue,
		Reason:     reason,
		ChangedBy:  entry.ActorID,
		CreatedAt:  r.now().UTC(),
	}
	if err := repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}
