package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/events"
	"github.com/spec-kit/service-ticket/internal/observability"
	"github.com/spec-kit/service-ticket/internal/repository"
	"github.com/spec-kit/service-ticket/internal/workflow"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

// Actor identifies who performs a mutation. The role is trusted as given.
type Actor struct {
	ID   string
	Role domain.UserRole
}

// TicketService coordinates ticket workflows. It is the only writer of
// ticket status, severity and assignee.
type TicketService struct {
	store      repository.Store
	numbers    *TicketNumberGenerator
	recorder   *HistoryRecorder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store             repository.Store
	Dispatcher        events.Dispatcher
	Metrics           *observability.Metrics
	Logger            *zap.Logger
	NumberMaxAttempts int
	// Clock and NewID default to time.Now and uuid.NewString.
	Clock func() time.Time
	NewID func() string
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title        string
	Description  string
	Severity     domain.TicketSeverity
	AssignedToID *string
	DueDate      *time.Time
}

// TicketUpdateInput is a partial update. Nil fields are left untouched; an
// empty AssignedToID clears the assignee.
type TicketUpdateInput struct {
	Title        *string
	Description  *string
	Severity     *domain.TicketSeverity
	Status       *domain.TicketStatus
	AssignedToID *string
	DueDate      *time.Time
	Reason       string
}

func (in TicketUpdateInput) changeSet() workflow.ChangeSet {
	return workflow.ChangeSet{
		Title:        in.Title,
		Description:  in.Description,
		Severity:     in.Severity,
		Status:       in.Status,
		AssignedToID: in.AssignedToID,
		DueDate:      in.DueDate,
		Reason:       in.Reason,
	}
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Tickets []domain.Ticket
	Total   int
	Limit   int
	Offset  int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &TicketService{
		store:      deps.Store,
		numbers:    NewTicketNumberGenerator(deps.NumberMaxAttempts, deps.Metrics, logger),
		recorder:   NewHistoryRecorder(now, newID),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
		newID:      newID,
	}
}

// Create stores a new DRAFT ticket with a freshly allocated number and its
// created history entry.
func (s *TicketService) Create(ctx context.Context, actorID string, input TicketCreateInput) (ticket *domain.Ticket, err error) {
	defer s.observe("create", &err)

	if strings.TrimSpace(actorID) == "" {
		return nil, apperrors.NewUnauthorized("actor is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	severity := input.Severity
	if severity == "" {
		severity = domain.TicketSeverityMedium
	}
	if !severity.Valid() {
		return nil, apperrors.NewValidationError("invalid severity", map[string]any{"severity": string(severity)})
	}

	now := s.now().UTC()
	created := domain.Ticket{
		ID:           s.newID(),
		Title:        title,
		Description:  description,
		Severity:     severity,
		Status:       workflow.InitialStatus(),
		AssignedToID: normalizeAssignee(input.AssignedToID),
		CreatedByID:  actorID,
		DueDate:      input.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.numbers.Allocate(ctx, s.store, now.Year(), func(tx repository.Store, number string) error {
		created.TicketNumber = number
		if err := tx.Tickets().Create(ctx, &created); err != nil {
			return err
		}
		snapshot := workflow.Snapshot(created)
		snapshot["ticketNumber"] = number
		_, err := s.recorder.Record(ctx, tx.History(), HistoryEntry{
			TicketID: created.ID,
			ActorID:  actorID,
			Action:   domain.HistoryActionCreated,
			NewValue: snapshot,
			Reason:   ReasonTicketCreated,
		})
		return err
	})
	if errors.Is(err, ErrTicketNumberExhausted) {
		return nil, apperrors.NewConflict("could not allocate a unique ticket number, retry the request", nil)
	}
	if err != nil {
		return nil, s.storeError("failed to create ticket", err)
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketCreated,
		TicketID:     created.ID,
		TicketNumber: created.TicketNumber,
		ActorID:      actorID,
		Payload: events.TicketCreatedPayload{
			Title:       created.Title,
			Severity:    created.Severity,
			Status:      created.Status,
			CreatedByID: created.CreatedByID,
		},
	})
	return &created, nil
}

// Update applies a role-checked partial update. Unchanged values produce no
// write and no history; otherwise the ticket and one status_changed entry
// carrying the whole diff are written together.
func (s *TicketService) Update(ctx context.Context, ticketID string, input TicketUpdateInput, actor Actor) (ticket *domain.Ticket, err error) {
	defer s.observe("update", &err)

	if err := validateUpdateInput(input); err != nil {
		return nil, err
	}

	var (
		result     domain.Ticket
		oldV, newV map[string]any
		reason     string
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return err
		}

		changes, guard := workflow.AuthorizeUpdate(workflow.UpdateContext{
			ActorID: actor.ID,
			Role:    actor.Role,
			Ticket:  *current,
			Changes: input.changeSet(),
		})
		if !guard.Allowed {
			return apperrors.NewValidationError(guard.Reason, nil)
		}
		if changes.Status != nil {
			if guard := workflow.CanTransition(current.Status, *changes.Status); !guard.Allowed {
				return apperrors.NewValidationError(guard.Reason, nil)
			}
		}

		updated := workflow.Apply(*current, changes)
		oldV, newV = workflow.Diff(workflow.Snapshot(*current), workflow.Snapshot(updated))
		if len(newV) == 0 {
			result = *current
			return nil
		}

		updated.UpdatedAt = s.now().UTC()
		if err := tx.Tickets().Update(ctx, &updated); err != nil {
			return err
		}
		reason = changes.Reason
		_, severityChanged := newV[string(workflow.FieldSeverity)]
		if _, err := s.recorder.Record(ctx, tx.History(), HistoryEntry{
			TicketID:       updated.ID,
			ActorID:        actor.ID,
			Action:         domain.HistoryActionStatusChanged,
			OldValue:       oldV,
			NewValue:       newV,
			Reason:         reason,
			ReasonRequired: actor.Role == domain.UserRoleManager && severityChanged,
		}); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, s.storeError("failed to update ticket", err)
	}

	if len(newV) > 0 {
		s.publishEvent(ctx, events.Event{
			Type:         events.EventTicketUpdated,
			TicketID:     result.ID,
			TicketNumber: result.TicketNumber,
			ActorID:      actor.ID,
			Payload:      events.TicketChangedPayload{OldValue: oldV, NewValue: newV, Reason: reason},
		})
	}
	return &result, nil
}

// Approve moves a DRAFT or REVIEW ticket to PENDING on behalf of a manager
// who did not create it.
func (s *TicketService) Approve(ctx context.Context, ticketID string, actor Actor) (ticket *domain.Ticket, err error) {
	defer s.observe("approve", &err)

	var (
		result     domain.Ticket
		oldV, newV map[string]any
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if guard := workflow.CanApprove(workflow.ApproveContext{ActorID: actor.ID, Role: actor.Role, Ticket: *current}); !guard.Allowed {
			return apperrors.NewValidationError(guard.Reason, nil)
		}
		target := workflow.ApprovedStatus()
		if guard := workflow.CanTransition(current.Status, target); !guard.Allowed {
			return apperrors.NewValidationError(guard.Reason, nil)
		}

		updated := workflow.Apply(*current, workflow.ChangeSet{}.WithStatus(target))
		updated.UpdatedAt = s.now().UTC()
		oldV, newV = workflow.Diff(workflow.Snapshot(*current), workflow.Snapshot(updated))
		if err := tx.Tickets().Update(ctx, &updated); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx.History(), HistoryEntry{
			TicketID: updated.ID,
			ActorID:  actor.ID,
			Action:   domain.HistoryActionStatusChanged,
			OldValue: oldV,
			NewValue: newV,
			Reason:   ReasonTicketApproved,
		}); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, s.storeError("failed to approve ticket", err)
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketApproved,
		TicketID:     result.ID,
		TicketNumber: result.TicketNumber,
		ActorID:      actor.ID,
		Payload:      events.TicketChangedPayload{OldValue: oldV, NewValue: newV, Reason: ReasonTicketApproved},
	})
	return &result, nil
}

// Remove soft deletes a ticket that has not been approved yet.
func (s *TicketService) Remove(ctx context.Context, ticketID, actorID, reason string) (err error) {
	defer s.observe("remove", &err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonTicketDeleted
	}

	var removed domain.Ticket
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if guard := workflow.CanDelete(current.Status); !guard.Allowed {
			return apperrors.NewValidationError(guard.Reason, nil)
		}

		now := s.now().UTC()
		if err := tx.Tickets().SoftDelete(ctx, current.ID, now); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx.History(), HistoryEntry{
			TicketID: current.ID,
			ActorID:  actorID,
			Action:   domain.HistoryActionDeleted,
			OldValue: workflow.Snapshot(*current),
			NewValue: map[string]any{"deletedAt": now.Format(time.RFC3339)},
			Reason:   reason,
		}); err != nil {
			return err
		}
		removed = *current
		return nil
	})
	if err != nil {
		return s.storeError("failed to delete ticket", err)
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketDeleted,
		TicketID:     removed.ID,
		TicketNumber: removed.TicketNumber,
		ActorID:      actorID,
		Payload:      events.TicketDeletedPayload{Status: removed.Status, Reason: reason},
	})
	return nil
}

// History returns the audit trail of a ticket, newest first. Soft-deleted
// tickets keep their history readable.
func (s *TicketService) History(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	entries, err := s.store.History().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, s.storeError("failed to load ticket history", err)
	}
	return entries, nil
}

// FindAll lists live tickets matching filter.
func (s *TicketService) FindAll(ctx context.Context, filter repository.TicketFilter) (*TicketPage, error) {
	tickets, total, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, s.storeError("failed to list tickets", err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	limit, offset := filter.PageBounds()
	return &TicketPage{Tickets: tickets, Total: total, Limit: limit, Offset: offset}, nil
}

// FindOne returns a live ticket by id.
func (s *TicketService) FindOne(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.storeError("failed to load ticket", err)
	}
	return ticket, nil
}

// ApplyExternalStatus sets the status of the ticket with the given number on
// behalf of an import or automation actor. Only the transition graph is
// enforced. It reports whether the status actually changed.
func (s *TicketService) ApplyExternalStatus(ctx context.Context, ticketNumber string, status domain.TicketStatus, actorID, reason string) (ticket *domain.Ticket, changed bool, err error) {
	defer s.observe("apply_external_status", &err)

	if !status.Valid() {
		return nil, false, apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}

	var (
		result     domain.Ticket
		oldV, newV map[string]any
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Tickets().GetByNumber(ctx, ticketNumber)
		if err != nil {
			return err
		}
		if current.Status == status {
			result = *current
			return nil
		}
		if guard := workflow.CanTransition(current.Status, status); !guard.Allowed {
			return apperrors.NewValidationError(guard.Reason, nil)
		}

		updated := workflow.Apply(*current, workflow.ChangeSet{}.WithStatus(status))
		updated.UpdatedAt = s.now().UTC()
		oldV, newV = workflow.Diff(workflow.Snapshot(*current), workflow.Snapshot(updated))
		if err := tx.Tickets().Update(ctx, &updated); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx.History(), HistoryEntry{
			TicketID: updated.ID,
			ActorID:  actorID,
			Action:   domain.HistoryActionStatusChanged,
			OldValue: oldV,
			NewValue: newV,
			Reason:   reason,
		}); err != nil {
			return err
		}
		result = updated
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, s.storeError("failed to update ticket status", err)
	}

	if changed {
		s.publishEvent(ctx, events.Event{
			Type:         events.EventTicketStatusChanged,
			TicketID:     result.ID,
			TicketNumber: result.TicketNumber,
			ActorID:      actorID,
			Payload:      events.TicketChangedPayload{OldValue: oldV, NewValue: newV, Reason: reason},
		})
	}
	return &result, changed, nil
}

func validateUpdateInput(input TicketUpdateInput) error {
	if input.Severity != nil && !input.Severity.Valid() {
		return apperrors.NewValidationError("invalid severity", map[string]any{"severity": string(*input.Severity)})
	}
	if input.Status != nil && !input.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": string(*input.Status)})
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return apperrors.NewValidationError("title must not be empty", nil)
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		return apperrors.NewValidationError("description must not be empty", nil)
	}
	return nil
}

func normalizeAssignee(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	return &trimmed
}

// storeError passes domain errors through and wraps everything else.
func (s *TicketService) storeError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", nil)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	s.logger.Error(op, zap.Error(err))
	return apperrors.NewStoreFailure(op, err)
}

func (s *TicketService) observe(operation string, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = apperrors.ToDomainError(*errp).Code
	}
	s.metrics.RecordTicketOperation(operation, outcome)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = s.newID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
