package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/events"
	"github.com/spec-kit/service-ticket/internal/repository"
	"github.com/spec-kit/service-ticket/internal/service"
	"github.com/spec-kit/service-ticket/internal/workflow"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

func TestTicketService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ticket := env.create(t, associateID, "Printer jammed")
	if ticket.Status != domain.TicketStatusDraft {
		t.Fatalf("new ticket status = %s, want DRAFT", ticket.Status)
	}
	if ticket.TicketNumber != "TKT-2026-000001" {
		t.Fatalf("TicketNumber = %q, want TKT-2026-000001", ticket.TicketNumber)
	}
	history := env.history(t, ticket.ID)
	if len(history) != 1 || history[0].ActionType != domain.HistoryActionCreated {
		t.Fatalf("expected one created entry, got %+v", history)
	}
	if history[0].Reason != service.ReasonTicketCreated {
		t.Errorf("created reason = %q", history[0].Reason)
	}
	if history[0].NewValue["ticketNumber"] != ticket.TicketNumber {
		t.Errorf("created entry missing ticket number: %v", history[0].NewValue)
	}

	// manager escalates severity
	updated, err := env.tickets.Update(ctx, ticket.ID, service.TicketUpdateInput{
		Severity: severityPtr(domain.TicketSeverityHigh),
		Reason:   "escalating",
	}, manager)
	if err != nil {
		t.Fatalf("manager severity update failed: %v", err)
	}
	if updated.Status != domain.TicketStatusReview || updated.Severity != domain.TicketSeverityHigh {
		t.Fatalf("after escalation got status %s severity %s", updated.Status, updated.Severity)
	}
	history = env.history(t, ticket.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	latest := history[0]
	if latest.ActionType != domain.HistoryActionStatusChanged || latest.Reason != "escalating" || latest.ChangedBy != managerID {
		t.Errorf("unexpected escalation entry %+v", latest)
	}
	wantOld := map[string]any{"severity": "MEDIUM", "status": "DRAFT"}
	wantNew := map[string]any{"severity": "HIGH", "status": "REVIEW"}
	if fmt.Sprint(latest.OldValue) != fmt.Sprint(wantOld) || fmt.Sprint(latest.NewValue) != fmt.Sprint(wantNew) {
		t.Errorf("diff = %v -> %v, want %v -> %v", latest.OldValue, latest.NewValue, wantOld, wantNew)
	}

	// creator edits while in review
	updated, err = env.tickets.Update(ctx, ticket.ID, service.TicketUpdateInput{
		Description: strPtr("Printer on floor 3 is jammed again"),
	}, associate)
	if err != nil {
		t.Fatalf("associate edit failed: %v", err)
	}
	if updated.Status != domain.TicketStatusDraft {
		t.Fatalf("edit in review should reset to DRAFT, got %s", updated.Status)
	}
	history = env.history(t, ticket.ID)
	if len(history) != 3 || history[0].Reason != service.ReasonTicketUpdated {
		t.Fatalf("expected default reason on third entry, got %+v", history[0])
	}

	approved, err := env.tickets.Approve(ctx, ticket.ID, manager)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != domain.TicketStatusPending {
		t.Fatalf("approved status = %s, want PENDING", approved.Status)
	}
	history = env.history(t, ticket.ID)
	if len(history) != 4 || history[0].Reason != service.ReasonTicketApproved {
		t.Fatalf("expected approval entry, got %+v", history[0])
	}

	err = env.tickets.Remove(ctx, ticket.ID, managerID, "")
	expectCode(t, err, apperrors.CodeValidationFailed)
	expectMessage(t, err, workflow.ReasonDeleteStatus)
	if got := len(env.history(t, ticket.ID)); got != 4 {
		t.Errorf("rejected delete wrote history: %d entries", got)
	}

	var types []events.EventType
	for _, event := range env.events() {
		types = append(types, event.Type)
	}
	want := []events.EventType{events.EventTicketCreated, events.EventTicketUpdated, events.EventTicketUpdated, events.EventTicketApproved}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Errorf("published events = %v, want %v", types, want)
	}
}

func TestTicketService_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		actorID string
		input   service.TicketCreateInput
		code    string
	}{
		{name: "missing actor", input: service.TicketCreateInput{Title: "t", Description: "d"}, code: apperrors.CodeUnauthorized},
		{name: "blank title", actorID: associateID, input: service.TicketCreateInput{Title: "  ", Description: "d"}, code: apperrors.CodeValidationFailed},
		{name: "blank description", actorID: associateID, input: service.TicketCreateInput{Title: "t"}, code: apperrors.CodeValidationFailed},
		{name: "bad severity", actorID: associateID, input: service.TicketCreateInput{Title: "t", Description: "d", Severity: "URGENT"}, code: apperrors.CodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.tickets.Create(context.Background(), tt.actorID, tt.input)
			expectCode(t, err, tt.code)
			page, err := env.tickets.FindAll(context.Background(), repository.TicketFilter{})
			if err != nil {
				t.Fatalf("FindAll failed: %v", err)
			}
			if page.Total != 0 {
				t.Errorf("rejected create stored %d tickets", page.Total)
			}
		})
	}
}

func TestTicketService_UpdateRejections(t *testing.T) {
	tests := []struct {
		name    string
		creator string
		review  bool
		actor   service.Actor
		input   service.TicketUpdateInput
		reason  string
	}{
		{
			name:    "associate edits someone else's ticket",
			creator: "associate-b",
			actor:   associate,
			input:   service.TicketUpdateInput{Title: strPtr("mine now")},
			reason:  workflow.ReasonAssociateNotOwner,
		},
		{
			name:    "associate changes status",
			creator: associateID,
			actor:   associate,
			input:   service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusOpen)},
			reason:  workflow.ReasonAssociateStatus,
		},
		{
			name:    "associate changes severity in review",
			creator: associateID,
			review:  true,
			actor:   associate,
			input:   service.TicketUpdateInput{Severity: severityPtr(domain.TicketSeverityLow)},
			reason:  workflow.ReasonAssociateSeverityInRev,
		},
		{
			name:    "manager changes severity without reason",
			creator: associateID,
			actor:   manager,
			input:   service.TicketUpdateInput{Severity: severityPtr(domain.TicketSeverityHigh)},
			reason:  workflow.ReasonManagerSeverityReason,
		},
		{
			name:    "manager changes title",
			creator: associateID,
			actor:   manager,
			input:   service.TicketUpdateInput{Title: strPtr("Renamed")},
			reason:  workflow.ReasonManagerFields,
		},
		{
			name:    "manager changes title of own ticket",
			creator: managerID,
			actor:   manager,
			input:   service.TicketUpdateInput{Title: strPtr("Renamed")},
			reason:  workflow.ReasonManagerIsOwner,
		},
		{
			name:    "manager changes status",
			creator: associateID,
			actor:   manager,
			input:   service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusPending)},
			reason:  workflow.ReasonManagerStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			ticket := env.create(t, tt.creator, "Broken VPN")
			entries := 1
			if tt.review {
				if _, err := env.tickets.Update(ctx, ticket.ID, service.TicketUpdateInput{
					Severity: severityPtr(domain.TicketSeverityHigh),
					Reason:   "escalating",
				}, service.Actor{ID: otherMgrID, Role: domain.UserRoleManager}); err != nil {
					t.Fatalf("setup escalation failed: %v", err)
				}
				entries++
			}
			before := env.reload(t, ticket.ID)

			_, err := env.tickets.Update(ctx, ticket.ID, tt.input, tt.actor)
			expectCode(t, err, apperrors.CodeValidationFailed)
			expectMessage(t, err, tt.reason)

			after := env.reload(t, ticket.ID)
			if fmt.Sprint(workflow.Snapshot(*after)) != fmt.Sprint(workflow.Snapshot(*before)) || !after.UpdatedAt.Equal(before.UpdatedAt) {
				t.Errorf("rejected update modified the ticket: %+v", after)
			}
			if got := len(env.history(t, ticket.ID)); got != entries {
				t.Errorf("rejected update wrote history: %d entries, want %d", got, entries)
			}
		})
	}
}

func TestTicketService_UpdateSameValuesIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.create(t, associateID, "Laptop fan noise")

	tests := []struct {
		name  string
		actor service.Actor
		input service.TicketUpdateInput
	}{
		{name: "associate resends status", actor: associate, input: service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusDraft)}},
		{name: "associate resends title", actor: associate, input: service.TicketUpdateInput{Title: strPtr(ticket.Title)}},
		{name: "manager resends severity", actor: manager, input: service.TicketUpdateInput{Severity: severityPtr(domain.TicketSeverityMedium)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.tickets.Update(ctx, ticket.ID, tt.input, tt.actor)
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			if got.Status != domain.TicketStatusDraft {
				t.Errorf("status = %s, want DRAFT", got.Status)
			}
			if n := len(env.history(t, ticket.ID)); n != 1 {
				t.Errorf("no-op update wrote history: %d entries", n)
			}
		})
	}
	if n := len(env.events()); n != 1 {
		t.Errorf("no-op updates published events: %d", n)
	}
}

func TestTicketService_UpdateMissingTicket(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.tickets.Update(context.Background(), "missing", service.TicketUpdateInput{Title: strPtr("x")}, associate)
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestTicketService_Approve(t *testing.T) {
	tests := []struct {
		name    string
		creator string
		actor   service.Actor
		opened  bool
		reason  string
	}{
		{name: "associate cannot approve", creator: "associate-b", actor: associate, reason: workflow.ReasonApproveRole},
		{name: "creator cannot approve", creator: managerID, actor: manager, reason: workflow.ReasonApproveOwnTicket},
		{name: "open ticket cannot be approved", creator: associateID, actor: manager, opened: true, reason: workflow.ReasonApproveStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			ticket := env.create(t, tt.creator, "Badge reader offline")
			if tt.opened {
				if _, _, err := env.tickets.ApplyExternalStatus(ctx, ticket.TicketNumber, domain.TicketStatusOpen, "system", "setup"); err != nil {
					t.Fatalf("setup failed: %v", err)
				}
			}
			_, err := env.tickets.Approve(ctx, ticket.ID, tt.actor)
			expectCode(t, err, apperrors.CodeValidationFailed)
			expectMessage(t, err, tt.reason)
		})
	}
}

func TestTicketService_ApproveFromReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.create(t, associateID, "Badge reader offline")
	if _, err := env.tickets.Update(ctx, ticket.ID, service.TicketUpdateInput{
		Severity: severityPtr(domain.TicketSeverityLow),
		Reason:   "not urgent",
	}, manager); err != nil {
		t.Fatalf("severity downgrade failed: %v", err)
	}
	if got := env.reload(t, ticket.ID).Status; got != domain.TicketStatusReview {
		t.Fatalf("downgrade should move to REVIEW, got %s", got)
	}

	approved, err := env.tickets.Approve(ctx, ticket.ID, manager)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != domain.TicketStatusPending {
		t.Errorf("status = %s, want PENDING", approved.Status)
	}
}

func TestTicketService_Remove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.create(t, associateID, "Desk phone dead")

	if err := env.tickets.Remove(ctx, ticket.ID, managerID, "duplicate"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	_, err := env.tickets.FindOne(ctx, ticket.ID)
	expectCode(t, err, apperrors.CodeNotFound)

	history := env.history(t, ticket.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].ActionType != domain.HistoryActionDeleted || history[0].Reason != "duplicate" {
		t.Errorf("unexpected delete entry %+v", history[0])
	}

	err = env.tickets.Remove(ctx, ticket.ID, managerID, "")
	expectCode(t, err, apperrors.CodeNotFound)

	// the deleted number is never reused
	next := env.create(t, associateID, "Desk phone still dead")
	if next.TicketNumber != "TKT-2026-000002" {
		t.Errorf("TicketNumber = %q, want TKT-2026-000002", next.TicketNumber)
	}
}

func TestTicketService_NumberCollisionRetries(t *testing.T) {
	env := newTestEnv(t, withStore(newCollidingStore(2)))

	ticket := env.create(t, associateID, "Monitor flicker")
	if ticket.TicketNumber != "TKT-2026-000001" {
		t.Errorf("TicketNumber = %q, want TKT-2026-000001", ticket.TicketNumber)
	}
	if got := env.counter(t, "service_ticket_number_conflicts_total"); got != 2 {
		t.Errorf("conflict counter = %v, want 2", got)
	}
	if got := len(env.history(t, ticket.ID)); got != 1 {
		t.Errorf("history entries = %d, want 1", got)
	}
}

func TestTicketService_NumberCollisionExhausted(t *testing.T) {
	env := newTestEnv(t, withStore(newCollidingStore(10)), withMaxAttempts(3))

	_, err := env.tickets.Create(context.Background(), associateID, service.TicketCreateInput{
		Title:       "Monitor flicker",
		Description: "second screen",
	})
	expectCode(t, err, apperrors.CodeConflict)
	if got := env.counter(t, "service_ticket_number_conflicts_total"); got != 3 {
		t.Errorf("conflict counter = %v, want 3", got)
	}
	page, err := env.tickets.FindAll(context.Background(), repository.TicketFilter{})
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("exhausted create stored %d tickets", page.Total)
	}
}

func TestTicketService_ConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	env := newTestEnv(t)
	const workers = 10

	var wg sync.WaitGroup
	numbers := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticket, err := env.tickets.Create(context.Background(), associateID, service.TicketCreateInput{
				Title:       fmt.Sprintf("Ticket %d", i),
				Description: "load",
			})
			errs[i] = err
			if err == nil {
				numbers[i] = ticket.TicketNumber
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}
	sort.Strings(numbers)
	for i, number := range numbers {
		if want := workflow.FormatTicketNumber(2026, i+1); number != want {
			t.Errorf("numbers[%d] = %q, want %q", i, number, want)
		}
	}
}

func TestTicketService_ApplyExternalStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.create(t, associateID, "Wifi drops")

	opened, changed, err := env.tickets.ApplyExternalStatus(ctx, ticket.TicketNumber, domain.TicketStatusOpen, "system", "sync")
	if err != nil {
		t.Fatalf("ApplyExternalStatus failed: %v", err)
	}
	if !changed || opened.Status != domain.TicketStatusOpen {
		t.Fatalf("changed=%v status=%s, want OPEN", changed, opened.Status)
	}

	_, changed, err = env.tickets.ApplyExternalStatus(ctx, ticket.TicketNumber, domain.TicketStatusOpen, "system", "sync")
	if err != nil || changed {
		t.Fatalf("same status: changed=%v err=%v", changed, err)
	}

	_, _, err = env.tickets.ApplyExternalStatus(ctx, ticket.TicketNumber, domain.TicketStatusDraft, "system", "sync")
	expectCode(t, err, apperrors.CodeValidationFailed)
	expectMessage(t, err, "invalid status transition from OPEN to DRAFT")

	_, _, err = env.tickets.ApplyExternalStatus(ctx, "TKT-2026-999999", domain.TicketStatusClosed, "system", "sync")
	expectCode(t, err, apperrors.CodeNotFound)

	history := env.history(t, ticket.ID)
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].ChangedBy != "system" || history[0].Reason != "sync" {
		t.Errorf("unexpected external entry %+v", history[0])
	}
	last := env.events()[len(env.events())-1]
	if last.Type != events.EventTicketStatusChanged {
		t.Errorf("last event = %s, want %s", last.Type, events.EventTicketStatusChanged)
	}
}

func TestTicketService_FindAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.create(t, associateID, fmt.Sprintf("Printer %d", i))
	}
	env.create(t, associateID, "Scanner")

	search := "printer"
	page, err := env.tickets.FindAll(ctx, repository.TicketFilter{SearchTerm: &search, Limit: 2})
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if page.Total != 3 || len(page.Tickets) != 2 || page.Limit != 2 {
		t.Errorf("got total=%d len=%d limit=%d", page.Total, len(page.Tickets), page.Limit)
	}
	if page.Tickets[0].Title != "Printer 2" {
		t.Errorf("first ticket = %q, want newest first", page.Tickets[0].Title)
	}
}

func TestTicketService_HistoryFailureRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(env *testEnv, ticketID string) error
	}{
		{
			name: "update",
			mutate: func(env *testEnv, ticketID string) error {
				_, err := env.tickets.Update(context.Background(), ticketID, service.TicketUpdateInput{
					Severity: severityPtr(domain.TicketSeverityHigh),
					Reason:   "customer escalated",
				}, manager)
				return err
			},
		},
		{
			name: "approve",
			mutate: func(env *testEnv, ticketID string) error {
				_, err := env.tickets.Approve(context.Background(), ticketID, manager)
				return err
			},
		},
		{
			name: "remove",
			mutate: func(env *testEnv, ticketID string) error {
				return env.tickets.Remove(context.Background(), ticketID, managerID, "duplicate")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failing := false
			env := newTestEnv(t, withStore(newFailingHistoryStore(&failing)))
			ticket := env.create(t, associateID, "Printer")
			failing = true

			err := tt.mutate(env, ticket.ID)
			expectCode(t, err, apperrors.CodeStoreFailure)
			if !errors.Is(err, errHistoryDown) {
				t.Errorf("error %v does not wrap the history failure", err)
			}

			after := env.reload(t, ticket.ID)
			if after.Status != domain.TicketStatusDraft || after.Severity != domain.TicketSeverityMedium {
				t.Errorf("ticket changed to status=%s severity=%s", after.Status, after.Severity)
			}
			if !after.UpdatedAt.Equal(ticket.UpdatedAt) {
				t.Errorf("updatedAt moved from %v to %v", ticket.UpdatedAt, after.UpdatedAt)
			}
			if history := env.history(t, ticket.ID); len(history) != 1 || history[0].ActionType != domain.HistoryActionCreated {
				t.Errorf("history = %+v, want only the creation entry", history)
			}
			if published := env.events(); len(published) != 1 {
				t.Errorf("published %d events, want only ticket_created", len(published))
			}
		})
	}
}

func TestTicketService_ClearDueDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.create(t, associateID, "Printer")

	due := ticket.CreatedAt.AddDate(0, 0, 7).Truncate(24 * time.Hour)
	if _, err := env.tickets.Update(ctx, ticket.ID, service.TicketUpdateInput{DueDate: &due}, associate); err != nil {
		t.Fatalf("set due date: %v", err)
	}
	if got := env.reload(t, ticket.ID).DueDate; got == nil || !got.Equal(due) {
		t.Fatalf("DueDate = %v, want %v", got, due)
	}

	if _, err := env.tickets.Update(ctx, ticket.ID, service.TicketUpdateInput{DueDate: &time.Time{}}, associate); err != nil {
		t.Fatalf("clear due date: %v", err)
	}
	if got := env.reload(t, ticket.ID).DueDate; got != nil {
		t.Errorf("DueDate = %v, want nil", *got)
	}
	history := env.history(t, ticket.ID)
	if len(history) != 3 || history[0].NewValue["dueDate"] != nil {
		t.Errorf("unexpected history %+v", history)
	}
}
