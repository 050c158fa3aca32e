package service_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/events"
	"github.com/spec-kit/service-ticket/internal/observability"
	"github.com/spec-kit/service-ticket/internal/repository"
	"github.com/spec-kit/service-ticket/internal/repository/sqlite"
	"github.com/spec-kit/service-ticket/internal/service"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

const (
	associateID = "associate-a"
	managerID   = "manager-m"
	otherMgrID  = "manager-n"
)

var (
	associate = service.Actor{ID: associateID, Role: domain.UserRoleAssociate}
	manager   = service.Actor{ID: managerID, Role: domain.UserRoleManager}
)

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{next: start}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(time.Second)
	return now
}

type testEnv struct {
	store   *sqlite.Store
	tickets *service.TicketService
	metrics *observability.Metrics

	mu        sync.Mutex
	published []events.Event
}

func (e *testEnv) events() []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]events.Event(nil), e.published...)
}

type envOption func(*service.TicketDependencies)

func withStore(wrap func(repository.Store) repository.Store) envOption {
	return func(deps *service.TicketDependencies) {
		deps.Store = wrap(deps.Store)
	}
}

func withClock(start time.Time) envOption {
	return func(deps *service.TicketDependencies) {
		deps.Clock = newStepClock(start).Now
	}
}

func withMaxAttempts(n int) envOption {
	return func(deps *service.TicketDependencies) {
		deps.NumberMaxAttempts = n
	}
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
	})

	store := sqlite.NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return store
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{store: openStore(t), metrics: observability.NewMetrics()}
	dispatcher := events.NewInMemoryDispatcher()
	events.SubscribeAll(dispatcher, func(_ context.Context, event events.Event) error {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.published = append(env.published, event)
		return nil
	})

	deps := service.TicketDependencies{
		Store:             env.store,
		Dispatcher:        dispatcher,
		Metrics:           env.metrics,
		NumberMaxAttempts: 5,
		Clock:             newStepClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)).Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.tickets = service.NewTicketService(deps)
	return env
}

func (e *testEnv) create(t *testing.T, actorID, title string) *domain.Ticket {
	t.Helper()
	ticket, err := e.tickets.Create(context.Background(), actorID, service.TicketCreateInput{
		Title:       title,
		Description: "Printer on floor 3 is jammed",
	})
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", title, err)
	}
	return ticket
}

func (e *testEnv) history(t *testing.T, ticketID string) []domain.TicketHistory {
	t.Helper()
	entries, err := e.tickets.History(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	return entries
}

func (e *testEnv) reload(t *testing.T, ticketID string) *domain.Ticket {
	t.Helper()
	ticket, err := e.store.Tickets().GetByID(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("GetByID(%s) failed: %v", ticketID, err)
	}
	return ticket
}

func (e *testEnv) counter(t *testing.T, name string) float64 {
	t.Helper()
	families, err := e.metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func expectMessage(t *testing.T, err error, message string) {
	t.Helper()
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Message != message {
		t.Fatalf("error message = %q, want %q", domainErr.Message, message)
	}
}

func strPtr(s string) *string { return &s }

func severityPtr(s domain.TicketSeverity) *domain.TicketSeverity { return &s }

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }

// collidingStore reports a unique violation for the first failures ticket inserts.
type collidingStore struct {
	repository.Store
	mu       *sync.Mutex
	failures *int
}

func newCollidingStore(failures int) func(repository.Store) repository.Store {
	return func(inner repository.Store) repository.Store {
		return &collidingStore{Store: inner, mu: &sync.Mutex{}, failures: &failures}
	}
}

func (s *collidingStore) Tickets() repository.TicketRepository {
	return &collidingTickets{TicketRepository: s.Store.Tickets(), store: s}
}

func (s *collidingStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(&collidingStore{Store: tx, mu: s.mu, failures: s.failures})
	})
}

type collidingTickets struct {
	repository.TicketRepository
	store *collidingStore
}

func (r *collidingTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	if *r.store.failures > 0 {
		*r.store.failures--
		r.store.mu.Unlock()
		return repository.ErrDuplicateKey
	}
	r.store.mu.Unlock()
	return r.TicketRepository.Create(ctx, ticket)
}

var errHistoryDown = errors.New("history unavailable")

// failingHistoryStore rejects every history insert while *failing is true.
type failingHistoryStore struct {
	repository.Store
	failing *bool
}

func newFailingHistoryStore(failing *bool) func(repository.Store) repository.Store {
	return func(inner repository.Store) repository.Store {
		return &failingHistoryStore{Store: inner, failing: failing}
	}
}

func (s *failingHistoryStore) History() repository.TicketHistoryRepository {
	return &failingHistory{TicketHistoryRepository: s.Store.History(), failing: s.failing}
}

func (s *failingHistoryStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(&failingHistoryStore{Store: tx, failing: s.failing})
	})
}

type failingHistory struct {
	repository.TicketHistoryRepository
	failing *bool
}

func (r *failingHistory) Create(ctx context.Context, history *domain.TicketHistory) error {
	if *r.failing {
		return errHistoryDown
	}
	return r.TicketHistoryRepository.Create(ctx, history)
}
