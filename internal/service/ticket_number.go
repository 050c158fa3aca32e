package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/service-ticket/internal/observability"
	"github.com/spec-kit/service-ticket/internal/repository"
	"github.com/spec-kit/service-ticket/internal/workflow"
)

// ErrTicketNumberExhausted is returned when every allocation attempt collided.
var ErrTicketNumberExhausted = errors.New("ticket number allocation retries exhausted")

// TicketNumberGenerator hands out TKT-<year>-<seq> numbers. Uniqueness is
// enforced by the store; a collision retries the whole transaction with a
// freshly computed number.
type TicketNumberGenerator struct {
	maxAttempts int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewTicketNumberGenerator builds a generator that tries at most maxAttempts times.
func NewTicketNumberGenerator(maxAttempts int, metrics *observability.Metrics, logger *zap.Logger) *TicketNumberGenerator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketNumberGenerator{maxAttempts: maxAttempts, metrics: metrics, logger: logger}
}

// Next computes the next number for year from the highest one on record.
func (g *TicketNumberGenerator) Next(ctx context.Context, tickets repository.TicketRepository, year int) (string, error) {
	latest, err := tickets.LatestNumber(ctx, workflow.TicketNumberYearPrefix(year))
	if err != nil {
		return "", err
	}
	return workflow.NextTicketNumber(year, latest)
}

// Allocate runs insert inside a transaction with a fresh number for year.
// Only unique violations are retried; any other error is returned as is.
func (g *TicketNumberGenerator) Allocate(ctx context.Context, store repository.Store, year int, insert func(tx repository.Store, number string) error) error {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		var number string
		err := store.WithinTx(ctx, func(tx repository.Store) error {
			var err error
			number, err = g.Next(ctx, tx.Tickets(), year)
			if err != nil {
				return err
			}
			return insert(tx, number)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return err
		}
		g.metrics.RecordNumberConflict()
		g.logger.Warn("ticket number collision",
			zap.String("ticket_number", number),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxAttempts))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrTicketNumberExhausted, g.maxAttempts)
}
