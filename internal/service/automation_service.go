package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-ticket/internal/config"
	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/repository"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

// ReasonAutomation is recorded on every status change made by the sweep.
const ReasonAutomation = "Automated status update based on business rules"

const automationPageSize = 100

// AutomationRule moves tickets that stayed in From longer than MaxAge to To.
type AutomationRule struct {
	From   domain.TicketStatus
	To     domain.TicketStatus
	MaxAge time.Duration
}

// AutomationResult counts the outcome of one sweep.
type AutomationResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// AutomationService applies age-based status rules.
type AutomationService struct {
	tickets *TicketService
	rules   []AutomationRule
	actorID string
	now     func() time.Time
	logger  *zap.Logger
}

// DefaultAutomationRules closes stale OPEN tickets and opens stale PENDING ones.
func DefaultAutomationRules(cfg config.AutomationConfig) []AutomationRule {
	return []AutomationRule{
		{From: domain.TicketStatusOpen, To: domain.TicketStatusClosed, MaxAge: days(cfg.OpenCloseDays)},
		{From: domain.TicketStatusPending, To: domain.TicketStatusOpen, MaxAge: days(cfg.PendingReopenDays)},
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// NewAutomationService builds the sweep acting as actorID.
func NewAutomationService(tickets *TicketService, rules []AutomationRule, actorID string, logger *zap.Logger) *AutomationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutomationService{
		tickets: tickets,
		rules:   rules,
		actorID: actorID,
		now:     time.Now,
		logger:  logger,
	}
}

// Run applies every rule once. A ticket that fails is logged and skipped.
func (s *AutomationService) Run(ctx context.Context) (*AutomationResult, error) {
	result := &AutomationResult{}
	now := s.now()
	for _, rule := range s.rules {
		candidates, err := s.collect(ctx, rule.From, now.Add(-rule.MaxAge))
		if err != nil {
			return result, err
		}
		for _, ticket := range candidates {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Processed++
			_, changed, err := s.tickets.ApplyExternalStatus(ctx, ticket.TicketNumber, rule.To, s.actorID, ReasonAutomation)
			if err != nil {
				result.Failed++
				s.logger.Warn("automated status update failed",
					zap.String("ticket_number", ticket.TicketNumber),
					zap.String("to", string(rule.To)),
					zap.Error(err))
				continue
			}
			if changed {
				result.Updated++
			}
		}
	}

	s.logger.Info("automation sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed))
	return result, nil
}

// collect gathers all candidates up front so updates do not shift the pages.
func (s *AutomationService) collect(ctx context.Context, status domain.TicketStatus, cutoff time.Time) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		Statuses:      []domain.TicketStatus{status},
		CreatedBefore: &cutoff,
		SortBy:        "createdAt",
		Limit:         automationPageSize,
	}
	var out []domain.Ticket
	for {
		page, err := s.tickets.FindAll(ctx, filter)
		if err != nil {
			return nil, apperrors.ToDomainError(err)
		}
		out = append(out, page.Tickets...)
		filter.Offset += len(page.Tickets)
		if len(page.Tickets) == 0 || filter.Offset >= page.Total {
			return out, nil
		}
	}
}
