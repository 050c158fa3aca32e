package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/service-ticket/internal/events"
	"github.com/spec-kit/service-ticket/internal/observability"
	"github.com/spec-kit/service-ticket/internal/persistence"
	"github.com/spec-kit/service-ticket/internal/service"
)

// runtime is the service graph a single command needs. Events are dispatched
// in process only; the CLI never publishes to Redis.
type runtime struct {
	logger     *zap.Logger
	store      *persistence.StoreHandle
	tickets    *service.TicketService
	csv        *service.CSVService
	automation *service.AutomationService
	auth       *service.AuthService
}

func openRuntime(ctx context.Context) (*runtime, error) {
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	store, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	tickets := service.NewTicketService(service.TicketDependencies{
		Store:             store.Store,
		Dispatcher:        events.NewInMemoryDispatcher(),
		Metrics:           observability.NewMetrics(),
		Logger:            logger,
		NumberMaxAttempts: cfg.Tickets.NumberMaxAttempts,
	})
	return &runtime{
		logger:  logger,
		store:   store,
		tickets: tickets,
		csv:     service.NewCSVService(store.Store, tickets, cfg.CSV.Dir, logger),
		automation: service.NewAutomationService(tickets,
			service.DefaultAutomationRules(cfg.Automation), cfg.Tickets.SystemActorID, logger),
		auth: service.NewAuthService(cfg.Auth, store.Store.Users()),
	}, nil
}

func (r *runtime) Close() {
	r.store.Close()
	_ = r.logger.Sync()
}

// withRuntime opens the runtime for the duration of fn.
func withRuntime(ctx context.Context, fn func(*runtime) error) error {
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
