package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/service-ticket/internal/api/http"
	"github.com/spec-kit/service-ticket/internal/api/http/handlers"
	"github.com/spec-kit/service-ticket/internal/auth"
	"github.com/spec-kit/service-ticket/internal/config"
	"github.com/spec-kit/service-ticket/internal/events"
	"github.com/spec-kit/service-ticket/internal/observability"
	"github.com/spec-kit/service-ticket/internal/persistence"
	"github.com/spec-kit/service-ticket/internal/queue"
	"github.com/spec-kit/service-ticket/internal/service"
	"github.com/spec-kit/service-ticket/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close()

	if cfg.Postgres.RunMigrations {
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		jobs        queue.Queue
		broadcaster service.Broadcaster
	)
	if redis.Enabled() {
		jobs = queue.NewRedisQueue(redis.Client, cfg.Redis.QueueName)
		broadcaster = queue.NewRedisBroadcaster(redis.Client, cfg.Redis.EventsChannel)
	} else {
		jobs = queue.NewMemoryQueue(0)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, broadcaster, logger).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:             store.Store,
		Dispatcher:        dispatcher,
		Metrics:           metrics,
		Logger:            logger,
		NumberMaxAttempts: cfg.Tickets.NumberMaxAttempts,
	})
	authService := service.NewAuthService(cfg.Auth, store.Store.Users())
	csvService := service.NewCSVService(store.Store, ticketService, cfg.CSV.Dir, logger)
	automationService := service.NewAutomationService(ticketService,
		service.DefaultAutomationRules(cfg.Automation), cfg.Tickets.SystemActorID, logger)

	var wg sync.WaitGroup
	runBackground(&wg, func() {
		worker.NewJobWorker(jobs, csvService, automationService, metrics, logger).Run(ctx)
	})
	runBackground(&wg, func() {
		worker.NewAutomationWorker(automationService, cfg.Automation.Interval(), logger).Run(ctx)
	})

	dependencies := map[string]handlers.Pinger{"store": store}
	if redis.Enabled() {
		dependencies["redis"] = redis
	}

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: 2 * handlers.MaxImportSize,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		CSV:            handlers.NewCSVHandler(csvService, automationService, jobs, filepath.Join(cfg.CSV.Dir, "uploads")),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Store.Users()),
		Metrics:        metrics.Handler(),
	})

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()), zap.String("store", store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	wg.Wait()
}

func runBackground(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
