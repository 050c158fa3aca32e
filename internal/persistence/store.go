package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/service-ticket/internal/config"
	"github.com/spec-kit/service-ticket/internal/repository"
	"github.com/spec-kit/service-ticket/internal/repository/sqlite"
)

// StoreHandle bundles the selected backend with its lifecycle hooks.
type StoreHandle struct {
	Store   repository.Store
	Driver  string
	ping    func(ctx context.Context) error
	migrate func(ctx context.Context) error
	close   func()
}

// OpenStore connects the backend named by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*StoreHandle, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &StoreHandle{
			Store:  repository.NewPostgresStore(pg.Pool),
			Driver: cfg.Store.Driver,
			ping:   pg.Ping,
			migrate: func(ctx context.Context) error {
				return RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger)
			},
			close: pg.Close,
		}, nil
	case config.StoreDriverSQLite:
		lite, err := NewSQLite(ctx, cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		store := sqlite.NewStore(lite.DB)
		return &StoreHandle{
			Store:   store,
			Driver:  cfg.Store.Driver,
			ping:    lite.Ping,
			migrate: store.Migrate,
			close:   lite.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// Ping checks the backend is reachable.
func (h *StoreHandle) Ping(ctx context.Context) error {
	return h.ping(ctx)
}

// Migrate brings the schema up to date.
func (h *StoreHandle) Migrate(ctx context.Context) error {
	return h.migrate(ctx)
}

// Close releases the backend connection.
func (h *StoreHandle) Close() {
	if h != nil && h.close != nil {
		h.close()
	}
}
