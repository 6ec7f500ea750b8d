package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eduvision/crm/internal/config"
	"github.com/eduvision/crm/internal/repo"
	"github.com/eduvision/crm/internal/scheduler"
	"github.com/eduvision/crm/internal/worker"
)

// stores — хранилища выбранного драйвера.
type stores struct {
	tasks        scheduler.TaskStore
	reservations worker.ReservationStore
	close        func()
}

// openStores открывает хранилища по store_driver.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := repo.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("db migrate: %w", err)
			}
		}
		logger.Info("connected to postgres")
		return &stores{
			tasks:        repo.NewTaskRepo(pool),
			reservations: repo.NewReservationRepo(pool),
			close:        pool.Close,
		}, nil

	case config.DriverSQLite:
		db, err := repo.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		logger.Info("opened sqlite", "path", cfg.SQLitePath)
		return &stores{
			tasks:        repo.NewSQLiteTaskRepo(db),
			reservations: repo.NewSQLiteReservationRepo(db),
			close:        func() { _ = db.Close() },
		}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, tasks are lost on restart")
		return &stores{
			tasks:        repo.NewMemoryTaskStore(),
			reservations: repo.NewMemoryReservationStore(),
			close:        func() {},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}
