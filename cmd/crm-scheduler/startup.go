package main

import (
	"context"
	"log/slog"

	"github.com/eduvision/crm/internal/telemetry"
)

type triggerFirer interface {
	FireTrigger(ctx context.Context, name string) (int, error)
}

type pollerStarter interface {
	Start(ctx context.Context) bool
}

// startScheduling выполняет стартовый триггер, затем запускает тики.
// Первый тик начинается после завершения триггера.
func startScheduling(ctx context.Context, firer triggerFirer, poller pollerStarter, trigger string, logger *slog.Logger) {
	if trigger != "" {
		fireStartupTrigger(ctx, firer, trigger, logger)
	}
	poller.Start(ctx)
}

// fireStartupTrigger выполняет задачи, привязанные к старту сервиса.
func fireStartupTrigger(ctx context.Context, firer triggerFirer, name string, logger *slog.Logger) {
	telemetry.TriggerFired.WithLabelValues("startup").Inc()

	executed, err := firer.FireTrigger(ctx, name)
	if err != nil {
		logger.Error("startup trigger failed", "trigger", name, "error", err)
		return
	}
	logger.Info("startup trigger fired", "trigger", name, "executed", executed)
}
