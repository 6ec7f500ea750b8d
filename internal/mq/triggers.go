package mq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eduvision/crm/internal/telemetry"
)

// TriggerFirer — то, что умеет запускать задачи по триггеру.
type TriggerFirer interface {
	FireTrigger(ctx context.Context, name string) (int, error)
}

// TriggerHandler возвращает Handler для очереди tasks.trigger.
//
// Сообщение без имени триггера или другого типа уходит в DLQ.
// Ошибка до выполнения хотя бы одной задачи возвращает сообщение в очередь.
// Если часть задач уже выполнена, сообщение подтверждается.
func TriggerHandler(firer TriggerFirer, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, d *Delivery) error {
		if d.Message.Type != MessageTypeTriggerFire {
			return fmt.Errorf("%w: unexpected message type %q", ErrPermanent, d.Message.Type)
		}

		payload, err := ParsePayload[TriggerFirePayload](&d.Message)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}

		name := strings.TrimSpace(payload.Name)
		if name == "" {
			return fmt.Errorf("%w: trigger name is empty", ErrPermanent)
		}

		telemetry.TriggerFired.WithLabelValues("mq").Inc()

		executed, err := firer.FireTrigger(ctx, name)
		if err != nil && executed > 0 {
			logger.Warn("trigger fired partially, message acknowledged",
				"trigger", name,
				"message_id", d.Message.ID,
				"executed", executed,
				"error", err,
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("fire trigger %s: %w", name, err)
		}

		logger.Info("trigger fired from queue",
			"trigger", name,
			"message_id", d.Message.ID,
			"executed", executed,
		)
		return nil
	}
}
