package scheduler

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/repo"
	"github.com/eduvision/crm/internal/telemetry"
)

// OutcomeTriggered — исход задачи, выполненной по триггеру.
const OutcomeTriggered = "triggered"

// FireTrigger немедленно выполняет повторяющиеся pending-задачи,
// в repeat_rule которых встречается name.
//
// Совпадение — вхождение подстроки, а не точное имя триггера:
// "on_server" сработает для "on_server_start".
// Расписание задач не меняется: успешная задача остаётся pending с прежним run_at.
// Задачи не захватываются и не дедуплицируются. Ошибка handler'а переводит
// задачу в failed. Незарегистрированный тип пропускается.
//
// Возвращает число успешно выполненных задач.
func (s *Scheduler) FireTrigger(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrEmptyTrigger
	}

	ctx, span := s.tracer.Start(ctx, "scheduler.FireTrigger", trace.WithAttributes(
		attribute.String("trigger", name),
	))
	defer span.End()

	logger := telemetry.WithTrigger(s.logger, name)

	tasks, err := s.store.Select(ctx, repo.TaskFilter{
		Status: domain.TaskStatusPending,
		Repeat: repo.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select trigger tasks")
		return 0, fmt.Errorf("select trigger tasks: %w", err)
	}

	executed := 0
	for i := range tasks {
		task := &tasks[i]
		if !strings.Contains(task.RepeatRule, name) {
			continue
		}

		taskLogger := telemetry.WithTaskID(logger, task.ID, task.Type)
		if rule := ParseRepeatRule(task.RepeatRule); !rule.HasTrigger(name) {
			taskLogger.Debug("trigger matched by substring", "triggers", rule.TriggerList())
		}
		if !s.registry.Has(task.Type) {
			taskLogger.Warn("no handler registered for task type, skipping")
			continue
		}

		var execErr error
		if err := s.pool.Run(ctx, func() {
			execErr = s.execute(context.WithoutCancel(ctx), task, taskLogger)
		}); err != nil {
			return executed, fmt.Errorf("fire trigger %s: %w", name, err)
		}

		if execErr != nil {
			taskLogger.Error("task handler failed", "error", execErr)
			s.markFailed(context.WithoutCancel(ctx), task, execErr.Error(), taskLogger)
			continue
		}

		executed++
		telemetry.SchedulerTasksProcessed.WithLabelValues(task.Type, OutcomeTriggered).Inc()
		taskLogger.Info("task executed by trigger")
		s.publishExecuted(ctx, task, OutcomeTriggered, taskLogger)
	}

	telemetry.TriggerTasksExecuted.Add(float64(executed))
	span.SetAttributes(attribute.Int("tasks.executed", executed))
	logger.Info("trigger fired", "executed", executed)

	return executed, nil
}
