package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/repo"
)

// ListTasks возвращает задачи в статусе status. Пустой статус — все задачи.
func (s *Scheduler) ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	tasks, err := s.store.Select(ctx, repo.TaskFilter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask возвращает задачу по ID.
func (s *Scheduler) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.store.GetByID(ctx, id)
}

// ResetTask возвращает задачу из failed в pending.
//
// Это ручное восстановление после исправления причины ошибки.
// run_at не меняется, поэтому задача с прошедшим run_at выполнится на ближайшем тике.
// Задача не в статусе failed — repo.ErrInvalidState.
func (s *Scheduler) ResetTask(ctx context.Context, id string) (*domain.Task, error) {
	changed, err := s.store.Update(ctx,
		repo.TaskFilter{ID: id, Status: domain.TaskStatusFailed},
		repo.TaskChanges{Status: domain.TaskStatusPending},
	)
	if err != nil {
		return nil, fmt.Errorf("reset task: %w", err)
	}
	if len(changed) == 1 {
		s.logger.Info("task reset to pending", "task_id", id)
		return &changed[0], nil
	}

	task, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return nil, fmt.Errorf("%w: task %s is %s", repo.ErrInvalidState, id, task.Status)
}
