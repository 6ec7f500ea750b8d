package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eduvision/crm/internal/domain"
)

// NewTask — параметры новой задачи.
type NewTask struct {
	Type string

	// Params — JSON-объект текстом. Пустая строка — {}.
	Params string

	// RunAt — время запуска. nil — сейчас.
	RunAt *time.Time

	Repeat     bool
	RepeatRule string
}

// CreateTask сохраняет новую pending-задачу.
//
// Существующие задачи не проверяются: одинаковые задачи схлопнет
// дедупликация на ближайшем тике.
func (s *Scheduler) CreateTask(ctx context.Context, in NewTask) (*domain.Task, error) {
	taskType := strings.TrimSpace(in.Type)
	if taskType == "" {
		return nil, ErrTaskTypeRequired
	}

	params := in.Params
	if strings.TrimSpace(params) == "" {
		params = domain.EmptyParams
	}

	runAt := s.now().UTC()
	if in.RunAt != nil && !in.RunAt.IsZero() {
		runAt = in.RunAt.UTC()
	}

	task := &domain.Task{
		Type:       taskType,
		Params:     params,
		RunAt:      runAt,
		Status:     domain.TaskStatusPending,
		Repeat:     in.Repeat,
		RepeatRule: in.RepeatRule,
	}

	if err := s.store.Insert(ctx, task); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"task_type", task.Type,
		"run_at", task.RunAt,
		"repeat", task.Repeat,
		"repeat_rule", task.RepeatRule,
	)
	return task, nil
}
