package api

import (
	"context"
	"log/slog"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/scheduler"
)

// TaskService — операции планировщика, доступные через API.
type TaskService interface {
	CreateTask(ctx context.Context, in scheduler.NewTask) (*domain.Task, error)
	FireTrigger(ctx context.Context, name string) (int, error)
	ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ResetTask(ctx context.Context, id string) (*domain.Task, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks  TaskService
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks  TaskService
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tasks:  cfg.Tasks,
		logger: logger.With("component", "api"),
	}
}
