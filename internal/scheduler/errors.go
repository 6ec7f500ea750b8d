package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrEmptyTrigger — имя триггера пустое.
	ErrEmptyTrigger = errors.New("trigger name is empty")

	// ErrTaskTypeRequired — задача создаётся без task_type.
	ErrTaskTypeRequired = errors.New("task_type is required")

	// ErrInvalidStatus — неизвестный статус в фильтре.
	ErrInvalidStatus = errors.New("invalid task status")
)
