package domain

// TaskStatus — статус отложенной задачи.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → (удалена | снова PENDING)
//	                  ↘ FAILED (ждёт ручного вмешательства)
//
// Состояния "done" нет: успешно выполненная разовая задача удаляется из хранилища.
type TaskStatus string

const (
	// TaskStatusPending — задача ждёт наступления run_at (или следующего триггера).
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusRunning — задача захвачена одним тиком и выполняется.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusFailed — handler не найден или завершился ошибкой.
	// Планировщик такие задачи больше не выбирает.
	TaskStatusFailed TaskStatus = "failed"
)

// String возвращает строковое представление TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid проверяет, что статус входит в допустимый набор.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusFailed:
		return true
	default:
		return false
	}
}
