package repo

import (
	"time"

	"github.com/eduvision/crm/internal/domain"
)

// TaskFilter — условия выборки задач.
// Пустое поле означает "без ограничения", условия объединяются через AND.
type TaskFilter struct {
	ID     string
	Status domain.TaskStatus

	// Repeat — nil: любое значение.
	Repeat *bool

	// DueBefore — run_at <= DueBefore. Нулевое значение: без ограничения.
	DueBefore time.Time
}

// TaskChanges — явный набор изменяемых полей.
type TaskChanges struct {
	Status domain.TaskStatus
	RunAt  *time.Time
}

// IsEmpty проверяет, что изменений нет.
func (c TaskChanges) IsEmpty() bool {
	return c.Status == "" && c.RunAt == nil
}

// Bool возвращает указатель на b (для TaskFilter.Repeat).
func Bool(b bool) *bool {
	return &b
}

// Matches проверяет задачу на соответствие фильтру.
func (f TaskFilter) Matches(t *domain.Task) bool {
	if f.ID != "" && t.ID != f.ID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Repeat != nil && t.Repeat != *f.Repeat {
		return false
	}
	// Нераспознанный run_at считается наступившим.
	if !f.DueBefore.IsZero() && t.EffectiveRunAt(f.DueBefore).After(f.DueBefore) {
		return false
	}
	return true
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullRepeat кодирует фильтр Repeat в текст хранилища.
func nullRepeat(b *bool) *string {
	if b == nil {
		return nil
	}
	s := domain.FormatRepeat(*b)
	return &s
}

// nullTime возвращает nil для нулевого времени.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
