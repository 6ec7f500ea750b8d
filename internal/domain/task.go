package domain

import (
	"strings"
	"time"
)

// EmptyParams — params по умолчанию (пустой JSON-объект).
const EmptyParams = "{}"

// Task — отложенная задача в коллекции scheduled_tasks.
//
// Задача создаётся внешним кодом (API, другие модули CRM) и выполняется
// планировщиком, когда наступает RunAt. Повторяющиеся задачи (Repeat=true)
// сохраняют свой ID между запусками, меняются только RunAt и Status.
type Task struct {
	// ID — идентификатор документа, присваивается хранилищем.
	ID string `json:"id"`

	// Type — ключ в реестре handler'ов: "cleanup_reserve", "update_currency", ...
	Type string `json:"task_type"`

	// Params — JSON-объект параметров в том виде, в котором он хранится.
	// Планировщик его не разбирает, только передаёт handler'у.
	Params string `json:"params"`

	// RunAt — самое раннее время запуска (UTC).
	// Нулевое значение означает, что в хранилище лежит нераспознаваемая строка.
	RunAt time.Time `json:"run_at"`

	// Status — текущий статус.
	Status TaskStatus `json:"status"`

	// Repeat — сохранять ли задачу после выполнения.
	Repeat bool `json:"repeat"`

	// RepeatRule — правило повторения: "10 minutes", "1 day,on_server_start", "on_new_order".
	RepeatRule string `json:"repeat_rule"`
}

// DedupKey — ключ "одной и той же логической задачи".
//
// Две задачи считаются одинаковыми, если все четыре поля совпадают байт в байт
// в том виде, как они хранятся. JSON не нормализуется: {"a":1} и {"a": 1} — разные задачи.
type DedupKey struct {
	Type       string
	Params     string
	Repeat     bool
	RepeatRule string
}

// DedupKey возвращает ключ дедупликации задачи.
func (t *Task) DedupKey() DedupKey {
	return DedupKey{
		Type:       t.Type,
		Params:     t.Params,
		Repeat:     t.Repeat,
		RepeatRule: t.RepeatRule,
	}
}

// EffectiveRunAt возвращает RunAt, а для нераспознанного времени — now.
func (t *Task) EffectiveRunAt(now time.Time) time.Time {
	if t.RunAt.IsZero() {
		return now
	}
	return t.RunAt
}

// FormatRepeat кодирует Repeat для хранилища: "true" / "false".
func FormatRepeat(repeat bool) string {
	if repeat {
		return "true"
	}
	return "false"
}

// ParseBoolText разбирает булево значение, записанное текстом.
// "true", "1", "yes" (без учёта регистра и пробелов) — true, всё остальное — false.
func ParseBoolText(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
