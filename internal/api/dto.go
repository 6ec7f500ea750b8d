package api

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/eduvision/crm/internal/domain"
)

// CreateTaskRequest — запрос на создание задачи (POST /api/tasks).
type CreateTaskRequest struct {
	TaskType string `json:"task_type"`

	// Params — объект или уже закодированная строка.
	Params json.RawMessage `json:"params,omitempty"`

	// RunAt — ISO-8601; пусто — сейчас.
	RunAt string `json:"run_at,omitempty"`

	Repeat     textBool `json:"repeat"`
	RepeatRule string   `json:"repeat_rule,omitempty"`
}

// textBool принимает true, "true", "yes", 1 и т.п.
// Всё нераспознанное — false.
type textBool bool

func (b *textBool) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	*b = textBool(domain.ParseBoolText(s))
	return nil
}

// paramsText приводит params запроса к тексту для хранилища.
//
// Объект сжимается без изменения порядка ключей, строка сохраняется как есть,
// null и отсутствие — {}.
func paramsText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.EmptyParams
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if strings.TrimSpace(s) == "" {
				return domain.EmptyParams
			}
			return s
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// TaskResponse — задача в ответах API.
type TaskResponse struct {
	ID         string `json:"id"`
	TaskType   string `json:"task_type"`
	Params     string `json:"params"`
	RunAt      string `json:"run_at"`
	Status     string `json:"status"`
	Repeat     string `json:"repeat"`
	RepeatRule string `json:"repeat_rule"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
// repeat и run_at отдаются текстом, как они лежат в scheduled_tasks.
func TaskFromDomain(t *domain.Task) TaskResponse {
	runAt := ""
	if !t.RunAt.IsZero() {
		runAt = domain.FormatRunAt(t.RunAt)
	}
	return TaskResponse{
		ID:         t.ID,
		TaskType:   t.Type,
		Params:     t.Params,
		RunAt:      runAt,
		Status:     t.Status.String(),
		Repeat:     domain.FormatRepeat(t.Repeat),
		RepeatRule: t.RepeatRule,
	}
}

// CreateTaskResponse — ответ POST /api/tasks.
type CreateTaskResponse struct {
	Success bool         `json:"success"`
	Task    TaskResponse `json:"task"`
}

// TriggerResponse — ответ POST /api/tasks/trigger/{trigger_name}.
type TriggerResponse struct {
	Success  bool `json:"success"`
	Executed int  `json:"executed"`
}

// LegacyErrorResponse — ошибка в формате /api/tasks.
type LegacyErrorResponse struct {
	Error string `json:"error"`
}
