package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/eduvision/crm/internal/domain"
)

// emptyObject — params, которые получает handler при битом JSON.
var emptyObject = json.RawMessage(domain.EmptyParams)

// NormalizeParams приводит сохранённые params к JSON-объекту.
// Невалидный JSON и не-объекты (массив, строка, null) заменяются на {}.
func NormalizeParams(raw string) json.RawMessage {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return emptyObject
	}
	return json.RawMessage(trimmed)
}

// flexID — идентификатор в params. Строка берётся как есть,
// любое другое JSON-значение превращается в свой компактный текст.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = flexID(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = flexID(buf.String())
	return nil
}

// flexBool — булево значение, которое может прийти как true или как "yes"/"1".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = flexBool(domain.ParseBoolText(s))
		return nil
	}
	// Числа: 1 — true, остальное — false.
	text := strings.TrimSpace(string(data))
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		*b = flexBool(n == 1)
		return nil
	}
	*b = false
	return nil
}
