package domain

import (
	"strings"
	"time"
)

// RunAtLayout — формат хранения run_at в текстовых хранилищах.
//
// Фиксированная ширина и суффикс Z: строки сравниваются лексикографически
// в том же порядке, что и моменты времени.
const RunAtLayout = "2006-01-02T15:04:05.000000Z"

// runAtLayouts — форматы, которые принимаются при чтении.
// Документы создают разные клиенты, поэтому допускаем ISO-8601 без зоны и с пробелом.
var runAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// FormatRunAt кодирует время для текстового хранилища (всегда UTC).
func FormatRunAt(t time.Time) string {
	return t.UTC().Format(RunAtLayout)
}

// ParseRunAt разбирает время из хранилища или запроса.
// Время без зоны считается UTC.
func ParseRunAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range runAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
