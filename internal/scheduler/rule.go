package scheduler

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// intervalToken — токен интервала: "<число> <единица>", пробел необязателен.
var intervalToken = regexp.MustCompile(`(?i)^\s*(\d+)\s*(second|seconds|minute|minutes|hour|hours|day|days)\s*$`)

// MaxInterval — предел интервала. Большие значения ограничиваются им.
const MaxInterval = time.Duration(math.MaxInt64)

// RepeatRule — разобранное правило повторения задачи.
//
// Правило — список токенов через запятую. Токен интервала ("10 minutes",
// "1 day") задаёт Interval, любой другой токен считается именем триггера:
//
//	"10 minutes"               → Interval=10m, Triggers={}
//	"1 day,on_server_start"    → Interval=24h, Triggers={on_server_start}
//	"on_new_order"             → Interval=0,   Triggers={on_new_order}
type RepeatRule struct {
	// Interval — сдвиг run_at после успешного запуска. 0 — интервала нет.
	Interval time.Duration

	// Triggers — имена триггеров, на которые задача откликается.
	Triggers map[string]struct{}
}

// ParseRepeatRule разбирает правило повторения.
//
// Функция тотальная: пустые токены отбрасываются, нераспознанные
// становятся триггерами. Если интервалов несколько, действует последний.
func ParseRepeatRule(rule string) RepeatRule {
	parsed := RepeatRule{Triggers: make(map[string]struct{})}

	for _, token := range strings.Split(rule, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if d, ok := parseInterval(token); ok {
			parsed.Interval = d
			continue
		}
		parsed.Triggers[token] = struct{}{}
	}
	return parsed
}

// parseInterval разбирает один токен интервала.
// Интервал больше MaxInterval ограничивается MaxInterval.
func parseInterval(token string) (time.Duration, bool) {
	m := intervalToken.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}

	var unit time.Duration
	switch strings.TrimSuffix(strings.ToLower(m[2]), "s") {
	case "second":
		unit = time.Second
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	}
	if n > int64(MaxInterval/unit) {
		return MaxInterval, true
	}
	return time.Duration(n) * unit, true
}

// HasInterval проверяет, задан ли интервал.
func (r RepeatRule) HasInterval() bool {
	return r.Interval > 0
}

// HasTrigger проверяет, входит ли name в набор триггеров.
func (r RepeatRule) HasTrigger(name string) bool {
	_, ok := r.Triggers[name]
	return ok
}

// TriggerList возвращает отсортированный список триггеров.
func (r RepeatRule) TriggerList() []string {
	list := make([]string, 0, len(r.Triggers))
	for name := range r.Triggers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
