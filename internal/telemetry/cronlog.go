package telemetry

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronLogger направляет логи robfig/cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

// CronLogger возвращает cron.Logger поверх slog.
// Info-сообщения cron (запуск и планирование entry) пишутся на уровне Debug.
func CronLogger(logger *slog.Logger) cron.Logger {
	return cronLogger{logger: logger}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
