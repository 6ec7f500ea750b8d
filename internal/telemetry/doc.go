// Package telemetry обеспечивает наблюдаемость планировщика.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (crm_scheduler_*, crm_api_*)
//   - tracing.go — OpenTelemetry трассировка обработки задач
//   - cronlog.go — адаптер логгера robfig/cron к slog
//
// Метрики экспортируются на /metrics endpoint сервиса.
package telemetry
