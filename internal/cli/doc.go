// Package cli реализует инструмент командной строки планировщика CRM.
//
// CLI работает через HTTP API и не импортирует внутренние пакеты сервиса.
// Единственное исключение — trigger --via-mq: публикатор передаётся
// из cmd/crm-cli через интерфейс TriggerPublisher.
//
// Client оборачивает запросы к /api/tasks и /api/v1/tasks и разбирает
// оба формата ошибок API.
//
// Output выводит таблицы (text/tabwriter) или JSON (--json). Данные идут
// в stdout, сообщения в stderr, поэтому работает pipe:
//
//	crm tasks list --status failed --json | jq '.[].id'
//
// Команды:
//   - tasks: list, get, create, reset
//   - trigger NAME [--via-mq]
package cli
