// Package api содержит HTTP API планировщика задач CRM.
//
// Структура:
//   - handler.go      — Handler с DI (TaskService, logger)
//   - routes.go       — регистрация маршрутов
//   - middleware.go   — middleware (logging, recovery, metrics)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — Data Transfer Objects (request/response)
//   - task_handler.go — обработчики /api/tasks и /api/v1/tasks
//
// /api/tasks сохраняет формат ответов, к которому привязаны модули CRM
// ({"success": true, ...} и {"error": "..."}). /api/v1 отвечает в общем
// конверте {"data": ...}.
package api
