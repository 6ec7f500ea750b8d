// Package mq связывает планировщик CRM с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — события о задачах и команды на запуск триггеров
//   - consumer.go   — потребление очереди с ack/nack и DLQ
//   - triggers.go   — обработчик очереди tasks.trigger
//
// Типы сообщений:
//   - task.executed — задача выполнена (перенесена, оставлена или удалена)
//   - task.failed   — задача переведена в failed
//   - trigger.fire  — запустить задачи с указанным триггером
//
// Exchanges:
//   - crm.tasks    — события задач
//   - crm.triggers — команды триггеров
//   - crm.dlq      — dead letter queue
package mq
