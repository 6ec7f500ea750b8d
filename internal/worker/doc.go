// Package worker выполняет отложенные задачи CRM.
//
// # Обзор
//
// Пакет содержит всё, что относится к выполнению одной задачи:
// реестр handler'ов, встроенные handler'ы и пул слотов выполнения.
// Выбор задач, дедупликация и смена статусов живут в пакете scheduler.
//
// # Registry
//
// Реестр собирается один раз при старте процесса и передаётся планировщику:
//
//	registry := worker.NewRegistry(
//	    worker.NewCleanupReserveHandler(reservations, logger),
//	    worker.NewUpdateCurrencyHandler(worker.NewCurrencyClient(url, 0), logger),
//	)
//
// Get для незарегистрированного типа возвращает ErrUnknownTaskType.
// Execute перехватывает панику handler'а и возвращает ErrHandlerPanic.
//
// # Handler'ы
//
//   - cleanup_reserve — снимает резервы (reserve) и возвращает количество в sklad
//   - update_currency — вызывает внешний сервис курсов
//
// Handler получает params как JSON-объект и разбирает его в свою структуру.
// NormalizeParams заменяет битый JSON на {}.
//
// # Pool
//
// Pool ограничивает число одновременно работающих handler'ов (по умолчанию 2).
package worker
