// Package scheduler реализует планировщик отложенных задач CRM.
//
// Задачи лежат в коллекции scheduled_tasks. Poller раз в интервал
// (по умолчанию 60 секунд) вызывает ProcessDueTasks, который выбирает
// pending-задачи с наступившим run_at, схлопывает дубликаты, захватывает
// и выполняет по одной задаче на группу.
//
// Структура:
//   - rule.go      — разбор repeat_rule ("10 minutes,on_server_start")
//   - scheduler.go — дедупликация, захват, выполнение, смена статуса
//   - poller.go    — периодический запуск через robfig/cron
//   - trigger.go   — ручной запуск задач по имени триггера
//   - create.go    — создание задачи
//   - tasks.go     — просмотр задач и сброс failed → pending
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Store:     taskRepo,
//	    Registry:  registry,
//	    Pool:      worker.NewPool(2),
//	    Publisher: publisher, // опционально
//	    Logger:    logger,
//	})
//
//	poller := scheduler.NewPoller(sched, scheduler.PollerConfig{Interval: time.Minute})
//	poller.Start(ctx)
//	defer func() { <-poller.Stop().Done() }()
//
// Захват задачи:
//
// Захват — условное обновление pending → running через TaskStore.Update.
// Если изменённых строк не ровно одна, задачу уже забрал кто-то другой,
// и она пропускается до следующего тика.
//
// Задачи, зависшие в running после падения процесса, автоматически
// не возвращаются: их видно через ListTasks, а вернуть можно только
// вручную, поменяв статус в хранилище.
package scheduler
