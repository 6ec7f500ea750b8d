package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/repo"
	"github.com/eduvision/crm/internal/telemetry"
	"github.com/eduvision/crm/internal/worker"
)

// TaskStore — хранилище задач, с которым работает планировщик.
//
// Update — условное обновление: меняет все задачи под фильтром и возвращает
// изменённые. На нём построен захват задачи: из конкурентных вызовов
// с фильтром {ID, Status: pending} изменённую строку получает только один.
type TaskStore interface {
	Select(ctx context.Context, f repo.TaskFilter) ([]domain.Task, error)
	Insert(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, f repo.TaskFilter, c repo.TaskChanges) ([]domain.Task, error)
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
	GetByID(ctx context.Context, id string) (*domain.Task, error)
}

// EventPublisher — получатель событий о выполнении задач.
type EventPublisher interface {
	PublishTaskExecuted(ctx context.Context, task *domain.Task, outcome string) error
	PublishTaskFailed(ctx context.Context, task *domain.Task, reason string) error
}

// Scheduler — планировщик отложенных задач.
type Scheduler struct {
	store     TaskStore
	registry  *worker.Registry
	pool      *worker.Pool
	publisher EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	// inFlight — ключи групп, которые ещё обрабатывает предыдущий тик.
	inFlightMu sync.Mutex
	inFlight   map[domain.DedupKey]struct{}
}

// Config — конфигурация Scheduler.
type Config struct {
	Store     TaskStore
	Registry  *worker.Registry
	Pool      *worker.Pool   // опционально; если nil — worker.NewPool(0)
	Publisher EventPublisher // опционально
	Logger    *slog.Logger

	// Now — источник времени (для тестов). По умолчанию time.Now.
	Now func() time.Time
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	pool := cfg.Pool
	if pool == nil {
		pool = worker.NewPool(0)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = worker.NewRegistry()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		store:     cfg.Store,
		registry:  registry,
		pool:      pool,
		publisher: cfg.Publisher,
		logger:    logger.With("component", "scheduler"),
		tracer:    telemetry.Tracer(),
		now:       now,
		inFlight:  make(map[domain.DedupKey]struct{}),
	}
}

// TickStats — итоги одного вызова ProcessDueTasks.
type TickStats struct {
	Due               int // pending-задач с наступившим run_at
	Groups            int // групп дедупликации
	Executed          int // успешно выполнено
	Failed            int // переведено в failed
	ClaimsLost        int // захват перехвачен другим исполнителем
	Skipped           int // группа ещё обрабатывается предыдущим тиком
	DuplicatesDeleted int // удалено старых дубликатов
}

func (s *TickStats) add(o TickStats) {
	s.Executed += o.Executed
	s.Failed += o.Failed
	s.ClaimsLost += o.ClaimsLost
	s.Skipped += o.Skipped
	s.DuplicatesDeleted += o.DuplicatesDeleted
}

// taskGroup — задачи с одинаковым ключом дедупликации.
type taskGroup struct {
	key        domain.DedupKey
	survivor   *domain.Task
	duplicates []string
}

// ProcessDueTasks выполняет один проход по задачам с наступившим run_at.
//
//  1. Выбирает pending-задачи с run_at <= now
//  2. Группирует по ключу дедупликации, в группе выживает задача с самым поздним run_at
//  3. Захватывает выжившую (pending → running), выполняет handler
//  4. Успех: повтор по интервалу / снова pending / удаление, затем удаляет дубликаты
//  5. Ошибка: failed, дубликаты не трогаются
//
// Возвращает ошибку только если не удалось выбрать задачи.
// Ошибки одной группы не блокируют обработку остальных.
func (s *Scheduler) ProcessDueTasks(ctx context.Context) (TickStats, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.ProcessDueTasks")
	defer span.End()

	var stats TickStats
	now := s.now().UTC()

	tasks, err := s.store.Select(ctx, repo.TaskFilter{
		Status:    domain.TaskStatusPending,
		DueBefore: now,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select due tasks")
		return stats, fmt.Errorf("select due tasks: %w", err)
	}

	stats.Due = len(tasks)
	telemetry.SchedulerDueTasks.Observe(float64(len(tasks)))
	if len(tasks) == 0 {
		return stats, nil
	}

	groups := groupByKey(tasks, now)
	stats.Groups = len(groups)
	span.SetAttributes(
		attribute.Int("tasks.due", stats.Due),
		attribute.Int("tasks.groups", stats.Groups),
	)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, grp := range groups {
		if !s.acquireKey(grp.key) {
			s.logger.Debug("group still in flight, skipping",
				"task_id", grp.survivor.ID,
				"task_type", grp.survivor.Type,
			)
			stats.Skipped++
			continue
		}

		g.Go(func() error {
			defer s.releaseKey(grp.key)

			res := s.processGroup(ctx, grp, now)
			mu.Lock()
			stats.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("scheduler tick completed",
		"due", stats.Due,
		"groups", stats.Groups,
		"executed", stats.Executed,
		"failed", stats.Failed,
		"claims_lost", stats.ClaimsLost,
		"skipped", stats.Skipped,
		"duplicates_deleted", stats.DuplicatesDeleted,
	)

	return stats, nil
}

// groupByKey группирует задачи и выбирает выжившую в каждой группе.
//
// Выживает задача с самым поздним run_at, при равенстве — встреченная позже.
// Нераспознанный run_at считается равным now. Порядок групп — порядок
// первого появления ключа.
func groupByKey(tasks []domain.Task, now time.Time) []*taskGroup {
	index := make(map[domain.DedupKey]*taskGroup)
	var groups []*taskGroup

	for i := range tasks {
		task := &tasks[i]
		key := task.DedupKey()

		grp, ok := index[key]
		if !ok {
			grp = &taskGroup{key: key, survivor: task}
			index[key] = grp
			groups = append(groups, grp)
			continue
		}

		if !task.EffectiveRunAt(now).Before(grp.survivor.EffectiveRunAt(now)) {
			grp.duplicates = append(grp.duplicates, grp.survivor.ID)
			grp.survivor = task
		} else {
			grp.duplicates = append(grp.duplicates, task.ID)
		}
	}
	return groups
}

// processGroup обрабатывает одну группу.
func (s *Scheduler) processGroup(ctx context.Context, grp *taskGroup, now time.Time) TickStats {
	var res TickStats
	task := grp.survivor
	logger := telemetry.WithTaskID(s.logger, task.ID, task.Type)

	// Незарегистрированный тип: сразу failed, без захвата
	if !s.registry.Has(task.Type) {
		telemetry.SchedulerUnknownTypes.WithLabelValues(task.Type).Inc()
		logger.Warn("no handler registered for task type")
		s.markFailed(context.WithoutCancel(ctx), task, worker.ErrUnknownTaskType.Error(), logger)
		res.Failed = 1
		return res
	}

	// Слот ждём с отменяемым контекстом: задача ещё не захвачена.
	err := s.pool.Run(ctx, func() {
		res = s.runSurvivor(context.WithoutCancel(ctx), grp, now, logger)
	})
	if err != nil {
		logger.Info("task not started, scheduler is stopping", "error", err)
	}
	return res
}

// runSurvivor захватывает и выполняет выжившую задачу группы.
// ctx не отменяется: захваченная задача всегда доходит до финального статуса.
func (s *Scheduler) runSurvivor(ctx context.Context, grp *taskGroup, now time.Time, logger *slog.Logger) TickStats {
	var res TickStats
	task := grp.survivor

	claimed, err := s.store.Update(ctx,
		repo.TaskFilter{ID: task.ID, Status: domain.TaskStatusPending},
		repo.TaskChanges{Status: domain.TaskStatusRunning},
	)
	if err != nil {
		logger.Error("failed to claim task", "error", err)
		return res
	}
	if len(claimed) != 1 {
		telemetry.SchedulerClaimsLost.Inc()
		logger.Info("task already claimed, skipping")
		res.ClaimsLost = 1
		return res
	}

	ctx, span := s.tracer.Start(ctx, "scheduler.ExecuteTask", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.type", task.Type),
		attribute.Bool("task.repeat", task.Repeat),
		attribute.Int("task.duplicates", len(grp.duplicates)),
	))
	defer span.End()

	execErr := s.execute(ctx, task, logger)
	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "handler failed")
		logger.Error("task handler failed", "error", execErr)
		s.markFailed(ctx, task, execErr.Error(), logger)
		res.Failed = 1
		return res
	}

	outcome, err := s.applySuccess(ctx, task, now)
	if err != nil {
		span.RecordError(err)
		logger.Error("failed to finalize task", "error", err)
		return res
	}
	telemetry.SchedulerTasksProcessed.WithLabelValues(task.Type, outcome).Inc()
	res.Executed = 1

	if len(grp.duplicates) > 0 {
		n, err := s.store.DeleteByIDs(ctx, grp.duplicates)
		if err != nil {
			logger.Error("failed to delete duplicates", "duplicates", grp.duplicates, "error", err)
		} else {
			telemetry.SchedulerDuplicatesDeleted.Add(float64(n))
			res.DuplicatesDeleted = n
		}
	}

	logger.Info("task executed", "outcome", outcome, "duplicates_deleted", res.DuplicatesDeleted)
	s.publishExecuted(ctx, task, outcome, logger)
	return res
}

// execute вызывает handler с нормализованными params.
// Логгер задачи передаётся handler'у через ctx.
func (s *Scheduler) execute(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	ctx = telemetry.WithLogger(ctx, logger)

	telemetry.SchedulerTasksInFlight.Inc()
	defer telemetry.SchedulerTasksInFlight.Dec()

	start := time.Now()
	err := s.registry.Execute(ctx, task.Type, worker.NormalizeParams(task.Params))
	telemetry.SchedulerTaskDurationSeconds.WithLabelValues(task.Type).Observe(time.Since(start).Seconds())
	return err
}

// applySuccess переводит успешно выполненную задачу в следующее состояние.
//
//   - repeat + интервал: run_at = прежний run_at + интервал, pending
//   - repeat без интервала: pending, run_at не меняется
//   - разовая: удаляется
func (s *Scheduler) applySuccess(ctx context.Context, task *domain.Task, now time.Time) (string, error) {
	if !task.Repeat {
		if _, err := s.store.DeleteByIDs(ctx, []string{task.ID}); err != nil {
			return "", fmt.Errorf("delete task: %w", err)
		}
		return telemetry.OutcomeDeleted, nil
	}

	rule := ParseRepeatRule(task.RepeatRule)
	if rule.HasInterval() {
		next := task.EffectiveRunAt(now).Add(rule.Interval).UTC()
		if _, err := s.store.Update(ctx,
			repo.TaskFilter{ID: task.ID},
			repo.TaskChanges{Status: domain.TaskStatusPending, RunAt: &next},
		); err != nil {
			return "", fmt.Errorf("reschedule task: %w", err)
		}
		task.RunAt = next
		task.Status = domain.TaskStatusPending
		return telemetry.OutcomeRescheduled, nil
	}

	if _, err := s.store.Update(ctx,
		repo.TaskFilter{ID: task.ID},
		repo.TaskChanges{Status: domain.TaskStatusPending},
	); err != nil {
		return "", fmt.Errorf("reset task to pending: %w", err)
	}
	task.Status = domain.TaskStatusPending
	return telemetry.OutcomeKept, nil
}

// markFailed переводит задачу в failed по ID, без условия на статус.
func (s *Scheduler) markFailed(ctx context.Context, task *domain.Task, reason string, logger *slog.Logger) {
	telemetry.SchedulerTasksProcessed.WithLabelValues(task.Type, telemetry.OutcomeFailed).Inc()

	if _, err := s.store.Update(ctx,
		repo.TaskFilter{ID: task.ID},
		repo.TaskChanges{Status: domain.TaskStatusFailed},
	); err != nil {
		logger.Error("failed to mark task as failed", "error", err)
		return
	}
	task.Status = domain.TaskStatusFailed

	if s.publisher != nil {
		if err := s.publisher.PublishTaskFailed(ctx, task, reason); err != nil {
			logger.Warn("failed to publish task.failed", "error", err)
		}
	}
}

func (s *Scheduler) publishExecuted(ctx context.Context, task *domain.Task, outcome string, logger *slog.Logger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTaskExecuted(ctx, task, outcome); err != nil {
		logger.Warn("failed to publish task.executed", "error", err)
	}
}

func (s *Scheduler) acquireKey(key domain.DedupKey) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *Scheduler) releaseKey(key domain.DedupKey) {
	s.inFlightMu.Lock()
	delete(s.inFlight, key)
	s.inFlightMu.Unlock()
}
