package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduvision/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// taskColumns — колонки scheduled_tasks в порядке scanTask.
const taskColumns = `id, task_type, params, run_at, status, repeat, repeat_rule`

// taskWhere — общий WHERE для выборки и условного обновления ($1..$4 — TaskFilter).
const taskWhere = `
		WHERE ($1::text IS NULL OR id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR repeat = $3)
		  AND ($4::timestamptz IS NULL OR run_at <= $4)`

// TaskRepo — репозиторий отложенных задач в PostgreSQL.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Select возвращает задачи, подходящие под фильтр, в порядке run_at.
func (r *TaskRepo) Select(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks` + taskWhere + `
		ORDER BY run_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, filterArgs(f)...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// Insert сохраняет новую задачу. Пустой ID заполняется UUID.
func (r *TaskRepo) Insert(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	query := `
		INSERT INTO scheduled_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Type,
		task.Params,
		task.RunAt,
		task.Status.String(),
		domain.FormatRepeat(task.Repeat),
		task.RepeatRule,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update применяет изменения ко всем задачам под фильтром и возвращает изменённые.
//
// Условие и запись выполняются одним оператором, поэтому из конкурентных
// вызовов с одинаковым фильтром {ID, Status: pending} строку получит только один.
func (r *TaskRepo) Update(ctx context.Context, f TaskFilter, c TaskChanges) ([]domain.Task, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyChanges
	}

	query := `
		UPDATE scheduled_tasks
		SET status = COALESCE($5, status),
		    run_at = COALESCE($6, run_at)` + taskWhere + `
		RETURNING ` + taskColumns

	args := append(filterArgs(f), nullString(string(c.Status)), c.RunAt)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update tasks: %w", err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// DeleteByIDs удаляет задачи по ID. Отсутствующие ID игнорируются.
func (r *TaskRepo) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.pool.Exec(ctx, `DELETE FROM scheduled_tasks WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// GetByID возвращает задачу по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE id = $1`
	return r.scanTask(r.pool.QueryRow(ctx, query, id))
}

// --- Helpers ---

func filterArgs(f TaskFilter) []any {
	return []any{
		nullString(f.ID),
		nullString(string(f.Status)),
		nullRepeat(f.Repeat),
		nullTime(f.DueBefore),
	}
}

func (r *TaskRepo) scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task   domain.Task
		status string
		repeat string
		runAt  time.Time
	)
	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.Params,
		&runAt,
		&status,
		&repeat,
		&task.RepeatRule,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task.RunAt = runAt.UTC()
	task.Status = domain.TaskStatus(status)
	task.Repeat = domain.ParseBoolText(repeat)
	return &task, nil
}

func (r *TaskRepo) scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
