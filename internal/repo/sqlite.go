package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eduvision/crm/internal/domain"
	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver
)

// OpenSQLite открывает (или создаёт) файл SQLite и применяет схему.
// Вызывающий отвечает за Close.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Один писатель: условное обновление видит результат предыдущего.
	db.SetMaxOpenConns(1)

	if err := MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// sqliteTaskWhere — WHERE по TaskFilter (?1..?4).
// run_at, который SQLite не разбирает как время, считается наступившим.
const sqliteTaskWhere = `
		WHERE (?1 IS NULL OR id = ?1)
		  AND (?2 IS NULL OR status = ?2)
		  AND (?3 IS NULL OR repeat = ?3)
		  AND (?4 IS NULL OR run_at <= ?4 OR julianday(run_at) IS NULL)`

// SQLiteTaskRepo — репозиторий отложенных задач в SQLite.
type SQLiteTaskRepo struct {
	db *sql.DB
}

// NewSQLiteTaskRepo создаёт новый SQLiteTaskRepo.
func NewSQLiteTaskRepo(db *sql.DB) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{db: db}
}

// Select возвращает задачи, подходящие под фильтр, в порядке run_at.
func (r *SQLiteTaskRepo) Select(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks` + sqliteTaskWhere + `
		ORDER BY run_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, sqliteFilterArgs(f)...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	return scanSQLiteTasks(rows)
}

// Insert сохраняет новую задачу. Пустой ID заполняется UUID.
func (r *SQLiteTaskRepo) Insert(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	query := `
		INSERT INTO scheduled_tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Type,
		task.Params,
		domain.FormatRunAt(task.RunAt),
		task.Status.String(),
		domain.FormatRepeat(task.Repeat),
		task.RepeatRule,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("insert task %s: %w", task.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update применяет изменения ко всем задачам под фильтром и возвращает изменённые.
func (r *SQLiteTaskRepo) Update(ctx context.Context, f TaskFilter, c TaskChanges) ([]domain.Task, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyChanges
	}

	var runAt *string
	if c.RunAt != nil {
		s := domain.FormatRunAt(*c.RunAt)
		runAt = &s
	}

	query := `
		UPDATE scheduled_tasks
		SET status = COALESCE(?5, status),
		    run_at = COALESCE(?6, run_at)` + sqliteTaskWhere + `
		RETURNING ` + taskColumns

	args := append(sqliteFilterArgs(f), nullString(string(c.Status)), runAt)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update tasks: %w", err)
	}
	defer rows.Close()

	return scanSQLiteTasks(rows)
}

// DeleteByIDs удаляет задачи по ID.
func (r *SQLiteTaskRepo) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_tasks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	return int(n), nil
}

// GetByID возвращает задачу по ID.
func (r *SQLiteTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE id = ?`
	task, err := scanSQLiteTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

// SQLiteReservationRepo — резервы и складские остатки в SQLite.
type SQLiteReservationRepo struct {
	db *sql.DB
}

// NewSQLiteReservationRepo создаёт новый SQLiteReservationRepo.
func NewSQLiteReservationRepo(db *sql.DB) *SQLiteReservationRepo {
	return &SQLiteReservationRepo{db: db}
}

// GetReservation возвращает резерв по id_reserve.
func (r *SQLiteReservationRepo) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	var res domain.Reservation
	err := r.db.QueryRowContext(ctx,
		`SELECT id_reserve, id_prod, quantity FROM reserve WHERE id_reserve = ?`, id,
	).Scan(&res.ID, &res.ProductID, &res.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

// CreateReservation сохраняет резерв.
func (r *SQLiteReservationRepo) CreateReservation(ctx context.Context, res *domain.Reservation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reserve (id_reserve, id_prod, quantity) VALUES (?, ?, ?)`,
		res.ID, res.ProductID, res.Quantity)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// DeleteReservation удаляет резерв по id_reserve.
func (r *SQLiteReservationRepo) DeleteReservation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reserve WHERE id_reserve = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStock возвращает складской остаток товара.
func (r *SQLiteReservationRepo) GetStock(ctx context.Context, productID string) (*domain.Stock, error) {
	var stock domain.Stock
	err := r.db.QueryRowContext(ctx,
		`SELECT id_prod, free, reserv FROM sklad WHERE id_prod = ?`, productID,
	).Scan(&stock.ProductID, &stock.Free, &stock.Reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &stock, nil
}

// UpsertStock записывает складской остаток товара.
func (r *SQLiteReservationRepo) UpsertStock(ctx context.Context, stock *domain.Stock) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sklad (id_prod, free, reserv) VALUES (?, ?, ?)
		ON CONFLICT (id_prod) DO UPDATE SET free = excluded.free, reserv = excluded.reserv`,
		stock.ProductID, stock.Free, stock.Reserved)
	if err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}
	return nil
}

// --- Helpers ---

func sqliteFilterArgs(f TaskFilter) []any {
	var due *string
	if !f.DueBefore.IsZero() {
		s := domain.FormatRunAt(f.DueBefore)
		due = &s
	}
	return []any{
		nullString(f.ID),
		nullString(string(f.Status)),
		nullRepeat(f.Repeat),
		due,
	}
}

// scanner — общий интерфейс *sql.Row и *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row scanner) (*domain.Task, error) {
	var (
		task   domain.Task
		runAt  string
		status string
		repeat string
	)
	if err := row.Scan(
		&task.ID,
		&task.Type,
		&task.Params,
		&runAt,
		&status,
		&repeat,
		&task.RepeatRule,
	); err != nil {
		return nil, err
	}
	// Нераспознанная строка остаётся нулевым временем.
	task.RunAt, _ = domain.ParseRunAt(runAt)
	task.Status = domain.TaskStatus(status)
	task.Repeat = domain.ParseBoolText(repeat)
	return &task, nil
}

func scanSQLiteTasks(rows *sql.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
