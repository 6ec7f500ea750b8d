package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresSchema — DDL коллекций, с которыми работает планировщик.
// repeat хранится текстом "true"/"false", как его пишут остальные модули CRM.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id          TEXT PRIMARY KEY,
	task_type   TEXT NOT NULL,
	params      TEXT NOT NULL DEFAULT '{}',
	run_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	status      TEXT NOT NULL DEFAULT 'pending',
	repeat      TEXT NOT NULL DEFAULT 'false',
	repeat_rule TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS scheduled_tasks_status_run_at_idx
	ON scheduled_tasks (status, run_at);

CREATE TABLE IF NOT EXISTS reserve (
	id_reserve TEXT PRIMARY KEY,
	id_prod    TEXT NOT NULL,
	quantity   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sklad (
	id_prod TEXT PRIMARY KEY,
	free    INTEGER NOT NULL DEFAULT 0,
	reserv  INTEGER NOT NULL DEFAULT 0
);
`

// sqliteSchema — то же для SQLite. run_at хранится строкой в domain.RunAtLayout.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id          TEXT PRIMARY KEY,
	task_type   TEXT NOT NULL,
	params      TEXT NOT NULL DEFAULT '{}',
	run_at      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	repeat      TEXT NOT NULL DEFAULT 'false',
	repeat_rule TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS scheduled_tasks_status_run_at_idx
	ON scheduled_tasks (status, run_at);

CREATE TABLE IF NOT EXISTS reserve (
	id_reserve TEXT PRIMARY KEY,
	id_prod    TEXT NOT NULL,
	quantity   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sklad (
	id_prod TEXT PRIMARY KEY,
	free    INTEGER NOT NULL DEFAULT 0,
	reserv  INTEGER NOT NULL DEFAULT 0
);
`

// Migrate создаёт таблицы в PostgreSQL, если их ещё нет.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// MigrateSQLite создаёт таблицы в SQLite.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}
