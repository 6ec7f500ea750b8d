package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/repo"
	"github.com/eduvision/crm/internal/worker"
)

// t0 — "сейчас" в тестах планировщика.
var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// callLog — handler, записывающий полученные params.
type callLog struct {
	mu     sync.Mutex
	params []string
	err    error
}

func (c *callLog) handler(taskType string) worker.Handler {
	return worker.HandlerFunc{
		Type: taskType,
		Fn: func(ctx context.Context, params json.RawMessage) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.params = append(c.params, string(params))
			return c.err
		},
	}
}

func (c *callLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.params)
}

func (c *callLog) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.params) == 0 {
		return ""
	}
	return c.params[len(c.params)-1]
}

// recordedEvent — событие, отправленное в EventPublisher.
type recordedEvent struct {
	kind   string
	taskID string
	detail string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) PublishTaskExecuted(ctx context.Context, task *domain.Task, outcome string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{"executed", task.ID, outcome})
	return nil
}

func (p *fakePublisher) PublishTaskFailed(ctx context.Context, task *domain.Task, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{"failed", task.ID, reason})
	return nil
}

func newTestScheduler(store TaskStore, handlers ...worker.Handler) *Scheduler {
	return New(Config{
		Store:    store,
		Registry: worker.NewRegistry(handlers...),
		Pool:     worker.NewPool(2),
		Logger:   discardLogger(),
		Now:      func() time.Time { return t0 },
	})
}

// insertTask сохраняет задачу и возвращает её ID.
func insertTask(t *testing.T, store TaskStore, task domain.Task) string {
	t.Helper()
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if task.Params == "" {
		task.Params = domain.EmptyParams
	}
	if err := store.Insert(context.Background(), &task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	return task.ID
}

func mustGet(t *testing.T, store TaskStore, id string) *domain.Task {
	t.Helper()
	task, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get task %s: %v", id, err)
	}
	return task
}

func allTasks(t *testing.T, store TaskStore) []domain.Task {
	t.Helper()
	tasks, err := store.Select(context.Background(), repo.TaskFilter{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	return tasks
}
