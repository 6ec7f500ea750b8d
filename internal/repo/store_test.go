package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eduvision/crm/internal/domain"
)

// taskStore — общий контракт хранилищ, проверяемый одинаковыми тестами.
type taskStore interface {
	Select(ctx context.Context, f TaskFilter) ([]domain.Task, error)
	Insert(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, f TaskFilter, c TaskChanges) ([]domain.Task, error)
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
	GetByID(ctx context.Context, id string) (*domain.Task, error)
}

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newPendingTask(taskType string, runAt time.Time) *domain.Task {
	return &domain.Task{
		Type:   taskType,
		Params: domain.EmptyParams,
		RunAt:  runAt,
		Status: domain.TaskStatusPending,
	}
}

// runTaskStoreContract прогоняет контракт TaskStore на конкретной реализации.
func runTaskStoreContract(t *testing.T, newStore func(t *testing.T) taskStore) {
	t.Run("InsertAssignsID", func(t *testing.T) {
		store := newStore(t)
		task := newPendingTask("cleanup_reserve", baseTime)
		task.Params = `{"reserve_id": 7}`
		task.Repeat = true
		task.RepeatRule = "1 day,on_server_start"

		if err := store.Insert(context.Background(), task); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if task.ID == "" {
			t.Fatal("expected ID to be assigned")
		}

		got, err := store.GetByID(context.Background(), task.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Params != `{"reserve_id": 7}` {
			t.Errorf("params must be stored verbatim, got %q", got.Params)
		}
		if !got.Repeat || got.RepeatRule != "1 day,on_server_start" {
			t.Errorf("unexpected repeat fields: %v %q", got.Repeat, got.RepeatRule)
		}
		if !got.RunAt.Equal(baseTime) {
			t.Errorf("expected run_at %v, got %v", baseTime, got.RunAt)
		}
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.GetByID(context.Background(), "missing"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SelectDue", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		due := newPendingTask("a", baseTime.Add(-time.Minute))
		exact := newPendingTask("b", baseTime)
		future := newPendingTask("c", baseTime.Add(time.Minute))
		failed := newPendingTask("d", baseTime.Add(-time.Hour))
		failed.Status = domain.TaskStatusFailed
		for _, task := range []*domain.Task{due, exact, future, failed} {
			if err := store.Insert(ctx, task); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}

		tasks, err := store.Select(ctx, TaskFilter{
			Status:    domain.TaskStatusPending,
			DueBefore: baseTime,
		})
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if len(tasks) != 2 {
			t.Fatalf("expected 2 due tasks, got %d", len(tasks))
		}
		got := map[string]bool{}
		for _, task := range tasks {
			got[task.Type] = true
		}
		if !got["a"] || !got["b"] {
			t.Errorf("expected tasks a and b, got %v", got)
		}
	})

	t.Run("SelectByRepeat", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		once := newPendingTask("once", baseTime)
		recurring := newPendingTask("recurring", baseTime)
		recurring.Repeat = true
		store.Insert(ctx, once)
		store.Insert(ctx, recurring)

		tasks, err := store.Select(ctx, TaskFilter{Repeat: Bool(true)})
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if len(tasks) != 1 || tasks[0].Type != "recurring" {
			t.Errorf("expected only recurring task, got %+v", tasks)
		}
	})

	t.Run("UpdateReturnsChangedRows", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		task := newPendingTask("a", baseTime)
		store.Insert(ctx, task)

		next := baseTime.Add(10 * time.Minute)
		changed, err := store.Update(ctx,
			TaskFilter{ID: task.ID},
			TaskChanges{Status: domain.TaskStatusPending, RunAt: &next},
		)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(changed) != 1 {
			t.Fatalf("expected 1 changed row, got %d", len(changed))
		}
		if !changed[0].RunAt.Equal(next) {
			t.Errorf("expected run_at %v, got %v", next, changed[0].RunAt)
		}

		// Условие по статусу не выполнено — ничего не меняется
		changed, err = store.Update(ctx,
			TaskFilter{ID: task.ID, Status: domain.TaskStatusFailed},
			TaskChanges{Status: domain.TaskStatusPending},
		)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(changed) != 0 {
			t.Errorf("expected no changed rows, got %d", len(changed))
		}
	})

	t.Run("UpdateRequiresChanges", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.Update(context.Background(), TaskFilter{ID: "x"}, TaskChanges{}); err != ErrEmptyChanges {
			t.Errorf("expected ErrEmptyChanges, got %v", err)
		}
	})

	t.Run("DeleteByIDs", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a := newPendingTask("a", baseTime)
		b := newPendingTask("b", baseTime)
		c := newPendingTask("c", baseTime)
		for _, task := range []*domain.Task{a, b, c} {
			store.Insert(ctx, task)
		}

		n, err := store.DeleteByIDs(ctx, []string{a.ID, c.ID, "missing"})
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 deleted, got %d", n)
		}

		tasks, _ := store.Select(ctx, TaskFilter{})
		if len(tasks) != 1 || tasks[0].ID != b.ID {
			t.Errorf("expected only task b to remain, got %+v", tasks)
		}

		if n, err := store.DeleteByIDs(ctx, nil); err != nil || n != 0 {
			t.Errorf("empty delete: n=%d err=%v", n, err)
		}
	})

	t.Run("AtMostOneClaim", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		task := newPendingTask("a", baseTime)
		store.Insert(ctx, task)

		const callers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				changed, err := store.Update(ctx,
					TaskFilter{ID: task.ID, Status: domain.TaskStatusPending},
					TaskChanges{Status: domain.TaskStatusRunning},
				)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if len(changed) == 1 {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if winners != 1 {
			t.Errorf("expected exactly 1 successful claim, got %d", winners)
		}

		got, _ := store.GetByID(ctx, task.ID)
		if got.Status != domain.TaskStatusRunning {
			t.Errorf("expected status running, got %s", got.Status)
		}
	})
}
