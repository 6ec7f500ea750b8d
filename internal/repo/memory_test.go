package repo

import (
	"context"
	"testing"
	"time"

	"github.com/eduvision/crm/internal/domain"
)

func TestMemoryTaskStore_Contract(t *testing.T) {
	runTaskStoreContract(t, func(t *testing.T) taskStore {
		return NewMemoryTaskStore()
	})
}

func TestMemoryTaskStore_UnparseableRunAtIsDue(t *testing.T) {
	store := NewMemoryTaskStore()
	id := store.Put(Document{
		FieldType:   "update_currency",
		FieldParams: "{}",
		FieldRunAt:  "not-a-date",
		FieldStatus: "pending",
		FieldRepeat: "false",
	})

	tasks, err := store.Select(context.Background(), TaskFilter{
		Status:    domain.TaskStatusPending,
		DueBefore: time.Now(),
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != id {
		t.Fatalf("expected document with broken run_at to be due, got %+v", tasks)
	}
	if !tasks[0].RunAt.IsZero() {
		t.Errorf("expected zero run_at, got %v", tasks[0].RunAt)
	}
}

func TestMemoryTaskStore_PutKeepsRawText(t *testing.T) {
	store := NewMemoryTaskStore()
	id := store.Put(Document{
		FieldType:   "cleanup_reserve",
		FieldParams: `{"reserve_id":1}`,
		FieldRunAt:  "2024-03-01T10:00:00",
		FieldStatus: "pending",
		FieldRepeat: "yes",
	})

	task, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !task.Repeat {
		t.Error("repeat=yes should be read as true")
	}
	if !task.RunAt.Equal(baseTime) {
		t.Errorf("run_at without zone should be read as UTC, got %v", task.RunAt)
	}

	// Update переписывает только указанные поля
	store.Update(context.Background(), TaskFilter{ID: id}, TaskChanges{Status: domain.TaskStatusRunning})
	raw, _ := store.Raw(id)
	if raw[FieldRepeat] != "yes" {
		t.Errorf("repeat must stay untouched, got %q", raw[FieldRepeat])
	}
	if raw[FieldRunAt] != "2024-03-01T10:00:00" {
		t.Errorf("run_at must stay untouched, got %q", raw[FieldRunAt])
	}
	if raw[FieldStatus] != "running" {
		t.Errorf("expected status running, got %q", raw[FieldStatus])
	}
}

func TestMemoryReservationStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReservationStore()

	if _, err := store.GetReservation(ctx, "r1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	store.CreateReservation(ctx, &domain.Reservation{ID: "r1", ProductID: "p1", Quantity: 3})
	if err := store.CreateReservation(ctx, &domain.Reservation{ID: "r1"}); err != ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	res, err := store.GetReservation(ctx, "r1")
	if err != nil || res.Quantity != 3 {
		t.Fatalf("unexpected reservation: %+v, %v", res, err)
	}

	if err := store.DeleteReservation(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteReservation(ctx, "r1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	store.UpsertStock(ctx, &domain.Stock{ProductID: "p1", Free: 1, Reserved: 3})
	stock, err := store.GetStock(ctx, "p1")
	if err != nil || stock.Free != 1 || stock.Reserved != 3 {
		t.Errorf("unexpected stock: %+v, %v", stock, err)
	}
}
