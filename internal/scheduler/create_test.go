package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/repo"
)

func TestCreateTask_Defaults(t *testing.T) {
	store := repo.NewMemoryTaskStore()
	sched := newTestScheduler(store)

	task, err := sched.CreateTask(context.Background(), NewTask{Type: " cleanup_reserve "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if task.Type != "cleanup_reserve" {
		t.Errorf("expected trimmed type, got %q", task.Type)
	}
	if task.Params != "{}" {
		t.Errorf("expected default params {}, got %q", task.Params)
	}
	if !task.RunAt.Equal(t0) {
		t.Errorf("expected run_at now, got %v", task.RunAt)
	}
	if task.Status != domain.TaskStatusPending || task.Repeat {
		t.Errorf("unexpected status/repeat: %s/%v", task.Status, task.Repeat)
	}

	stored := mustGet(t, store, task.ID)
	if stored.Type != "cleanup_reserve" || stored.Params != "{}" {
		t.Errorf("unexpected stored task: %+v", stored)
	}
}

func TestCreateTask_Explicit(t *testing.T) {
	store := repo.NewMemoryTaskStore()
	sched := newTestScheduler(store)

	runAt := time.Date(2024, 3, 2, 9, 0, 0, 0, time.FixedZone("EET", 2*3600))
	task, err := sched.CreateTask(context.Background(), NewTask{
		Type:       "update_currency",
		Params:     `{"update_prices":false}`,
		RunAt:      &runAt,
		Repeat:     true,
		RepeatRule: "1 day,on_server_start",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.RunAt.Equal(runAt) || task.RunAt.Location() != time.UTC {
		t.Errorf("expected run_at %v in UTC, got %v", runAt, task.RunAt)
	}
	if !task.Repeat || task.RepeatRule != "1 day,on_server_start" {
		t.Errorf("unexpected repeat fields: %v %q", task.Repeat, task.RepeatRule)
	}
}

func TestCreateTask_TypeRequired(t *testing.T) {
	sched := newTestScheduler(repo.NewMemoryTaskStore())
	if _, err := sched.CreateTask(context.Background(), NewTask{Type: "  "}); !errors.Is(err, ErrTaskTypeRequired) {
		t.Errorf("expected ErrTaskTypeRequired, got %v", err)
	}
}

func TestCreateTask_NoExistenceCheck(t *testing.T) {
	store := repo.NewMemoryTaskStore()
	sched := newTestScheduler(store)

	for range 2 {
		if _, err := sched.CreateTask(context.Background(), NewTask{Type: "update_currency"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 tasks, got %d", store.Len())
	}
}
