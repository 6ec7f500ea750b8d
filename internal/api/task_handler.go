package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eduvision/crm/internal/domain"
	"github.com/eduvision/crm/internal/scheduler"
	"github.com/eduvision/crm/internal/telemetry"
)

// Healthz отвечает, что процесс жив.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// CreateTask создаёт отложенную задачу.
// POST /api/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		LegacyError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := scheduler.NewTask{
		Type:       strings.TrimSpace(req.TaskType),
		Params:     paramsText(req.Params),
		Repeat:     bool(req.Repeat),
		RepeatRule: req.RepeatRule,
	}
	if in.Type == "" {
		LegacyError(w, http.StatusBadRequest, "task_type required")
		return
	}

	if s := strings.TrimSpace(req.RunAt); s != "" {
		runAt, ok := domain.ParseRunAt(s)
		if !ok {
			LegacyError(w, http.StatusBadRequest, fmt.Sprintf("invalid run_at %q", req.RunAt))
			return
		}
		in.RunAt = &runAt
	}

	task, err := h.tasks.CreateTask(r.Context(), in)
	if errors.Is(err, scheduler.ErrTaskTypeRequired) {
		LegacyError(w, http.StatusBadRequest, "task_type required")
		return
	}
	if err != nil {
		h.logger.Error("create task failed", "task_type", in.Type, "error", err)
		LegacyError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	telemetry.APITasksCreated.WithLabelValues(task.Type).Inc()

	JSON(w, http.StatusOK, CreateTaskResponse{
		Success: true,
		Task:    TaskFromDomain(task),
	})
}

// TriggerTasks немедленно выполняет задачи с указанным триггером.
// POST /api/tasks/trigger/{trigger_name}
func (h *Handler) TriggerTasks(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("trigger_name"))
	if name == "" {
		LegacyError(w, http.StatusBadRequest, "empty trigger")
		return
	}

	telemetry.TriggerFired.WithLabelValues("api").Inc()

	start := time.Now()
	executed, err := h.tasks.FireTrigger(r.Context(), name)
	if errors.Is(err, scheduler.ErrEmptyTrigger) {
		LegacyError(w, http.StatusBadRequest, "empty trigger")
		return
	}
	if err != nil {
		h.logger.Error("trigger failed", "trigger", name, "error", err)
		LegacyError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("trigger fired",
		"trigger", name,
		"executed", executed,
		"duration", time.Since(start),
	)

	JSON(w, http.StatusOK, TriggerResponse{Success: true, Executed: executed})
}

// ListTasks возвращает задачи с фильтром по статусу.
// GET /api/v1/tasks?status=failed
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := domain.TaskStatus(strings.TrimSpace(r.URL.Query().Get("status")))

	tasks, err := h.tasks.ListTasks(r.Context(), status)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i := range tasks {
		result[i] = TaskFromDomain(&tasks[i])
	}

	List(w, result, len(result))
}

// GetTask возвращает задачу по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	task, err := h.tasks.GetTask(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(task))
}

// ResetTask возвращает задачу из failed в pending.
// POST /api/v1/tasks/{id}/reset
func (h *Handler) ResetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	task, err := h.tasks.ResetTask(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, TaskFromDomain(task))
}
