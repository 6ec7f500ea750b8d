package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы обработки задачи (label outcome).
const (
	OutcomeRescheduled = "rescheduled"
	OutcomeKept        = "kept"
	OutcomeDeleted     = "deleted"
	OutcomeFailed      = "failed"
)

var (
	// ─── Poller ──────────────────────────────────────────────────────────────────

	SchedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Total poll ticks, labelled by result (ok, error).",
	}, []string{"result"})

	SchedulerDueTasks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "due_tasks",
		Help:      "Due pending tasks found per tick.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 500},
	})

	// ─── Dedup / Claim ───────────────────────────────────────────────────────────

	SchedulerDuplicatesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "duplicates_deleted_total",
		Help:      "Superseded duplicate tasks deleted after a successful run.",
	})

	SchedulerClaimsLost = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "claims_lost_total",
		Help:      "Survivors skipped because another actor changed them first.",
	})

	SchedulerUnknownTypes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "unknown_task_types_total",
		Help:      "Tasks failed because no handler is registered for their type.",
	}, []string{"task_type"})

	// ─── Execution ───────────────────────────────────────────────────────────────

	SchedulerTasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "tasks_processed_total",
		Help:      "Tasks executed by the poller, labelled by task_type and outcome.",
	}, []string{"task_type", "outcome"})

	SchedulerTaskDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "task_duration_seconds",
		Help:      "Handler execution time in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"task_type"})

	SchedulerTasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "tasks_inflight",
		Help:      "Handlers currently running.",
	})

	// ─── Triggers / API ──────────────────────────────────────────────────────────

	TriggerFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "trigger_fired_total",
		Help:      "Manual trigger invocations, labelled by source (api, mq, startup).",
	}, []string{"source"})

	TriggerTasksExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "scheduler",
		Name:      "trigger_tasks_executed_total",
		Help:      "Tasks successfully executed by manual triggers.",
	})

	APITasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "api",
		Name:      "tasks_created_total",
		Help:      "Total tasks created through the API.",
	}, []string{"task_type"})

	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests, labelled by method and status code.",
	}, []string{"method", "code"})
)
