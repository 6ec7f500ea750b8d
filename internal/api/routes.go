package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Служебные
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Эндпоинты, которыми пользуются модули CRM
	mux.Handle("POST /api/tasks", chain(http.HandlerFunc(h.CreateTask)))
	mux.Handle("POST /api/tasks/trigger/{trigger_name}", chain(http.HandlerFunc(h.TriggerTasks)))
	mux.Handle("POST /api/tasks/trigger/", chain(http.HandlerFunc(h.TriggerTasks)))

	// Tasks (операторы)
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))
	mux.Handle("POST /api/v1/tasks/{id}/reset", chain(http.HandlerFunc(h.ResetTask)))
}
