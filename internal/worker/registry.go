package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Handler — обработчик задач одного типа.
//
// params — JSON-объект из задачи. Handler сам разбирает его в свою структуру.
type Handler interface {
	TaskType() string
	Handle(ctx context.Context, params json.RawMessage) error
}

// HandlerFunc — адаптер функции к Handler.
type HandlerFunc struct {
	Type string
	Fn   func(ctx context.Context, params json.RawMessage) error
}

// TaskType возвращает тип задачи.
func (h HandlerFunc) TaskType() string { return h.Type }

// Handle вызывает функцию.
func (h HandlerFunc) Handle(ctx context.Context, params json.RawMessage) error {
	return h.Fn(ctx, params)
}

// Registry — реестр handler'ов по task_type.
//
// Собирается один раз при старте и после этого не меняется,
// поэтому безопасен для конкурентного чтения без блокировок.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry создаёт реестр из списка handler'ов.
// Паникует, если один task_type зарегистрирован дважды.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		taskType := h.TaskType()
		if _, exists := r.handlers[taskType]; exists {
			panic(fmt.Errorf("%w: %s", ErrDuplicateHandler, taskType))
		}
		r.handlers[taskType] = h
	}
	return r
}

// Get возвращает handler для типа задачи.
func (r *Registry) Get(taskType string) (Handler, error) {
	h, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return h, nil
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(taskType string) bool {
	_, ok := r.handlers[taskType]
	return ok
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Execute выполняет handler типа taskType.
// Паника внутри handler'а возвращается как ошибка ErrHandlerPanic.
func (r *Registry) Execute(ctx context.Context, taskType string, params json.RawMessage) (err error) {
	h, err := r.Get(taskType)
	if err != nil {
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, taskType, rec)
		}
	}()

	return h.Handle(ctx, params)
}
