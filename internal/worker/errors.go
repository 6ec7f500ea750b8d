package worker

import "errors"

// Ошибки выполнения задач.
var (
	// ErrUnknownTaskType — нет handler'а для данного task_type.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrHandlerPanic — handler завершился паникой.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrInvalidParams — params не подходят handler'у.
	ErrInvalidParams = errors.New("invalid params")

	// ErrHTTPRequest — HTTP-запрос к внешнему сервису завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")

	// ErrDuplicateHandler — два handler'а зарегистрированы на один task_type.
	ErrDuplicateHandler = errors.New("duplicate handler")
)
