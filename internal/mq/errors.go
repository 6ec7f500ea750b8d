package mq

import "errors"

// Ошибки обмена сообщениями.
var (
	// ErrNoChannel — AMQP канал недоступен (соединение восстанавливается).
	ErrNoChannel = errors.New("no channel available")

	// ErrPermanent — сообщение нельзя обработать повторно, оно уходит в DLQ.
	ErrPermanent = errors.New("permanent message error")
)
