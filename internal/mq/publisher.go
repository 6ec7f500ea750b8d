package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/eduvision/crm/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTaskExecuted MessageType = "task.executed"
	MessageTypeTaskFailed   MessageType = "task.failed"
	MessageTypeTriggerFire  MessageType = "trigger.fire"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TaskEventPayload — payload событий task.executed и task.failed.
type TaskEventPayload struct {
	TaskID     string    `json:"task_id"`
	TaskType   string    `json:"task_type"`
	Status     string    `json:"status"`
	RunAt      time.Time `json:"run_at"`
	Repeat     bool      `json:"repeat"`
	RepeatRule string    `json:"repeat_rule,omitempty"`

	// Outcome — что стало с задачей: rescheduled, kept, deleted, triggered.
	Outcome string `json:"outcome,omitempty"`

	// Error — причина перехода в failed.
	Error string `json:"error,omitempty"`
}

// TriggerFirePayload — payload команды на запуск триггера.
type TriggerFirePayload struct {
	Name string `json:"name"`
}

// newMessage оборачивает payload в сообщение с новым ID.
func newMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// newTaskEvent строит payload события о задаче.
func newTaskEvent(task *domain.Task, outcome, reason string) TaskEventPayload {
	return TaskEventPayload{
		TaskID:     task.ID,
		TaskType:   task.Type,
		Status:     task.Status.String(),
		RunAt:      task.RunAt,
		Repeat:     task.Repeat,
		RepeatRule: task.RepeatRule,
		Outcome:    outcome,
		Error:      reason,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishTaskExecuted публикует событие об успешном выполнении задачи.
func (p *Publisher) PublishTaskExecuted(ctx context.Context, task *domain.Task, outcome string) error {
	msg := newMessage(MessageTypeTaskExecuted, newTaskEvent(task, outcome, ""))
	return p.Publish(ctx, ExchangeTasks, RoutingKeyTaskExecuted, msg)
}

// PublishTaskFailed публикует событие о переходе задачи в failed.
func (p *Publisher) PublishTaskFailed(ctx context.Context, task *domain.Task, reason string) error {
	msg := newMessage(MessageTypeTaskFailed, newTaskEvent(task, "", reason))
	return p.Publish(ctx, ExchangeTasks, RoutingKeyTaskFailed, msg)
}

// PublishTriggerFire ставит в очередь команду на запуск триггера.
// Потребитель: crm-scheduler.
func (p *Publisher) PublishTriggerFire(ctx context.Context, name string) error {
	msg := newMessage(MessageTypeTriggerFire, TriggerFirePayload{Name: name})
	return p.Publish(ctx, ExchangeTriggers, RoutingKeyTriggerFire, msg)
}
