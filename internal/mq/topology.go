package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeTasks — события о выполнении задач (topic, ключи task.*).
	ExchangeTasks Exchange = "crm.tasks"

	// ExchangeTriggers — команды на запуск триггеров.
	ExchangeTriggers Exchange = "crm.triggers"

	// ExchangeDLQ — сообщения, которые не удалось обработать.
	ExchangeDLQ Exchange = "crm.dlq"
)

// Queues — имена очередей.
const (
	QueueTasksTrigger Queue = "tasks.trigger"
	QueueTasksFailed  Queue = "tasks.failed"
	QueueDLQTriggers  Queue = "dlq.triggers"
)

// Routing keys.
const (
	RoutingKeyTaskExecuted RoutingKey = "task.executed"
	RoutingKeyTaskFailed   RoutingKey = "task.failed"
	RoutingKeyTriggerFire  RoutingKey = "fire"
	RoutingKeyDLQTriggers  RoutingKey = "triggers"
)

// SetupTopology объявляет exchanges, очереди и привязки планировщика.
// Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTasks, amqp.ExchangeTopic},
		{ExchangeTriggers, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTriggers),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// tasks.trigger — команды на запуск триггеров, битые сообщения уходят в DLQ
		{QueueTasksTrigger, dlqArgs},

		// tasks.failed — задачи в статусе failed, для разбора операторами
		{QueueTasksFailed, nil},

		{QueueDLQTriggers, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	for _, b := range bindings() {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

func bindings() []binding {
	return []binding{
		{QueueTasksTrigger, RoutingKeyTriggerFire, ExchangeTriggers},
		{QueueTasksFailed, RoutingKeyTaskFailed, ExchangeTasks},
		{QueueDLQTriggers, RoutingKeyDLQTriggers, ExchangeDLQ},
	}
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  CRM scheduler RabbitMQ topology:

    crm.tasks (topic)
    ├── task.executed      → подписчики CRM
    └── tasks.failed [routing: task.failed]
            Разбор операторами

    crm.triggers (direct)
    └── tasks.trigger [routing: fire]
            Consumer: crm-scheduler → FireTrigger
            DLQ: dlq.triggers

    crm.dlq (direct)
    └── dlq.triggers [routing: triggers]
`
}
