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
	ExchangeConversions Exchange = "docconv.conversions"
	ExchangeDLQ         Exchange = "docconv.dlq"
)

// Queues — имена очередей.
const (
	QueueConversionsFinished Queue = "conversions.finished"
	QueueDLQConversions      Queue = "dlq.conversions"
)

// Routing keys.
const (
	RoutingKeyFinished       RoutingKey = "finished"
	RoutingKeyDLQConversions RoutingKey = "conversions"
)

// binding — привязка очереди к обменнику.
type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
	args       amqp.Table
}

// topology возвращает очереди и их привязки.
// Очередь событий отправляет отклонённые сообщения в DLQ.
func topology() []binding {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQConversions),
	}

	return []binding{
		{QueueConversionsFinished, RoutingKeyFinished, ExchangeConversions, dlqArgs},
		{QueueDLQConversions, RoutingKeyDLQConversions, ExchangeDLQ, nil},
	}
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeConversions, ExchangeDLQ} {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, b := range topology() {
			_, err := ch.QueueDeclare(
				string(b.queue), // name
				true,            // durable
				false,           // delete when unused
				false,           // exclusive
				false,           // no-wait
				b.args,          // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			err = ch.QueueBind(
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
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  docconv RabbitMQ topology:

    docconv.conversions (direct)
    └── conversions.finished [routing: finished]
            Consumer: docconv-audit
            DLQ: dlq.conversions

    docconv.dlq (direct)
    └── dlq.conversions [routing: conversions]
            Manual processing
  `
}
