package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/docconv/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeConversionFinished MessageType = "conversion.finished"
)

// Message — конверт сообщения.
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

// ConversionFinishedPayload — итог одного запроса на конвертацию.
// Содержит только метаданные: ни файлы, ни токены в событие не попадают.
type ConversionFinishedPayload struct {
	ConversionID   uuid.UUID  `json:"conversion_id"`
	FileName       string     `json:"file_name"`
	ResultFileName string     `json:"result_file_name,omitempty"`
	TaskID         string     `json:"task_id,omitempty"`
	Outcome        string     `json:"outcome"`
	Error          string     `json:"error,omitempty"`
	PollAttempts   int        `json:"poll_attempts"`
	InputSize      int64      `json:"input_size"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// NewConversionFinishedPayload строит payload из записи конвертации.
func NewConversionFinishedPayload(c *domain.Conversion) ConversionFinishedPayload {
	return ConversionFinishedPayload{
		ConversionID:   c.ID,
		FileName:       c.FileName,
		ResultFileName: c.ResultFileName,
		TaskID:         c.TaskID,
		Outcome:        string(c.Outcome),
		Error:          c.Error,
		PollAttempts:   c.PollAttempts,
		InputSize:      c.InputSize,
		StartedAt:      c.StartedAt,
		FinishedAt:     c.FinishedAt,
	}
}

// ToDomain восстанавливает запись конвертации.
func (p ConversionFinishedPayload) ToDomain() *domain.Conversion {
	return &domain.Conversion{
		ID:             p.ConversionID,
		FileName:       p.FileName,
		ResultFileName: p.ResultFileName,
		TaskID:         p.TaskID,
		Outcome:        domain.Outcome(p.Outcome),
		Error:          p.Error,
		PollAttempts:   p.PollAttempts,
		InputSize:      p.InputSize,
		StartedAt:      p.StartedAt,
		FinishedAt:     p.FinishedAt,
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
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

// PublishConversionFinished публикует итог конвертации.
// Потребитель: docconv-audit.
func (p *Publisher) PublishConversionFinished(ctx context.Context, c *domain.Conversion) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeConversionFinished,
		Payload:   NewConversionFinishedPayload(c),
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeConversions, RoutingKeyFinished, msg)
}
