package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/docconv/internal/domain"
	"github.com/shaiso/docconv/internal/mq"
	"github.com/shaiso/docconv/internal/telemetry"
)

// Default configuration values.
const defaultPrefetch = 10

// Store — хранилище истории конвертаций. *repo.ConversionRepo удовлетворяет интерфейсу.
type Store interface {
	Save(ctx context.Context, c *domain.Conversion) error
}

// Config — конфигурация Recorder.
type Config struct {
	// Store — куда записывать историю (обязательно).
	Store Store

	// Conn — соединение с RabbitMQ (обязательно для Start).
	Conn *mq.Connection

	// Prefetch — количество сообщений без ack (default: 10).
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// Recorder потребляет события conversion.finished и сохраняет их в Store.
//
// Повторная доставка безопасна: Store перезаписывает запись по ID.
// Ошибка Store возвращает сообщение в очередь, битое сообщение уходит в DLQ.
type Recorder struct {
	store    Store
	conn     *mq.Connection
	prefetch int
	logger   *slog.Logger

	consumer   *mq.Consumer
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New создаёт Recorder.
func New(cfg Config) *Recorder {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		store:    cfg.Store,
		conn:     cfg.Conn,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Start запускает потребление очереди conversions.finished.
func (r *Recorder) Start(ctx context.Context) error {
	if r.conn == nil {
		return errors.New("audit recorder: amqp connection is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.consumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueConversionsFinished),
		Handler:  r.handleDelivery,
		Prefetch: r.prefetch,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("audit consumer error", "error", err)
		}
	}()

	r.logger.Info("audit recorder started", "queue", mq.QueueConversionsFinished)
	return nil
}

// Stop останавливает Recorder и ждёт завершения обработки.
func (r *Recorder) Stop() {
	r.logger.Info("stopping audit recorder...")

	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	if r.consumer != nil {
		r.consumer.Stop()
	}

	r.wg.Wait()
	r.logger.Info("audit recorder stopped")
}

func (r *Recorder) handleDelivery(ctx context.Context, delivery *mq.Delivery) error {
	ctx = telemetry.WithLogger(ctx, r.logger.With("message_id", delivery.Message.ID))
	return r.Record(ctx, &delivery.Message)
}

// Record сохраняет одно событие.
func (r *Recorder) Record(ctx context.Context, msg *mq.Message) error {
	if msg.Type != mq.MessageTypeConversionFinished {
		return fmt.Errorf("%w: unexpected message type %q", mq.ErrPermanent, msg.Type)
	}

	payload, err := mq.ParsePayload[mq.ConversionFinishedPayload](msg)
	if err != nil {
		return err
	}

	conv := payload.ToDomain()
	if err := validate(conv); err != nil {
		return fmt.Errorf("%w: %v", mq.ErrPermanent, err)
	}

	if err := r.store.Save(ctx, conv); err != nil {
		return fmt.Errorf("save conversion %s: %w", conv.ID, err)
	}

	telemetry.FromContext(ctx).Info("conversion recorded",
		"conversion_id", conv.ID,
		"outcome", conv.Outcome,
		"file_name", conv.FileName,
	)
	return nil
}

// validate проверяет обязательные поля события.
func validate(c *domain.Conversion) error {
	if c.ID == uuid.Nil {
		return errors.New("conversion_id is required")
	}
	switch c.Outcome {
	case domain.OutcomeSucceeded, domain.OutcomeFailed, domain.OutcomeTimeout, domain.OutcomeRejected:
	default:
		return fmt.Errorf("unknown outcome %q", c.Outcome)
	}
	if c.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	return nil
}
