package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/platform/observability"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=EventHandler --dir=. --output=./mocks --outpkg=mocks
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=DeadLetterPublisher --dir=. --output=./mocks --outpkg=mocks

// MessageReader часть kafka.Reader, нужная consumer-у
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventHandler обрабатывает разобранное уведомление
type EventHandler interface {
	Handle(ctx context.Context, ev events.Event) error
}

// DeadLetterPublisher отправляет необрабатываемые сообщения в DLQ
type DeadLetterPublisher interface {
	Publish(ctx context.Context, m kafka.Message, cause error, eventType, eventID string) error
}

// NotificationConsumer читает события Notification из Kafka и передаёт их в сервис
type NotificationConsumer struct {
	logger      *zap.Logger
	reader      MessageReader
	handler     EventHandler
	dlq         DeadLetterPublisher
	maxAttempts int
	backoffBase time.Duration
}

// NewNotificationConsumer создаёт consumer уведомлений
func NewNotificationConsumer(
	logger *zap.Logger,
	reader MessageReader,
	handler EventHandler,
	dlq DeadLetterPublisher,
	maxAttempts int,
	backoffBase time.Duration,
) *NotificationConsumer {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &NotificationConsumer{
		logger:      logger,
		reader:      reader,
		handler:     handler,
		dlq:         dlq,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Start запускает чтение и блокируется до отмены ctx.
// At-least-once: FetchMessage, обработка, затем CommitMessages.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting notification consumer",
		zap.Int("max_retry_attempts", c.maxAttempts),
		zap.Duration("retry_backoff_base", c.backoffBase),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			c.logger.Error("failed to fetch message from kafka", zap.Error(err))
			if !sleep(ctx, c.backoffBase) {
				return nil
			}
			continue
		}

		if !c.processMessage(ctx, m) {
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("failed to commit message offset",
				zap.Error(err),
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
			continue
		}

		c.logger.Debug("message offset committed",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
	}
}

// processMessage возвращает true, если offset можно коммитить
func (c *NotificationConsumer) processMessage(ctx context.Context, m kafka.Message) bool {
	ctx = observability.ExtractKafkaHeaders(ctx, m)
	logger := observability.L(ctx, c.logger)

	ev, err := decodeNotification(m.Value)
	if err != nil {
		logger.Error("failed to parse notification event",
			zap.Error(err),
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return c.toDLQ(ctx, m, err, string(ev.Type()), ev.ID)
	}

	if !c.handleWithRetry(ctx, ev) {
		if ctx.Err() != nil {
			return false
		}
		logger.Error("failed to handle notification after all retries, sending to DLQ",
			zap.String("event_id", ev.ID),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return c.toDLQ(ctx, m, errors.New("exhausted all retry attempts"), string(ev.Type()), ev.ID)
	}

	return true
}

// handleWithRetry возвращает false, если попытки исчерпаны или ctx отменён
func (c *NotificationConsumer) handleWithRetry(ctx context.Context, ev events.Event) bool {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		// 1x, 2x, 4x от backoffBase
		if attempt > 1 {
			backoff := c.backoffBase * time.Duration(1<<uint(attempt-2))
			c.logger.Info("retrying notification event",
				zap.String("event_id", ev.ID),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Duration("backoff", backoff),
			)
			if !sleep(ctx, backoff) {
				return false
			}
		}

		err := c.handler.Handle(ctx, ev)
		if err == nil {
			return true
		}

		var parseErr *events.ParseError
		if errors.As(err, &parseErr) {
			lastErr = err
			break
		}

		lastErr = err
		c.logger.Warn("failed to handle notification event",
			zap.Error(err),
			zap.String("event_id", ev.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
		)
	}

	c.logger.Error("exhausted all retry attempts",
		zap.Error(lastErr),
		zap.String("event_id", ev.ID),
		zap.Int("max_attempts", c.maxAttempts),
	)
	return false
}

// toDLQ возвращает true, если сообщение ушло в DLQ и его можно коммитить
func (c *NotificationConsumer) toDLQ(ctx context.Context, m kafka.Message, cause error, eventType, eventID string) bool {
	if err := c.dlq.Publish(context.WithoutCancel(ctx), m, cause, eventType, eventID); err != nil {
		c.logger.Error("failed to publish to DLQ, not committing", zap.Error(err))
		return false
	}
	return true
}

// Close закрывает Kafka reader
func (c *NotificationConsumer) Close() error {
	c.logger.Info("closing notification consumer")
	return c.reader.Close()
}

func decodeNotification(data []byte) (events.Event, error) {
	ev, err := events.Decode(data)
	if err != nil {
		return events.Event{}, err
	}
	if _, ok := ev.Payload.(events.Notification); !ok {
		return ev, &events.ParseError{
			Field:   "event_type",
			Message: fmt.Sprintf("unexpected event type %q", ev.Type()),
		}
	}
	return ev, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
