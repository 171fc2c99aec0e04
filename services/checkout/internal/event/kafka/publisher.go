package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/platform/observability"
)

// Topics топики доменных событий
type Topics struct {
	Payments      string
	Refunds       string
	Payouts       string
	Behavior      string
	Notifications string
}

// For топик для типа события
func (t Topics) For(typ events.Type) (string, error) {
	var topic string
	switch typ {
	case events.TypePaymentCompleted, events.TypePaymentFailed:
		topic = t.Payments
	case events.TypeRefundCompleted:
		topic = t.Refunds
	case events.TypePayoutInitiated, events.TypePayoutCompleted:
		topic = t.Payouts
	case events.TypeUserBehavior:
		topic = t.Behavior
	case events.TypeNotification:
		topic = t.Notifications
	}
	if topic == "" {
		return "", fmt.Errorf("no topic configured for event type %q", typ)
	}
	return topic, nil
}

// MessageWriter часть kafka.Writer, которой пользуется Publisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher публикует доменные события в Kafka.
// Расчётные события и уведомления пишутся синхронно, поведенческие через асинхронный writer.
type Publisher struct {
	logger   *zap.Logger
	writer   MessageWriter
	behavior MessageWriter
	topics   Topics
}

// NewPublisher создаёт Publisher. behavior может быть nil: тогда все события идут через writer.
func NewPublisher(logger *zap.Logger, writer, behavior MessageWriter, topics Topics) *Publisher {
	return &Publisher{
		logger:   logger,
		writer:   writer,
		behavior: behavior,
		topics:   topics,
	}
}

// Publish реализует service.EventPublisher
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	topic, err := p.topics.For(ev.Type())
	if err != nil {
		return err
	}

	value, err := events.Encode(ev)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(ev.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.ID)},
			{Key: "event_type", Value: []byte(ev.Type())},
		},
	}
	observability.InjectKafkaHeaders(ctx, &msg)

	writer := p.writer
	if ev.Type() == events.TypeUserBehavior && p.behavior != nil {
		writer = p.behavior
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type())),
		)
		return fmt.Errorf("publish %s: %w", ev.Type(), err)
	}

	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type())),
		zap.String("key", ev.Key()),
	)
	return nil
}

// Notify реализует service.Notifier: уведомление уходит в топик уведомлений
func (p *Publisher) Notify(ctx context.Context, ev events.Event) error {
	if ev.Type() != events.TypeNotification {
		return fmt.Errorf("notify: unexpected event type %q", ev.Type())
	}
	return p.Publish(ctx, ev)
}

// Close закрывает writer-ы
func (p *Publisher) Close() error {
	var errs []error
	if err := p.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.behavior != nil {
		if err := p.behavior.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoggingPublisher используется при выключенном брокере: события только логируются
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher создаёт LoggingPublisher
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

// Publish реализует service.EventPublisher
func (p *LoggingPublisher) Publish(ctx context.Context, ev events.Event) error {
	observability.L(ctx, p.logger).Info("broker disabled, event not published",
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type())),
		zap.String("key", ev.Key()),
	)
	return nil
}
