package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// WriterOption настраивает kafka.Writer
type WriterOption func(*kafka.Writer)

// WithAsync включает асинхронную запись: WriteMessages не ждёт брокер,
// ошибки доставки только логируются.
func WithAsync(logger *zap.Logger) WriterOption {
	return func(w *kafka.Writer) {
		w.Async = true
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Error("async kafka write failed",
					zap.Error(err),
					zap.Int("messages", len(msgs)),
				)
			}
		}
	}
}

// WithBatchTimeout задаёт, сколько writer ждёт накопления батча перед отправкой
func WithBatchTimeout(d time.Duration) WriterOption {
	return func(w *kafka.Writer) {
		w.BatchTimeout = d
	}
}

// NewWriter создаёт writer. Пустой topic означает, что топик задаётся в каждом сообщении.
func NewWriter(brokers []string, topic string, opts ...WriterOption) *kafka.Writer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}
