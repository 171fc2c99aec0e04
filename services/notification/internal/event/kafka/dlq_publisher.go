package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter часть kafka.Writer, нужная DLQ
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DLQPublisher публикует сообщения в Dead Letter Queue
type DLQPublisher struct {
	logger *zap.Logger
	writer MessageWriter
	now    func() time.Time
}

// NewDLQPublisher создаёт DLQ publisher поверх writer с заданным топиком
func NewDLQPublisher(logger *zap.Logger, writer MessageWriter) *DLQPublisher {
	return &DLQPublisher{
		logger: logger,
		writer: writer,
		now:    time.Now,
	}
}

// DLQMessage сообщение в DLQ: исходное сообщение и причина отказа
type DLQMessage struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int       `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	EventType         string    `json:"event_type,omitempty"`
	EventID           string    `json:"event_id,omitempty"`
}

// Publish публикует сообщение в DLQ. Ключ - event_id, если он известен.
func (p *DLQPublisher) Publish(ctx context.Context, original kafka.Message, cause error, eventType, eventID string) error {
	errorMsg := ""
	if cause != nil {
		errorMsg = cause.Error()
	}

	payload, err := json.Marshal(DLQMessage{
		OriginalTopic:     original.Topic,
		OriginalPartition: original.Partition,
		OriginalOffset:    original.Offset,
		OriginalKey:       string(original.Key),
		OriginalValue:     string(original.Value),
		ErrorMessage:      errorMsg,
		FailedAt:          p.now().UTC(),
		EventType:         eventType,
		EventID:           eventID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	key := original.Key
	if eventID != "" {
		key = []byte(eventID)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: payload}); err != nil {
		p.logger.Error("failed to publish message to DLQ",
			zap.Error(err),
			zap.String("original_topic", original.Topic),
			zap.Int("original_partition", original.Partition),
			zap.Int64("original_offset", original.Offset),
		)
		return err
	}

	p.logger.Info("message published to DLQ",
		zap.String("original_topic", original.Topic),
		zap.Int("original_partition", original.Partition),
		zap.Int64("original_offset", original.Offset),
		zap.String("error_message", errorMsg),
	)
	return nil
}

// Close закрывает writer
func (p *DLQPublisher) Close() error {
	p.logger.Info("closing DLQ publisher")
	return p.writer.Close()
}
