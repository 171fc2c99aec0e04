package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/shestoi/nextbuy/platform/batcher"
)

// NewReader создаёт reader consumer group. Offset коммитится вручную (CommitMessages).
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
}

// Subscriber открывает подписку batcher-а поверх kafka consumer group
type Subscriber struct {
	brokers []string
	groupID string
	topic   string
}

// NewSubscriber создаёт Subscriber для топика
func NewSubscriber(brokers []string, groupID, topic string) *Subscriber {
	return &Subscriber{brokers: brokers, groupID: groupID, topic: topic}
}

// Subscribe реализует batcher.Subscriber
func (s *Subscriber) Subscribe(ctx context.Context) (batcher.Subscription, error) {
	return &subscription{reader: NewReader(s.brokers, s.groupID, s.topic)}, nil
}

type subscription struct {
	reader *kafka.Reader
}

func (s *subscription) Fetch(ctx context.Context) (batcher.Message, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return batcher.Message{}, err
	}
	return ToBatcherMessage(m), nil
}

func (s *subscription) Commit(ctx context.Context, msgs ...batcher.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset})
	}
	return s.reader.CommitMessages(ctx, out...)
}

func (s *subscription) Close() error {
	return s.reader.Close()
}

// ToBatcherMessage переводит kafka.Message в транспортно-независимое сообщение
func ToBatcherMessage(m kafka.Message) batcher.Message {
	var headers map[string]string
	if len(m.Headers) > 0 {
		headers = make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			headers[h.Key] = string(h.Value)
		}
	}
	return batcher.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   headers,
	}
}
