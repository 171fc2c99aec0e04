package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/services/notification/internal/event/kafka/mocks"
)

// fakeReader отдаёт заранее заданные сообщения, затем блокируется до отмены ctx
type fakeReader struct {
	mu      sync.Mutex
	queue   []kafka.Message
	commits []kafka.Message
	idle    bool
	closed  bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	for i := range msgs {
		msgs[i].Topic = "notifications"
		msgs[i].Offset = int64(i)
	}
	return &fakeReader{queue: msgs}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.idle = true
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) isIdle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idle
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.commits))
	for _, m := range r.commits {
		out = append(out, m.Offset)
	}
	return out
}

func encoded(t *testing.T, ev events.Event) kafka.Message {
	t.Helper()
	data, err := events.Encode(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(ev.Key()), Value: data}
}

func notification(id string) events.Event {
	return events.Event{
		ID:         id,
		OccurredAt: time.Now().UTC(),
		Payload:    events.Notification{Title: "Payment received", ReceiverID: "buyer-1", CreatorID: "system"},
	}
}

// runUntilIdle запускает consumer и останавливает его, когда очередь вычитана
func runUntilIdle(t *testing.T, c *NotificationConsumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, r.isIdle, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNotificationConsumer_Start(t *testing.T) {
	t.Run("success: handled message is committed", func(t *testing.T) {
		ev := notification("evt-1")
		reader := newFakeReader(encoded(t, ev))
		handler := mocks.NewEventHandler(t)
		handler.On("Handle", mock.Anything, mock.MatchedBy(func(e events.Event) bool { return e.ID == "evt-1" })).
			Return(nil).Once()

		c := NewNotificationConsumer(zap.NewNop(), reader, handler, mocks.NewDeadLetterPublisher(t), 3, time.Millisecond)
		runUntilIdle(t, c, reader)

		assert.Equal(t, []int64{0}, reader.committedOffsets())
	})

	t.Run("success: malformed message goes to DLQ and does not block the next one", func(t *testing.T) {
		reader := newFakeReader(kafka.Message{Value: []byte("{not json")}, encoded(t, notification("evt-2")))
		handler := mocks.NewEventHandler(t)
		handler.On("Handle", mock.Anything, mock.Anything).Return(nil).Once()
		dlq := mocks.NewDeadLetterPublisher(t)
		dlq.On("Publish", mock.Anything, mock.MatchedBy(func(m kafka.Message) bool { return m.Offset == 0 }),
			mock.Anything, "", "").Return(nil).Once()

		c := NewNotificationConsumer(zap.NewNop(), reader, handler, dlq, 3, time.Millisecond)
		runUntilIdle(t, c, reader)

		assert.Equal(t, []int64{0, 1}, reader.committedOffsets())
	})

	t.Run("success: other event type goes to DLQ", func(t *testing.T) {
		other := events.New(events.PaymentFailed{SessionID: "s-1"})
		reader := newFakeReader(encoded(t, other))
		dlq := mocks.NewDeadLetterPublisher(t)
		dlq.On("Publish", mock.Anything, mock.Anything, mock.Anything, string(events.TypePaymentFailed), other.ID).
			Return(nil).Once()

		c := NewNotificationConsumer(zap.NewNop(), reader, mocks.NewEventHandler(t), dlq, 3, time.Millisecond)
		runUntilIdle(t, c, reader)

		assert.Equal(t, []int64{0}, reader.committedOffsets())
	})

	t.Run("success: transient failure is retried", func(t *testing.T) {
		reader := newFakeReader(encoded(t, notification("evt-3")))
		handler := mocks.NewEventHandler(t)
		handler.On("Handle", mock.Anything, mock.Anything).Return(errors.New("db down")).Twice()
		handler.On("Handle", mock.Anything, mock.Anything).Return(nil).Once()

		c := NewNotificationConsumer(zap.NewNop(), reader, handler, mocks.NewDeadLetterPublisher(t), 3, time.Millisecond)
		runUntilIdle(t, c, reader)

		assert.Equal(t, []int64{0}, reader.committedOffsets())
	})

	t.Run("error: exhausted retries go to DLQ", func(t *testing.T) {
		reader := newFakeReader(encoded(t, notification("evt-4")))
		handler := mocks.NewEventHandler(t)
		handler.On("Handle", mock.Anything, mock.Anything).Return(errors.New("db down")).Times(2)
		dlq := mocks.NewDeadLetterPublisher(t)
		dlq.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(err error) bool {
			return err != nil && err.Error() == "exhausted all retry attempts"
		}), string(events.TypeNotification), "evt-4").Return(nil).Once()

		c := NewNotificationConsumer(zap.NewNop(), reader, handler, dlq, 2, time.Millisecond)
		runUntilIdle(t, c, reader)

		assert.Equal(t, []int64{0}, reader.committedOffsets())
	})

	t.Run("error: DLQ failure leaves offset uncommitted", func(t *testing.T) {
		reader := newFakeReader(kafka.Message{Value: []byte("garbage")})
		dlq := mocks.NewDeadLetterPublisher(t)
		dlq.On("Publish", mock.Anything, mock.Anything, mock.Anything, "", "").Return(errors.New("kafka down")).Once()

		c := NewNotificationConsumer(zap.NewNop(), reader, mocks.NewEventHandler(t), dlq, 3, time.Millisecond)
		runUntilIdle(t, c, reader)

		assert.Empty(t, reader.committedOffsets())
	})
}

func TestNotificationConsumer_Close(t *testing.T) {
	reader := newFakeReader()
	c := NewNotificationConsumer(zap.NewNop(), reader, mocks.NewEventHandler(t), mocks.NewDeadLetterPublisher(t), 1, 0)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}
