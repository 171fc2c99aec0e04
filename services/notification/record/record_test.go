package record_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/services/notification/record"
	"github.com/shestoi/nextbuy/services/notification/record/mocks"
)

func notificationEvent(id, receiver string, at time.Time) events.Event {
	return events.Event{
		ID:         id,
		OccurredAt: at,
		Payload: events.Notification{
			Title:        "Payment received",
			Message:      "Your order has been paid",
			CreatorID:    "system",
			ReceiverID:   receiver,
			RedirectLink: "/orders/sess-1",
		},
	}
}

func TestFromEvent(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 123456789, time.FixedZone("MSK", 3*3600))

	tests := []struct {
		name    string
		event   events.Event
		wantErr bool
		isNot   bool
	}{
		{name: "success: notification", event: notificationEvent("evt-1", "buyer-1", at)},
		{
			name:    "error: other payload type",
			event:   events.Event{ID: "evt-2", Payload: events.PaymentFailed{SessionID: "s"}},
			wantErr: true,
			isNot:   true,
		},
		{name: "error: missing event id", event: notificationEvent("", "buyer-1", at), wantErr: true},
		{name: "error: missing receiver", event: notificationEvent("evt-3", "", at), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := record.FromEvent(tt.event)
			if tt.wantErr {
				require.Error(t, err)
				if tt.isNot {
					assert.ErrorIs(t, err, record.ErrNotNotification)
				}
				return
			}
			require.NoError(t, err)

			assert.NotEmpty(t, r.ID)
			assert.Equal(t, "evt-1", r.EventID)
			assert.Equal(t, "Payment received", r.Title)
			assert.Equal(t, "buyer-1", r.ReceiverID)
			assert.Equal(t, "system", r.CreatorID)
			assert.Equal(t, "/orders/sess-1", r.RedirectLink)
			assert.Equal(t, time.UTC, r.CreatedAt.Location())
			assert.True(t, r.CreatedAt.Equal(at.Truncate(time.Microsecond)))
		})
	}
}

func TestFromEvent_DeterministicID(t *testing.T) {
	at := time.Now()
	a, err := record.FromEvent(notificationEvent("evt-1", "buyer-1", at))
	require.NoError(t, err)
	b, err := record.FromEvent(notificationEvent("evt-1", "buyer-1", at))
	require.NoError(t, err)
	c, err := record.FromEvent(notificationEvent("evt-2", "buyer-1", at))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestDirectNotifier_Notify(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()
	n := record.NewDirectNotifier(store, zap.NewNop())

	ev := notificationEvent("evt-1", "buyer-1", time.Now())
	require.NoError(t, n.Notify(ctx, ev))
	require.NoError(t, n.Notify(ctx, ev))

	list, err := store.ListByReceiver(ctx, "buyer-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	want, err := record.FromEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, want, list[0])
}

func TestDirectNotifier_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("error: store failure is returned", func(t *testing.T) {
		store := mocks.NewStore(t)
		store.On("Create", mock.Anything, mock.AnythingOfType("record.Record")).
			Return(false, errors.New("db down")).Once()

		err := record.NewDirectNotifier(store, zap.NewNop()).Notify(ctx, notificationEvent("evt-1", "buyer-1", time.Now()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("error: non-notification event does not touch the store", func(t *testing.T) {
		store := mocks.NewStore(t)
		err := record.NewDirectNotifier(store, zap.NewNop()).Notify(ctx, events.New(events.PaymentFailed{SessionID: "s-1"}))
		assert.ErrorIs(t, err, record.ErrNotNotification)
	})
}

func TestMemoryStore_ListByReceiver(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"evt-1", "evt-2", "evt-3"} {
		r, err := record.FromEvent(notificationEvent(id, "seller-1", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		created, err := store.Create(ctx, r)
		require.NoError(t, err)
		assert.True(t, created)
	}
	other, err := record.FromEvent(notificationEvent("evt-9", "seller-2", base))
	require.NoError(t, err)
	_, err = store.Create(ctx, other)
	require.NoError(t, err)

	list, err := store.ListByReceiver(ctx, "seller-1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "evt-3", list[0].EventID)
	assert.Equal(t, "evt-2", list[1].EventID)

	list, err = store.ListByReceiver(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
