package service

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

func paidNotification(id string) events.Event {
	return events.Event{
		ID:         id,
		OccurredAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Payload: events.Notification{
			Title:      "New order",
			Message:    "Order sess-1 has been paid",
			CreatorID:  "buyer-1",
			ReceiverID: "shop-a",
		},
	}
}

func TestNotificationService_Handle(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		event      events.Event
		setupStore func(s *mocks.Store)
		wantErr    bool
	}{
		{
			name:  "success: new notification stored",
			event: paidNotification("evt-1"),
			setupStore: func(s *mocks.Store) {
				s.On("Create", mock.Anything, mock.MatchedBy(func(r record.Record) bool {
					return r.EventID == "evt-1" && r.ReceiverID == "shop-a"
				})).Return(true, nil).Once()
			},
		},
		{
			name:  "success: duplicate is a no-op",
			event: paidNotification("evt-1"),
			setupStore: func(s *mocks.Store) {
				s.On("Create", mock.Anything, mock.Anything).Return(false, nil).Once()
			},
		},
		{
			name:  "error: store failure",
			event: paidNotification("evt-1"),
			setupStore: func(s *mocks.Store) {
				s.On("Create", mock.Anything, mock.Anything).Return(false, errors.New("connection refused")).Once()
			},
			wantErr: true,
		},
		{
			name:    "error: not a notification",
			event:   events.New(events.PaymentFailed{SessionID: "s-1"}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewStore(t)
			if tt.setupStore != nil {
				tt.setupStore(store)
			}

			err := NewNotificationService(zap.NewNop(), store).Handle(ctx, tt.event)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNotificationService_RedeliveryStoresOnce(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()
	svc := NewNotificationService(zap.NewNop(), store)

	ev := paidNotification("evt-1")
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Handle(ctx, ev))
	}

	list, err := svc.List(ctx, "shop-a", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationService_SameRecordAsDirectWrite(t *testing.T) {
	ctx := context.Background()
	ev := paidNotification("evt-7")

	viaBroker := record.NewMemoryStore()
	require.NoError(t, NewNotificationService(zap.NewNop(), viaBroker).Handle(ctx, ev))

	direct := record.NewMemoryStore()
	require.NoError(t, record.NewDirectNotifier(direct, zap.NewNop()).Notify(ctx, ev))

	a, err := viaBroker.ListByReceiver(ctx, "shop-a", 10)
	require.NoError(t, err)
	b, err := direct.ListByReceiver(ctx, "shop-a", 10)
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, a, b)
}
