package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/batcher"
	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/services/analytics/internal/repository"
	"github.com/shestoi/nextbuy/services/analytics/internal/repository/memory"
	"github.com/shestoi/nextbuy/services/analytics/internal/repository/mocks"
)

var occurredAt = time.Date(2026, 5, 1, 23, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))

func behaviorEvent(id string, b events.UserBehavior) events.Event {
	return events.Event{ID: id, OccurredAt: occurredAt, Payload: b}
}

func TestAnalyticsService_ApplyEvent(t *testing.T) {
	ctx := context.Background()
	purchase := events.UserBehavior{
		UserID:    "user-1",
		Action:    events.ActionPurchase,
		ProductID: "p-1",
		ShopID:    "shop-a",
		Amount:    decimal.RequireFromString("12.50"),
	}

	tests := []struct {
		name        string
		ev          events.Event
		setupMock   func(r *mocks.CounterRepository)
		wantApplied bool
		wantErr     error
		wantAnyErr  bool
	}{
		{
			name: "success: purchase counted with amount in UTC day",
			ev:   behaviorEvent("evt-1", purchase),
			setupMock: func(r *mocks.CounterRepository) {
				key := repository.CounterKey{Day: "2026-05-01", ShopID: "shop-a", ProductID: "p-1", Action: events.ActionPurchase}
				r.On("Apply", mock.Anything, "evt-1", key, mock.MatchedBy(func(d decimal.Decimal) bool {
					return d.Equal(decimal.RequireFromString("12.50"))
				})).Return(nil).Once()
			},
			wantApplied: true,
		},
		{
			name: "success: non-purchase action ignores amount",
			ev: behaviorEvent("evt-2", events.UserBehavior{
				UserID: "user-1", Action: events.ActionProductView, ShopID: "shop-a", Amount: decimal.NewFromInt(5),
			}),
			setupMock: func(r *mocks.CounterRepository) {
				r.On("Apply", mock.Anything, "evt-2", mock.Anything, mock.MatchedBy(func(d decimal.Decimal) bool {
					return d.IsZero()
				})).Return(nil).Once()
			},
			wantApplied: true,
		},
		{
			name: "success: duplicate is not applied twice",
			ev:   behaviorEvent("evt-1", purchase),
			setupMock: func(r *mocks.CounterRepository) {
				r.On("Apply", mock.Anything, "evt-1", mock.Anything, mock.Anything).Return(repository.ErrAlreadyApplied).Once()
			},
			wantApplied: false,
		},
		{
			name: "error: repository failure",
			ev:   behaviorEvent("evt-3", purchase),
			setupMock: func(r *mocks.CounterRepository) {
				r.On("Apply", mock.Anything, "evt-3", mock.Anything, mock.Anything).Return(errors.New("mongo down")).Once()
			},
			wantAnyErr: true,
		},
		{
			name:    "error: not a behavior event",
			ev:      events.Event{ID: "evt-4", OccurredAt: occurredAt, Payload: events.Notification{Title: "t", ReceiverID: "r"}},
			wantErr: ErrNotBehavior,
		},
		{
			name:       "error: missing event id",
			ev:         behaviorEvent("", purchase),
			wantAnyErr: true,
		},
		{
			name:       "error: missing user",
			ev:         behaviorEvent("evt-5", events.UserBehavior{Action: events.ActionPurchase}),
			wantAnyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewCounterRepository(t)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}
			svc := NewAnalyticsService(zap.NewNop(), repo)

			applied, err := svc.ApplyEvent(ctx, tt.ev)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantAnyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantApplied, applied)
			}
		})
	}
}

func TestAnalyticsService_RedeliveryCountsOnce(t *testing.T) {
	ctx := context.Background()
	svc := NewAnalyticsService(zap.NewNop(), memory.NewCounterRepository())

	ev := behaviorEvent("evt-1", events.UserBehavior{
		UserID: "user-1", Action: events.ActionPurchase, ProductID: "p-1", ShopID: "shop-a",
		Amount: decimal.RequireFromString("20.00"),
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Handle(ctx, batcher.Item[events.Event]{ID: ev.ID, Action: events.ActionPurchase, Value: ev}))
	}

	counters, err := svc.Stats(ctx, "shop-a", "2026-05-01")
	require.NoError(t, err)
	require.Len(t, counters, 1)
	assert.Equal(t, int64(1), counters[0].Count)
	assert.Equal(t, "20.00", counters[0].Amount.StringFixed(2))
}

func TestAnalyticsService_Stats_InvalidQuery(t *testing.T) {
	svc := NewAnalyticsService(zap.NewNop(), memory.NewCounterRepository())

	_, err := svc.Stats(context.Background(), "", "2026-05-01")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Stats(context.Background(), "shop-a", "01.05.2026")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
