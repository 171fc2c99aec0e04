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

	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
	"github.com/shestoi/nextbuy/services/checkout/internal/repository/memory"
	repoMocks "github.com/shestoi/nextbuy/services/checkout/internal/repository/mocks"
	"github.com/shestoi/nextbuy/services/checkout/internal/service/mocks"
)

func TestSessionStore_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	line := func(product, shop string, qty int, price string) repository.CartLine {
		return repository.CartLine{ProductID: product, ShopID: shop, Quantity: qty, UnitPrice: d(price)}
	}

	tests := []struct {
		name        string
		input       CreateSessionInput
		setupCoupon func(c *mocks.CouponResolver)
		wantErr     error
		wantTotal   string
		wantSellers []string
	}{
		{
			name: "success: groups sellers and applies coupon",
			input: CreateSessionInput{
				BuyerID: "buyer-1",
				Cart: []repository.CartLine{
					line("p-1", "shop-b", 1, "40.00"),
					line("p-2", "shop-a", 2, "30.00"),
					line("p-3", "shop-b", 1, "0"),
				},
				CouponCode: "SAVE10",
			},
			setupCoupon: func(c *mocks.CouponResolver) {
				c.On("Resolve", mock.Anything, "SAVE10", mock.MatchedBy(func(v decimal.Decimal) bool {
					return v.Equal(d("100.00"))
				})).Return(d("10.00"), nil).Once()
			},
			wantTotal:   "90.00",
			wantSellers: []string{"shop-a", "shop-b"},
		},
		{
			name: "success: discount larger than cart floors total at zero",
			input: CreateSessionInput{
				BuyerID:    "buyer-1",
				Cart:       []repository.CartLine{line("p-1", "shop-a", 1, "5.00")},
				CouponCode: "BIG",
			},
			setupCoupon: func(c *mocks.CouponResolver) {
				c.On("Resolve", mock.Anything, "BIG", mock.Anything).Return(d("50.00"), nil).Once()
			},
			wantTotal:   "0.00",
			wantSellers: []string{"shop-a"},
		},
		{
			name: "error: unknown coupon",
			input: CreateSessionInput{
				BuyerID:    "buyer-1",
				Cart:       []repository.CartLine{line("p-1", "shop-a", 1, "5.00")},
				CouponCode: "NOPE",
			},
			setupCoupon: func(c *mocks.CouponResolver) {
				c.On("Resolve", mock.Anything, "NOPE", mock.Anything).Return(d("0"), errors.New("unknown coupon")).Once()
			},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "error: empty cart",
			input:   CreateSessionInput{BuyerID: "buyer-1"},
			wantErr: ErrInvalidCart,
		},
		{
			name:    "error: missing buyer",
			input:   CreateSessionInput{Cart: []repository.CartLine{line("p-1", "shop-a", 1, "5.00")}},
			wantErr: ErrInvalidCart,
		},
		{
			name:    "error: zero quantity",
			input:   CreateSessionInput{BuyerID: "buyer-1", Cart: []repository.CartLine{line("p-1", "shop-a", 0, "5.00")}},
			wantErr: ErrInvalidCart,
		},
		{
			name:    "error: negative price",
			input:   CreateSessionInput{BuyerID: "buyer-1", Cart: []repository.CartLine{line("p-1", "shop-a", 1, "-1.00")}},
			wantErr: ErrInvalidCart,
		},
		{
			name:    "error: line without shop",
			input:   CreateSessionInput{BuyerID: "buyer-1", Cart: []repository.CartLine{line("p-1", "", 1, "1.00")}},
			wantErr: ErrInvalidCart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupons := mocks.NewCouponResolver(t)
			if tt.setupCoupon != nil {
				tt.setupCoupon(coupons)
			}
			repo := memory.NewSessionRepository()
			store := NewSessionStore(repo, coupons, 30*time.Minute, "USD", zap.NewNop())
			store.now = func() time.Time { return now }

			s, err := store.Create(ctx, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			assert.NotEmpty(t, s.ID)
			assert.Equal(t, repository.SessionPending, s.Status)
			assert.Equal(t, "usd", s.Currency)
			assert.Equal(t, tt.wantTotal, s.TotalAmount.StringFixed(2))
			assert.Equal(t, tt.wantSellers, s.Sellers)
			assert.Equal(t, now.Add(30*time.Minute), s.ExpiresAt)

			stored, err := store.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.ID, stored.ID)
		})
	}
}

func TestSessionStore_MarkCompleted(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(memory.NewSessionRepository(), nil, time.Minute, "usd", zap.NewNop())

	s, err := store.Create(ctx, CreateSessionInput{
		BuyerID: "buyer-1",
		Cart:    []repository.CartLine{{ProductID: "p-1", ShopID: "shop-a", Quantity: 1, UnitPrice: d("1.00")}},
	})
	require.NoError(t, err)

	require.NoError(t, store.MarkCompleted(ctx, s.ID))

	err = store.MarkCompleted(ctx, s.ID)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "completed", stateErr.Current)

	assert.ErrorIs(t, store.MarkCompleted(ctx, "missing"), ErrSessionNotFound)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_CouponWithoutResolver(t *testing.T) {
	store := NewSessionStore(memory.NewSessionRepository(), nil, time.Minute, "usd", zap.NewNop())
	_, err := store.Create(context.Background(), CreateSessionInput{
		BuyerID:    "buyer-1",
		Cart:       []repository.CartLine{{ProductID: "p-1", ShopID: "shop-a", Quantity: 1, UnitPrice: d("1.00")}},
		CouponCode: "SAVE10",
	})
	assert.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestSessionStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store := NewSessionStore(memory.NewSessionRepository(), nil, 30*time.Minute, "usd", zap.NewNop())
	store.now = func() time.Time { return now }

	cart := []repository.CartLine{{ProductID: "p-1", ShopID: "shop-a", Quantity: 1, UnitPrice: d("1.00")}}
	old, err := store.Create(ctx, CreateSessionInput{BuyerID: "buyer-1", Cart: cart})
	require.NoError(t, err)
	paid, err := store.Create(ctx, CreateSessionInput{BuyerID: "buyer-2", Cart: cart})
	require.NoError(t, err)
	require.NoError(t, store.MarkCompleted(ctx, paid.ID))

	now = now.Add(20 * time.Minute)
	fresh, err := store.Create(ctx, CreateSessionInput{BuyerID: "buyer-3", Cart: cart})
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	swept, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.SessionExpired, got.Status)

	got, err = store.Get(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.SessionCompleted, got.Status)

	got, err = store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.SessionPending, got.Status)

	// истёкшая сессия не возвращается в completed
	var stateErr *InvalidStateError
	require.ErrorAs(t, store.MarkCompleted(ctx, old.ID), &stateErr)
	assert.Equal(t, "expired", stateErr.Current)
}

func TestSessionStore_SweepSkipsConcurrentlyCompleted(t *testing.T) {
	ctx := context.Background()
	repo := repoMocks.NewSessionRepository(t)
	store := NewSessionStore(repo, nil, time.Minute, "usd", zap.NewNop())

	repo.On("ListExpiredPending", mock.Anything, mock.Anything, sweepBatch).Return([]string{"s-1", "s-2"}, nil).Once()
	repo.On("UpdateStatus", mock.Anything, "s-1", repository.SessionPending, repository.SessionExpired).
		Return(&repository.StatusConflictError{Current: repository.SessionCompleted}).Once()
	repo.On("UpdateStatus", mock.Anything, "s-2", repository.SessionPending, repository.SessionExpired).
		Return(nil).Once()

	swept, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
}
