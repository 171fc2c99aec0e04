package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/batcher"
	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/services/analytics/internal/repository/memory"
	"github.com/shestoi/nextbuy/services/analytics/internal/service"
)

func newRouter(t *testing.T, batcherStats func() batcher.Stats) (http.Handler, *service.AnalyticsService) {
	t.Helper()
	svc := service.NewAnalyticsService(zap.NewNop(), memory.NewCounterRepository())
	return NewRouter(NewHandler(svc, batcherStats, zap.NewNop()), nil, nil), svc
}

func TestGetStats(t *testing.T) {
	router, svc := newRouter(t, nil)
	ctx := context.Background()

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, amount := range []string{"10.00", "5.25"} {
		_, err := svc.ApplyEvent(ctx, events.Event{
			ID:         "evt-" + amount,
			OccurredAt: at.Add(time.Duration(i) * time.Minute),
			Payload: events.UserBehavior{
				UserID: "user-1", Action: events.ActionPurchase, ProductID: "p-1", ShopID: "shop-a",
				Amount: decimal.RequireFromString(amount),
			},
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{name: "success: counters for shop and day", query: "?shop_id=shop-a&day=2026-05-01", wantStatus: http.StatusOK, wantCount: 1},
		{name: "success: empty day", query: "?shop_id=shop-a&day=2026-05-02", wantStatus: http.StatusOK, wantCount: 0},
		{name: "error: missing shop", query: "?day=2026-05-01", wantStatus: http.StatusBadRequest},
		{name: "error: bad day", query: "?shop_id=shop-a&day=yesterday", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats"+tt.query, nil))
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp StatsResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			require.Len(t, resp.Counters, tt.wantCount)
			if tt.wantCount > 0 {
				assert.Equal(t, int64(2), resp.Counters[0].Count)
				assert.Equal(t, "15.25", resp.Counters[0].Amount)
			}
		})
	}
}

func TestGetBatcher(t *testing.T) {
	t.Run("error: broker disabled", func(t *testing.T) {
		router, _ := newRouter(t, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batcher", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("success: stats snapshot", func(t *testing.T) {
		router, _ := newRouter(t, func() batcher.Stats {
			return batcher.Stats{State: batcher.StateRunning, Received: 3, Handled: 2, Buffered: 1}
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batcher", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp BatcherResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "running", resp.State)
		assert.Equal(t, uint64(3), resp.Received)
		assert.Equal(t, 1, resp.Buffered)
	})
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
