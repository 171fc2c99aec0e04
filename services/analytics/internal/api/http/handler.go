package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/batcher"
	platformobservability "github.com/shestoi/nextbuy/platform/observability"
	"github.com/shestoi/nextbuy/services/analytics/internal/repository"
	"github.com/shestoi/nextbuy/services/analytics/internal/service"
)

// StatsReader чтение агрегатов
type StatsReader interface {
	Stats(ctx context.Context, shopID, day string) ([]repository.Counter, error)
}

// CounterResponse счётчик в ответе
type CounterResponse struct {
	ProductID string `json:"product_id"`
	Action    string `json:"action"`
	Count     int64  `json:"count"`
	Amount    string `json:"amount"`
}

// StatsResponse ответ GET /stats
type StatsResponse struct {
	ShopID   string            `json:"shop_id"`
	Day      string            `json:"day"`
	Counters []CounterResponse `json:"counters"`
}

// BatcherResponse состояние подписки и счётчики батчера
type BatcherResponse struct {
	State      string `json:"state"`
	Received   uint64 `json:"received"`
	Accepted   uint64 `json:"accepted"`
	Filtered   uint64 `json:"filtered"`
	Malformed  uint64 `json:"malformed"`
	Duplicates uint64 `json:"duplicates"`
	Overflowed uint64 `json:"overflowed"`
	Handled    uint64 `json:"handled"`
	Failed     uint64 `json:"failed"`
	Flushes    uint64 `json:"flushes"`
	Buffered   int    `json:"buffered"`
}

// Handler HTTP-обработчики Analytics Service
type Handler struct {
	stats   StatsReader
	batcher func() batcher.Stats
	logger  *zap.Logger
}

// NewHandler создаёт handler. batcherStats nil, если брокер выключен.
func NewHandler(stats StatsReader, batcherStats func() batcher.Stats, logger *zap.Logger) *Handler {
	return &Handler{stats: stats, batcher: batcherStats, logger: logger}
}

// GetStats обрабатывает GET /stats?shop_id=...&day=YYYY-MM-DD
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := r.URL.Query().Get("shop_id")
	day := r.URL.Query().Get("day")

	counters, err := h.stats.Stats(ctx, shopID, day)
	if err != nil {
		if errors.Is(err, service.ErrInvalidQuery) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		platformobservability.LoggerFromContext(ctx, h.logger).Error("failed to read stats", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{ShopID: shopID, Day: day, Counters: make([]CounterResponse, 0, len(counters))}
	for _, c := range counters {
		resp.Counters = append(resp.Counters, CounterResponse{
			ProductID: c.ProductID,
			Action:    c.Action,
			Count:     c.Count,
			Amount:    c.Amount.StringFixed(2),
		})
	}
	h.writeJSON(w, r, resp)
}

// GetBatcher обрабатывает GET /batcher
func (h *Handler) GetBatcher(w http.ResponseWriter, r *http.Request) {
	if h.batcher == nil {
		http.Error(w, "Broker disabled", http.StatusNotFound)
		return
	}

	s := h.batcher()
	h.writeJSON(w, r, BatcherResponse{
		State:      s.State.String(),
		Received:   s.Received,
		Accepted:   s.Accepted,
		Filtered:   s.Filtered,
		Malformed:  s.Malformed,
		Duplicates: s.Duplicates,
		Overflowed: s.Overflowed,
		Handled:    s.Handled,
		Failed:     s.Failed,
		Flushes:    s.Flushes,
		Buffered:   s.Buffered,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		platformobservability.LoggerFromContext(r.Context(), h.logger).Error("failed to encode response", zap.Error(err))
	}
}
