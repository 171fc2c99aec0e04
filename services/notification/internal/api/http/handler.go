package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	platformobservability "github.com/shestoi/nextbuy/platform/observability"
	"github.com/shestoi/nextbuy/services/notification/record"
)

const maxListLimit = 200

// Lister источник уведомлений для чтения
type Lister interface {
	List(ctx context.Context, receiverID string, limit int) ([]record.Record, error)
}

// Handler содержит HTTP-обработчики Notification Service
type Handler struct {
	lister Lister
	logger *zap.Logger
}

// NewHandler создаёт новый HTTP handler
func NewHandler(lister Lister, logger *zap.Logger) *Handler {
	return &Handler{lister: lister, logger: logger}
}

// NotificationsResponse ответ GET /notifications
type NotificationsResponse struct {
	Items []record.Record `json:"items"`
}

// GetNotifications обрабатывает GET /notifications?receiver_id=&limit=
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := platformobservability.LoggerFromContext(ctx, h.logger)

	receiverID := r.URL.Query().Get("receiver_id")
	if receiverID == "" {
		http.Error(w, "receiver_id is required", http.StatusBadRequest)
		return
	}

	limit := record.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	items, err := h.lister.List(ctx, receiverID, limit)
	if err != nil {
		logger.Error("failed to list notifications", zap.Error(err), zap.String("receiver_id", receiverID))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []record.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NotificationsResponse{Items: items}); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
