package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
	platformobservability "github.com/shestoi/nextbuy/platform/observability"
	"github.com/shestoi/nextbuy/services/checkout/internal/provider"
	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
	"github.com/shestoi/nextbuy/services/checkout/internal/service"
)

// maxWebhookBody верхняя граница тела webhook-а
const maxWebhookBody = 64 << 10

// Handler содержит HTTP-обработчики Checkout Service
type Handler struct {
	sessions     *service.SessionStore
	orchestrator *service.Orchestrator
	gate         *service.PayoutAccountGate
	webhooks     provider.WebhookParser
	behavior     service.EventPublisher
	logger       *zap.Logger
}

// NewHandler создаёт новый HTTP handler.
// behavior публикует поведенческие события; при выключенном брокере это логирующий publisher.
func NewHandler(
	sessions *service.SessionStore,
	orchestrator *service.Orchestrator,
	gate *service.PayoutAccountGate,
	webhooks provider.WebhookParser,
	behavior service.EventPublisher,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:     sessions,
		orchestrator: orchestrator,
		gate:         gate,
		webhooks:     webhooks,
		behavior:     behavior,
		logger:       logger,
	}
}

// PostSessions обрабатывает POST /checkout/sessions - создание checkout-сессии
func (h *Handler) PostSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	cart := make([]repository.CartLine, 0, len(req.Cart))
	for _, line := range req.Cart {
		cart = append(cart, repository.CartLine{
			ProductID: line.ProductID,
			ShopID:    line.ShopID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	session, err := h.sessions.Create(ctx, service.CreateSessionInput{
		BuyerID:    req.BuyerID,
		Cart:       cart,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, toSessionResponse(session))
}

// GetSession обрабатывает GET /checkout/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionResponse(session))
}

// PostIntents обрабатывает POST /checkout/sessions/{id}/intents - интенты по продавцам.
// Повторный вызов возвращает тот же набор интентов.
func (h *Handler) PostIntents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	records, err := h.orchestrator.CreateIntents(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, toIntentsResponse(sessionID, records))
}

// PutPayoutAccount обрабатывает PUT /sellers/{id}/payout-account
func (h *Handler) PutPayoutAccount(w http.ResponseWriter, r *http.Request) {
	var req PayoutAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	acc, err := h.gate.Register(r.Context(), chi.URLParam(r, "id"), req.ProviderAccountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, PayoutAccountResponse{
		SellerID:          acc.SellerID,
		ProviderAccountID: acc.ProviderAccountID,
		Onboarded:         acc.Onboarded,
		LastCheckedAt:     acc.LastCheckedAt,
	})
}

// PostBehavior обрабатывает POST /events/behavior - приём поведенческого события.
// Событие уходит в асинхронный writer, запрос не ждёт брокер.
func (h *Handler) PostBehavior(w http.ResponseWriter, r *http.Request) {
	var req BehaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	payload := events.UserBehavior{
		UserID:    req.UserID,
		Action:    req.Action,
		ProductID: req.ProductID,
		ShopID:    req.ShopID,
		SessionID: req.SessionID,
		Amount:    req.Amount,
	}
	if err := events.Validate(payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ev := events.New(payload)
	if err := h.behavior.Publish(r.Context(), ev); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, AcceptedResponse{EventID: ev.ID})
}

// PostStripeWebhook обрабатывает POST /webhooks/stripe.
// 2xx означает, что провайдеру не нужно повторять доставку.
func (h *Handler) PostStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := platformobservability.LoggerFromContext(ctx, h.logger)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ev, err := h.webhooks.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, provider.ErrUnhandledEvent):
		logger.Debug("webhook event ignored", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	case errors.Is(err, provider.ErrInvalidSignature):
		logger.Warn("webhook signature rejected")
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	case err != nil:
		logger.Warn("failed to parse webhook", zap.Error(err))
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}

	logger = logger.With(
		zap.String("webhook_id", ev.ID),
		zap.String("webhook_type", string(ev.Type)),
		zap.String("intent_id", ev.IntentID),
	)

	err = h.orchestrator.HandleWebhook(ctx, ev)
	var stateErr *service.InvalidStateError
	switch {
	case err == nil:
		logger.Info("webhook processed")
	case errors.Is(err, service.ErrIntentNotFound), errors.Is(err, provider.ErrUnhandledEvent):
		logger.Warn("webhook does not match a known intent", zap.Error(err))
	case errors.As(err, &stateErr):
		logger.Error("webhook conflicts with intent state", zap.Error(err))
	default:
		logger.Error("failed to process webhook", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeError переводит ошибки service слоя в HTTP статусы
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := platformobservability.LoggerFromContext(r.Context(), h.logger)

	var (
		notPayable   *service.SessionNotPayableError
		notOnboarded *service.SellerNotOnboardedError
		providerErr  *service.ProviderError
		stateErr     *service.InvalidStateError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidCart),
		errors.Is(err, service.ErrInvalidCoupon),
		errors.Is(err, service.ErrInvalidPayoutAccount):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.As(err, &notPayable), errors.As(err, &stateErr):
		status = http.StatusConflict
	case errors.As(err, &notOnboarded):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &providerErr):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err), zap.Int("status", status))
	} else {
		logger.Info("request rejected", zap.Error(err), zap.Int("status", status))
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	http.Error(w, msg, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		platformobservability.LoggerFromContext(r.Context(), h.logger).Error("failed to encode response", zap.Error(err))
	}
}
