package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/nextbuy/platform/health/http"
	platformobservability "github.com/shestoi/nextbuy/platform/observability"
)

// NewRouter создаёт HTTP роутер Checkout Service.
// readiness - проверка готовности зависимостей (Redis, PostgreSQL) для /health.
func NewRouter(handler *Handler, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("checkout", logger))
	}

	router.Route("/checkout/sessions", func(r chi.Router) {
		r.Post("/", handler.PostSessions)
		r.Get("/{id}", handler.GetSession)
		r.Post("/{id}/intents", handler.PostIntents)
	})

	router.Put("/sellers/{id}/payout-account", handler.PutPayoutAccount)
	router.Post("/events/behavior", handler.PostBehavior)
	router.Post("/webhooks/stripe", handler.PostStripeWebhook)

	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
