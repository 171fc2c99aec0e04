package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/nextbuy/platform/health/http"
	platformobservability "github.com/shestoi/nextbuy/platform/observability"
)

// NewRouter создаёт HTTP роутер Notification Service: чтение уведомлений и health
func NewRouter(handler *Handler, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("notification", logger))
	}

	router.Get("/notifications", handler.GetNotifications)
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
