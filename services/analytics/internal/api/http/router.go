package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/nextbuy/platform/health/http"
	platformobservability "github.com/shestoi/nextbuy/platform/observability"
)

// NewRouter создаёт HTTP роутер Analytics Service
func NewRouter(handler *Handler, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("analytics", logger))
	}

	router.Get("/stats", handler.GetStats)
	router.Get("/batcher", handler.GetBatcher)
	router.Get("/health", platformhealth.Handler(readiness))

	return router
}
