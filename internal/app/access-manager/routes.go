// Package accessmanager предоставляет маршруты основного сервиса.
package accessmanager

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/group-access/internal/http-server/handlers/health"
	"github.com/magabrotheeeer/group-access/internal/http-server/handlers/paymentcreate"
	"github.com/magabrotheeeer/group-access/internal/http-server/handlers/paymentread"
	"github.com/magabrotheeeer/group-access/internal/http-server/handlers/subscriptionread"
	"github.com/magabrotheeeer/group-access/internal/http-server/mware"
	reconcilerservice "github.com/magabrotheeeer/group-access/internal/services/reconciler"
	subscriptionservice "github.com/magabrotheeeer/group-access/internal/services/subscription"
)

// RegisterRoutes регистрирует все маршруты сервиса.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	reconcilerService *reconcilerservice.Service,
	subscriptionService *subscriptionservice.Service) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mware.RateLimitMiddleware(logger))
		r.Post("/payments", paymentcreate.New(logger, reconcilerService))
		r.Get("/payments/{payment_id}", paymentread.New(logger, reconcilerService))
		r.Get("/subscriptions/{user_id}", subscriptionread.New(logger, subscriptionService))
	})

	r.Get("/health", health.New(logger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
