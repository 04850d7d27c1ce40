package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stayhaven/reservations/internal/idempotency"
	"github.com/stayhaven/reservations/internal/observability"
	"github.com/stayhaven/reservations/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)

	// The gateway callback carries its own proof of authenticity; everything
	// else needs a principal from the auth collaborator.
	r.Group(func(r chi.Router) {
		r.Post("/v1/payments/verify", h.VerifyPayment)
	})

	r.Group(func(r chi.Router) {
		r.Use(PrincipalMiddleware)
		r.Use(RateLimitMiddleware(rl))

		r.Post("/v1/listings/{id}/quote", h.QuoteStay)
		r.With(IdempotencyMiddleware(idemp)).Post("/v1/orders", h.CreateOrder)
		r.Get("/v1/bookings", h.MyBookings)
		r.Delete("/v1/bookings/{id}", h.CancelBooking)
		r.Get("/v1/listings/{id}/bookings", h.ListingBookings)
		r.Delete("/v1/listings/{id}", h.DeleteListing)
	})

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
