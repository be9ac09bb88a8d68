package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// NewRouter mounts the HTTP API. limiter may be nil to disable rate limiting.
func NewRouter(h *HTTPHandler, limiter *RateLimiter, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}

		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.ListRecentOrders)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Put("/orders/{orderID}", h.UpdateOrderStatus)
		r.Delete("/orders/{orderID}", h.CancelOrder)
		r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)
		r.Get("/customers/{customerID}/orders", h.ListOrders)

		r.Post("/products/{productID}/restock", h.Restock)

		r.Get("/reports/most-sold", h.MostSold)
		r.Get("/reports/top-store-locations", h.TopStoreLocations)
	})

	return r
}
