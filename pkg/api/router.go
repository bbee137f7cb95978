// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/skylane/skylane/config"
	"github.com/skylane/skylane/pkg/api/handlers"
	"github.com/skylane/skylane/pkg/api/middleware"
	"github.com/skylane/skylane/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Delivery handles the delivery workflow endpoints
	Delivery *handlers.DeliveryHandler

	// Runs handles saga run inspection endpoints
	Runs *handlers.RunsHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Events handles the websocket event stream
	Events *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(middleware.RateLimitOptions{
			RPS:   cfg.Server.RateLimit.RPS,
			Burst: cfg.Server.RateLimit.Burst,
		}))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Delivery workflow routes
		if handlers.Delivery != nil {
			r.Route("/deliveries", func(r chi.Router) {
				r.Post("/", handlers.Delivery.Schedule)
				r.Get("/{id}", handlers.Delivery.Get)
				r.Post("/{id}/pickup", handlers.Delivery.Pickup)
				r.Post("/{id}/complete", handlers.Delivery.Complete)
			})
		}

		// Saga run inspection routes
		if handlers.Runs != nil {
			r.Route("/sagas", func(r chi.Router) {
				r.Get("/", handlers.Runs.List)
				r.Get("/{id}", handlers.Runs.Get)
				r.Get("/{id}/history", handlers.Runs.History)
				r.Delete("/{id}", handlers.Runs.Delete)
			})
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}

	// Websocket event stream
	if handlers.Events != nil {
		r.Get("/ws/events", handlers.Events.ServeHTTP)
	}
}
