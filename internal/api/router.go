// Package api provides the HTTP API for BSSID lookups.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wlocate/wlocate/internal/api/handler"
	"github.com/wlocate/wlocate/internal/api/middleware"
	"github.com/wlocate/wlocate/internal/api/response"
	"github.com/wlocate/wlocate/internal/provider/resilience"
	"github.com/wlocate/wlocate/internal/sighting"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Registry reports provider health on the status endpoint (optional).
	Registry *resilience.Registry

	// ReadinessChecks are probed by the ready and status endpoints.
	ReadinessChecks []handler.ReadinessCheck

	// Locator resolves BSSIDs. Required.
	Locator handler.Locator

	// Sightings records lookups and serves their history (optional).
	Sightings *sighting.Service

	// TokenValidator authenticates API clients. Nil disables authentication.
	TokenValidator middleware.TokenValidator

	// RequireTLS rejects plain-HTTP requests.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "wlocate-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.ReadinessChecks...)

	var recorder handler.SightingRecorder
	if cfg.Sightings != nil {
		recorder = cfg.Sightings
	}
	locationHandler := handler.NewLocationHandler(cfg.Locator, recorder, cfg.Logger)

	authMiddleware := func(next http.Handler) http.Handler { return next }
	if cfg.TokenValidator != nil {
		authMiddleware = middleware.Auth(cfg.TokenValidator)
	}

	lookupRateLimit := middleware.RateLimitByClient(middleware.LookupRateLimit)     // 60 req/min
	batchRateLimit := middleware.RateLimitByClient(middleware.BatchRateLimit)       // 20 req/min
	standardRateLimit := middleware.RateLimitByClient(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.With(lookupRateLimit).Get("/locations/{bssid}", locationHandler.GetLocation)
			r.With(batchRateLimit, middleware.RequireJSON).Post("/locations:lookup", locationHandler.Lookup)

			if cfg.Sightings != nil {
				sightingHandler := handler.NewSightingHandler(cfg.Sightings, cfg.Logger)
				r.With(standardRateLimit).Get("/sightings/{bssid}", sightingHandler.ListSightings)
			}
		})
	})

	return r
}
