// Package main provides the entrypoint for the wlocate API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wlocate/wlocate/internal/api"
	"github.com/wlocate/wlocate/internal/api/handler"
	"github.com/wlocate/wlocate/internal/api/middleware"
	"github.com/wlocate/wlocate/internal/auth"
	"github.com/wlocate/wlocate/internal/database"
	"github.com/wlocate/wlocate/internal/provider/resilience"
	"github.com/wlocate/wlocate/internal/sighting"
	"github.com/wlocate/wlocate/internal/telemetry"
	"github.com/wlocate/wlocate/internal/wloc"
	"github.com/wlocate/wlocate/internal/wloc/apple"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "wlocate-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting wlocate API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryConfig := telemetry.ConfigFromEnv(serviceName, Version)

	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryConfig.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	// Lookup provider
	registry := resilience.NewRegistry()
	clientConfig := apple.ConfigFromEnv()
	clientConfig.Registry = registry
	appleClient := apple.NewClient(clientConfig)

	locator := wloc.NewService(wloc.ServiceConfig{
		Transport: appleClient,
		Identity:  apple.IdentityFromEnv(),
		Metrics:   providerMetrics,
		Logger:    log,
	})
	log.Info().
		Str("endpoint", clientConfig.Endpoint).
		Uint64("max_retries", clientConfig.MaxRetries).
		Msg("lookup provider initialized")

	// Sighting store
	var (
		sightingRepo sighting.Repository
		checks       []handler.ReadinessCheck
	)
	switch store := os.Getenv("SIGHTINGS_STORE"); store {
	case "", "memory":
		sightingRepo = sighting.NewInMemoryRepository()
		log.Info().Msg("using in-memory sighting store")
	case "postgres":
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		repo := sighting.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create sightings schema")
		}
		sightingRepo = repo
		checks = append(checks, handler.ReadinessCheck{Name: "database", Check: database.Ping(pool)})
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	default:
		log.Fatal().Str("store", store).Msg("unknown SIGHTINGS_STORE, expected memory or postgres")
	}

	sightingService := sighting.NewService(sighting.ServiceConfig{
		Repository: sightingRepo,
		Logger:     log,
	})

	// Authentication is optional; without a signing key the API is open.
	var tokenValidator middleware.TokenValidator
	jwtConfig := auth.ConfigFromEnv()
	if jwtConfig.Enabled() {
		tokenValidator = auth.NewJWTService(jwtConfig)
		log.Info().Str("issuer", jwtConfig.Issuer).Msg("bearer authentication enabled")
	} else {
		log.Warn().Msg("JWT_SIGNING_KEY not set - API is unauthenticated")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		Registry:        registry,
		ReadinessChecks: checks,
		Locator:         locator,
		Sightings:       sightingService,
		TokenValidator:  tokenValidator,
		RequireTLS:      os.Getenv("REQUIRE_TLS") == "true",
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
