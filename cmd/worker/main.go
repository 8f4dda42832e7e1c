// Package main provides the entrypoint for the wlocate Pub/Sub worker.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wlocate/wlocate/internal/api/middleware"
	"github.com/wlocate/wlocate/internal/database"
	"github.com/wlocate/wlocate/internal/provider/resilience"
	"github.com/wlocate/wlocate/internal/sighting"
	"github.com/wlocate/wlocate/internal/telemetry"
	"github.com/wlocate/wlocate/internal/wloc"
	"github.com/wlocate/wlocate/internal/wloc/apple"
	"github.com/wlocate/wlocate/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "wlocate-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting wlocate worker")

	// Worker also exposes health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID == "" || subscription == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID and PUBSUB_SUBSCRIPTION are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	registry := resilience.NewRegistry()
	clientConfig := apple.ConfigFromEnv()
	clientConfig.Registry = registry

	locator := wloc.NewService(wloc.ServiceConfig{
		Transport: apple.NewClient(clientConfig),
		Identity:  apple.IdentityFromEnv(),
		Metrics:   providerMetrics,
		Logger:    log,
	})

	var sightingRepo sighting.Repository
	switch store := os.Getenv("SIGHTINGS_STORE"); store {
	case "", "memory":
		sightingRepo = sighting.NewInMemoryRepository()
		log.Warn().Msg("using in-memory sighting store - sightings are lost on exit")
	case "postgres":
		pool, err := database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		repo := sighting.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create sightings schema")
		}
		sightingRepo = repo
	default:
		log.Fatal().Str("store", store).Msg("unknown SIGHTINGS_STORE, expected memory or postgres")
	}

	locateJob := worker.NewLocateJob(worker.LocateJobConfig{
		Config:  worker.ConfigFromEnv(),
		Logger:  log,
		Locator: locator,
		Sightings: sighting.NewService(sighting.ServiceConfig{
			Repository: sightingRepo,
			Logger:     log,
		}),
	})

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        projectID,
		SubscriptionName: subscription,
		Processor:        worker.NewProcessor(locateJob, log),
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer func() {
		if closeErr := handler.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close pubsub client")
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"jobs":    locateJob.MetricsSnapshot(),
		}
		if h := registry.GetHealth(apple.ProviderName); h != nil {
			body["provider"] = h.CircuitState.String()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client may have gone away
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go func() {
		if err := handler.Start(ctx); err != nil {
			log.Error().Err(err).Msg("pubsub receive stopped")
			cancel()
		}
	}()

	// Wait for interrupt signal or a fatal receive error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
