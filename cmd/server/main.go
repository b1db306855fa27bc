package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"nemt-trip-service/internal/adapters/cache"
	"nemt-trip-service/internal/adapters/directions"
	"nemt-trip-service/internal/adapters/locks"
	"nemt-trip-service/internal/adapters/repositories"
	"nemt-trip-service/internal/api"
	"nemt-trip-service/internal/config"
	"nemt-trip-service/internal/platform/db"
	"nemt-trip-service/internal/platform/obs"
	"nemt-trip-service/internal/ports"
	"nemt-trip-service/internal/services"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, ORS) behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := obs.NewLogger(os.Stdout, obs.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		obs.LogError(logger, "server stopped", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := repositories.InitSchema(database); err != nil {
		return err
	}

	locker, closeLocker, err := newLocker(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	provider, err := newDirections(cfg, database, logger)
	if err != nil {
		return err
	}

	raw, err := config.LoadScoringWeights(cfg.ScoringWeightsPath)
	if err != nil {
		return err
	}
	weights, err := services.ScoringWeightsFromMap(raw)
	if err != nil {
		return err
	}

	trips := repositories.NewPostgresTripRepository(database)
	executions := repositories.NewPostgresExecutionRepository(database)

	lifecycle := services.NewTripLifecycle(trips, executions, locker, provider)
	tracker := services.NewExecutionTracker(trips, executions, locker, provider, cfg.OnTimeGrace)
	evaluator := services.NewConstraintEvaluator(weights)

	router := api.NewRouter(logger, lifecycle, tracker, evaluator, executions)

	// Timeouts leave room for cold-cache directions lookups.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// newLocker uses a Redis lease when REDIS_URL is set so several replicas can
// share trip locks; a single process falls back to in-memory locks.
func newLocker(cfg config.Config, logger *slog.Logger) (ports.TripLocker, func(), error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, trip locks are per-process")
		return locks.NewMemoryLocker(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}

	return locks.NewRedisLocker(client, cfg.LockTTL), func() { client.Close() }, nil
}

// newDirections returns the ORS provider backed by the Postgres cache, or a
// straight-line mock when no API key is configured.
func newDirections(cfg config.Config, database *sql.DB, logger *slog.Logger) (ports.DirectionsProvider, error) {
	if cfg.ORSAPIKey == "" {
		logger.Warn("ORS_API_KEY not set, using mock directions")
		return directions.NewMockDirectionsProvider(1000, 120), nil
	}
	return directions.NewORSDirectionsProvider(cfg.ORSAPIKey, cache.NewSQLDirectionsCache(database))
}
