package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/surveypulse/surveypulse/internal/adapter/postgres"
	"github.com/surveypulse/surveypulse/internal/admission"
	"github.com/surveypulse/surveypulse/internal/classify"
	"github.com/surveypulse/surveypulse/internal/correlate"
	"github.com/surveypulse/surveypulse/internal/domain"
	"github.com/surveypulse/surveypulse/internal/pipeline"
	"github.com/surveypulse/surveypulse/internal/platform/config"
	"github.com/surveypulse/surveypulse/internal/platform/logging"
	"github.com/surveypulse/surveypulse/internal/server"
	redisstore "github.com/surveypulse/surveypulse/internal/store/redis"
	"github.com/surveypulse/surveypulse/internal/ticket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redisstore.Client {
	client, err := redisstore.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}

	return client
}

func setupTicketCreator(cfg *config.Config, logger *slog.Logger) domain.TicketCreator {
	if cfg.TicketEndpoint == "" {
		slog.Info("No ticket endpoint configured, alerts will be raised without tickets")
		return ticket.NoopCreator{}
	}
	return ticket.NewClient(ticket.NewHTTPCreator(cfg.TicketEndpoint, cfg.TicketAPIKey), logger)
}

func runGracefulShutdown(srv *server.Server, processor *pipeline.Processor) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Drain queued submissions so accepted work is never lost.
		processor.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	counters := redisstore.NewCounterStore(redisClient)
	alerts := redisstore.NewAlertStore(redisClient, clock)

	configSource := pipeline.NewCachedConfigSource(
		postgres.NewConfigSource(pool), cfg.ConfigCacheTTL, clock)

	admissionCtrl := admission.NewController(configSource, counters, logger)
	classifier := classify.NewEngine(classify.NewLexiconAnalyzer(), configSource, logger)
	correlator := correlate.NewEngine(alerts, setupTicketCreator(cfg, logger), clock, logger)

	processor := pipeline.NewProcessor(admissionCtrl, classifier, correlator, configSource, cfg.PipelineWorkers, logger)
	processor.Start()

	srv := server.NewServer(cfg, processor, alerts, redisClient, pool, logger)

	done := runGracefulShutdown(srv, processor)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
