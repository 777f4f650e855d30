package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pcbooking/internal/api"
	"pcbooking/internal/config"
	"pcbooking/internal/database"
	"pcbooking/internal/domain"
	"pcbooking/internal/events"
	"pcbooking/internal/logging"
	"pcbooking/internal/metrics"
	"pcbooking/internal/pin"
	"pcbooking/internal/repository"
	"pcbooking/internal/service"
	"pcbooking/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventBus := initEventBus(&logger)

	svc, err := initService(cfg, db, eventBus, initAttemptLimiter(redisClient, &logger), &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init reservation service")
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, svc, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)
	startBackground(ctx, cfg, db, eventBus, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initAttemptLimiter prefers redis so the PIN attempt budget is shared by
// every instance, falling back to process memory.
func initAttemptLimiter(redisClient *redis.Client, logger *zerolog.Logger) domain.AttemptLimiter {
	memory := repository.NewMemoryAttemptLimiter()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverAttemptLimiter(repository.NewRedisAttemptLimiter(redisClient), memory, logger)
}

func initEventBus(logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	audit := logging.Component(logger, "events")
	bus.SubscribeAll(func(e *events.Event) error {
		audit.Info().Str("event_type", e.Type).RawJSON("payload", e.Payload).Msg("event")
		return nil
	})
	bus.OnError(func(e *events.Event, err error) {
		audit.Error().Err(err).Str("event_type", e.Type).Msg("event handler failed")
	})
	return bus
}

func initService(
	cfg *config.Config,
	db *database.DB,
	eventBus *events.EventBus,
	limiter domain.AttemptLimiter,
	logger *zerolog.Logger,
) (*service.ReservationService, error) {
	hasher, err := pin.New(cfg.Pin.Algorithm, cfg.Pin.BcryptCost, cfg.Pin.HMACKey)
	if err != nil {
		return nil, err
	}

	trust, err := service.NewTrustPolicy(cfg.Trust)
	if err != nil {
		return nil, err
	}

	return service.NewReservationService(db, hasher, trust, eventBus, limiter, service.Options{
		Booking:           cfg.Booking,
		Pin:               cfg.Pin,
		RecordPINOnBypass: cfg.Trust.BypassRecordPIN,
	}, logging.Component(logger, "reservations"))
}

func startBackground(ctx context.Context, cfg *config.Config, db *database.DB, eventBus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Sweep.Enabled {
		sweeper := worker.NewSweeper(db, eventBus, service.SystemClock{}, cfg.Sweep, worker.RetryPolicy{}, logging.Component(logger, "sweeper"))
		go sweeper.Start(ctx)
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backup.Start(ctx)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if !cfg.API.HTTP.Enabled {
			logger.Warn().Msg("HTTP API disabled, only background jobs are running")
			return
		}
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
