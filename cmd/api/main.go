package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"djbooking/internal/api"
	"djbooking/internal/config"
	"djbooking/internal/database"
	"djbooking/internal/domain"
	"djbooking/internal/events"
	"djbooking/internal/logging"
	"djbooking/internal/metrics"
	"djbooking/internal/repository"
	"djbooking/internal/schedule"
	"djbooking/internal/service"
	"djbooking/internal/worker"

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
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := base.With().Str("component", "api-main").Logger()

	db, err := database.NewDB(cfg.Database.Path, &base)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	loc := cfg.Location()
	generator := schedule.NewGenerator(&base)

	eventBus := events.NewEventBus()
	subscribeEventLog(eventBus, &base)

	venueService := service.NewVenueService(db, generator, eventBus, logging.Component(&base, "venues"))
	bookingService := service.NewBookingService(db, generator, eventBus, cfg.Booking.MaxOccurrencesDays, loc, logging.Component(&base, "bookings"))
	presenceService := service.NewPresenceService(initPresence(redisClient, &base), cfg.Presence.TTL, logging.Component(&base, "presence"))

	if err := seedVenues(ctx, cfg.VenuesFile, venueService, &logger); err != nil {
		return err
	}

	if cfg.Reminder.Enabled {
		reminders := worker.NewReminderWorker(db, eventBus, redisClient, worker.ReminderOptions{
			Interval: cfg.Reminder.Interval,
			Lead:     cfg.Reminder.Lead,
			Location: loc,
			Retry:    worker.RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2},
		}, &base)
		go reminders.Start(ctx)
	}

	backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &base)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, &logger)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config; running workers only")
		<-ctx.Done()
		return nil
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Venues:    venueService,
		Bookings:  bookingService,
		Presence:  presenceService,
		Generator: generator,
		Location:  loc,
		ExportDir: cfg.Exports.Path,
	}, &base)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, db, &base)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
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
	return cfg, *baseLogger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initPresence prefers Redis and falls back to process memory when Redis is absent or failing.
func initPresence(client *redis.Client, logger *zerolog.Logger) domain.PresenceRepository {
	memory := repository.NewMemoryPresenceRepository()
	if client == nil {
		return memory
	}
	return repository.NewFailoverPresenceRepository(
		repository.NewRedisPresenceRepository(client),
		memory,
		logging.Component(logger, "presence-failover"),
	)
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	eventLogger := logging.Component(logger, "events")
	handler := func(e *events.Event) error {
		eventLogger.Info().Str("type", e.Type).RawJSON("payload", e.Payload).Msg("event")
		return nil
	}
	for _, et := range []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
		events.EventBookingPending,
		events.EventBookingUpcoming,
		events.EventVenueUpdated,
	} {
		bus.Subscribe(et, handler)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(ctx); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	logger.Info().
		Bool("grpc", grpcServer != nil).
		Int("http_port", cfg.API.HTTP.Port).
		Str("timezone", cfg.App.Timezone).
		Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

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
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
