package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/ponto/internal/audit"
	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/database"
	"github.com/saturnino-fabrica-de-software/ponto/internal/face"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
	"github.com/saturnino-fabrica-de-software/ponto/internal/guard"
	"github.com/saturnino-fabrica-de-software/ponto/internal/queue"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
	"github.com/saturnino-fabrica-de-software/ponto/internal/storage"
	"github.com/saturnino-fabrica-de-software/ponto/internal/webhook"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Ponto API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("extractor", cfg.ExtractorType),
		slog.String("model_version", cfg.ModelVersion),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.MigrateUp(ctx, cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	employees := repository.NewEmployeeRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	locations := repository.NewLocationRepository(pool)
	attendance := repository.NewAttendanceRepository(pool)
	terminals := repository.NewTerminalRepository(pool)

	// Embedding model is loaded on first use
	extractor, err := face.NewExtractorFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}
	defer func() { _ = extractor.Close() }()

	gate, err := face.NewQualityGateFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create quality gate: %w", err)
	}

	redisClient, err := newRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	terminalGuard, rateStore := sharedState(redisClient, guard.LeaseTTL(cfg.ExtractionTimeout, cfg.PositionTimeout), logger)

	publisher, closePublisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	images, err := newImageStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	hub := ws.NewHub()
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)

	auditLogger := audit.NewSlogLogger(logger)
	validator := geo.NewValidator(cfg.PositionTimeout, logger)

	checkIns := service.NewCheckInService(service.CheckInDeps{
		Employees:   employees,
		Enrollments: enrollmentRepo,
		Locations:   locations,
		Attendance:  attendance,
		Gate:        gate,
		Extractor:   extractor,
		Geofence:    validator,
		Guard:       terminalGuard,
		Publisher:   publisher,
		Broadcaster: hub,
		Audit:       auditLogger,
		Logger:      logger,
	}, service.Policy{
		LoginThreshold:        cfg.LoginThreshold,
		DefaultBreak:          cfg.DefaultBreak,
		RecheckCooldown:       cfg.RecheckCooldown,
		ExtractionTimeout:     cfg.ExtractionTimeout,
		MaxExtractionFailures: cfg.MaxExtractionFailures,
	})

	enrollments := service.NewEnrollmentService(employees, enrollmentRepo, gate, extractor, cfg.ExtractionTimeout, logger,
		service.WithImageStore(images),
		service.WithEnrollmentAudit(auditLogger),
		service.WithEnrollmentBroadcaster(hub),
	)

	identifier := service.NewIdentifyService(enrollmentRepo, gate, extractor, cfg.AdminThreshold, cfg.ExtractionTimeout, auditLogger, logger)

	lastSeen := middleware.NewLastSeenWorker(terminals, logger, middleware.DefaultLastSeenWorkerConfig())
	lastSeen.Start()
	defer lastSeen.Stop()

	// Setup router
	router := api.NewRouter(logger, pool, &api.Dependencies{
		CheckIns:    checkIns,
		Enrollments: enrollments,
		Identifier:  identifier,
		Locations:   locations,
		Geofence:    validator,
		Terminals:   terminals,
		LastSeen:    lastSeen,
		Hub:         hub,
		AdminAPIKey: cfg.AdminAPIKey,
		RateLimits:  rateStore,
		ReadyChecks: readyChecks(redisClient, images, publisher),
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	done := make(chan error, 1)
	go func() { done <- router.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")
	return nil
}

// newRedis returns nil when REDIS_URL is unset.
func newRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// sharedState picks the terminal guard and rate limit counters. With Redis
// both hold across replicas; without it they are per process.
func sharedState(client *redis.Client, leaseTTL time.Duration, logger *slog.Logger) (guard.TerminalGuard, middleware.CounterStore) {
	if client == nil {
		return guard.NewLocal(), nil
	}
	logger.Info("terminal guard and rate limits backed by redis", slog.Duration("lease_ttl", leaseTTL))
	return guard.NewRedis(client, leaseTTL, logger), middleware.NewRedisCounterStore(client)
}

// readyChecks lists the optional backends /ready probes next to Postgres.
func readyChecks(client *redis.Client, images storage.ImageStore, publisher queue.Publisher) []handler.ReadyCheck {
	var checks []handler.ReadyCheck
	if client != nil {
		checks = append(checks, handler.ReadyCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	}
	if store, ok := images.(*storage.MinIOStore); ok {
		checks = append(checks, handler.ReadyCheck{Name: "minio", Ping: store.Ping})
	}

	publishers, ok := publisher.(queue.Fanout)
	if !ok {
		publishers = queue.Fanout{publisher}
	}
	for _, p := range publishers {
		if producer, ok := p.(*queue.Producer); ok {
			checks = append(checks, handler.ReadyCheck{
				Name: "nats",
				Ping: func(context.Context) error { return producer.Ping() },
			})
		}
	}
	return checks
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Publisher, func(), error) {
	var (
		publishers queue.Fanout
		closers    []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.NATSURL != "" {
		producer, err := queue.NewProducer(cfg.NATSURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		if err := producer.EnsureStream(ctx, logger); err != nil {
			producer.Close()
			return nil, nil, fmt.Errorf("failed to ensure attendance stream: %w", err)
		}
		logger.Info("attendance events published to nats")
		publishers = append(publishers, producer)
		closers = append(closers, producer.Close)
	}

	if cfg.Webhook.URL != "" {
		dispatcher := webhook.NewDispatcher(webhook.Config{
			URL:         cfg.Webhook.URL,
			Secret:      cfg.Webhook.Secret,
			MaxAttempts: cfg.Webhook.MaxAttempts,
		}, logger)
		go dispatcher.Run(ctx)
		logger.Info("attendance events delivered to webhook")
		publishers = append(publishers, dispatcher)
		closers = append(closers, dispatcher.Stop)
	}

	switch len(publishers) {
	case 0:
		return queue.NoOpPublisher{}, func() {}, nil
	case 1:
		return publishers[0], closeAll, nil
	}
	return publishers, closeAll, nil
}

func newImageStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ImageStore, error) {
	store, err := storage.Open(ctx, cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("failed to open image store: %w", err)
	}
	if cfg.MinIO.Enabled() {
		logger.Info("reference images stored in minio", slog.String("bucket", cfg.MinIO.Bucket))
	}
	return store, nil
}
