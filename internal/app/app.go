package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/api"
	"github.com/ayo6706/tutor-settlement/internal/api/middleware"
	"github.com/ayo6706/tutor-settlement/internal/cache"
	"github.com/ayo6706/tutor-settlement/internal/config"
	"github.com/ayo6706/tutor-settlement/internal/db"
	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/idempotency"
	"github.com/ayo6706/tutor-settlement/internal/notify"
	"github.com/ayo6706/tutor-settlement/internal/observability"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/ayo6706/tutor-settlement/internal/repository/memstore"
	"github.com/ayo6706/tutor-settlement/internal/service"
	"github.com/ayo6706/tutor-settlement/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// settlementStore is what the services and health checks need from either backend.
type settlementStore interface {
	service.QueryStore
	Ping(ctx context.Context) error
}

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("settlement store ready", zap.String("driver", cfg.StoreDriver))

	var (
		redisClient   redis.Cmdable
		snapshotCache service.SnapshotCache
		reminderGate  cache.ReminderGate = cache.NewMemoryReminderGate(cfg.ReminderCooldown)
	)
	if cfg.RedisURL != "" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		redisClient = client
		snapshotCache = cache.NewSnapshotCache(client, cfg.CurrencyCacheTTL)
		reminderGate = cache.NewRedisReminderGate(client, cfg.ReminderCooldown)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewKafkaProducer(cfg.KafkaBrokers, 5)
		if err != nil {
			return err
		}
		kafkaNotifier := notify.NewKafkaNotifier(producer, cfg.NotifyTopic, logger)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		logger.Info("kafka notifications enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.NotifyTopic))
	}

	idemStore := idempotency.NewStore(redisClient, store.Queries(), cfg.StoreDriver, cfg.IdempotencyTTL)

	currencies := service.NewCurrencyService(store, snapshotCache, service.CurrencyOptions{
		ReferenceCurrency: cfg.ReferenceCurrency,
		DefaultFeePercent: cfg.DefaultFeePercent,
		TTL:               cfg.CurrencyCacheTTL,
	})
	settlement := service.NewSettlementService(store, currencies, notifier, reminderGate, domain.Tolerance{
		Soft: cfg.RateSoftTolerance,
		Hard: cfg.RateHardTolerance,
	})
	webhookSvc := service.NewWebhookService(settlement, cfg.WebhookHMACKey, cfg.WebhookSkipSignature)
	reconcileSvc := service.NewReconciliationService(store)

	reminderWorker := worker.NewReminderWorker(settlement).
		WithInterval(cfg.ReminderInterval).
		WithBatchSize(cfg.ReminderBatchSize)
	stopReminders := reminderWorker.Run(ctx)

	reconciliationWorker := worker.NewReconciliationWorker(reconcileSvc).WithInterval(cfg.ReconciliationInterval)
	stopReconciliation := reconciliationWorker.Run(ctx)

	router := api.NewRouter(cfg, logger, store, redisClient, idemStore, settlement, currencies, webhookSvc, reconcileSvc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping background workers")
	stopReminders()
	stopReconciliation()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// openStore returns the configured backend and its close function. The
// postgres schema is applied on every start.
func openStore(ctx context.Context, cfg *config.Config) (settlementStore, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return memstore.New(), func() {}, nil
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return repository.NewStore(pool), pool.Close, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
