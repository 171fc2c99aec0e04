package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/nextbuy/platform/health/http"
	platformkafka "github.com/shestoi/nextbuy/platform/kafka"
	platformlogging "github.com/shestoi/nextbuy/platform/logging"
	platformobservability "github.com/shestoi/nextbuy/platform/observability"
	platformpostgres "github.com/shestoi/nextbuy/platform/postgres"
	platformshutdown "github.com/shestoi/nextbuy/platform/shutdown"
	httpapi "github.com/shestoi/nextbuy/services/checkout/internal/api/http"
	"github.com/shestoi/nextbuy/services/checkout/internal/config"
	"github.com/shestoi/nextbuy/services/checkout/internal/coupon"
	eventkafka "github.com/shestoi/nextbuy/services/checkout/internal/event/kafka"
	"github.com/shestoi/nextbuy/services/checkout/internal/provider"
	"github.com/shestoi/nextbuy/services/checkout/internal/provider/fake"
	"github.com/shestoi/nextbuy/services/checkout/internal/provider/stripe"
	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
	"github.com/shestoi/nextbuy/services/checkout/internal/repository/memory"
	pgrepo "github.com/shestoi/nextbuy/services/checkout/internal/repository/postgres"
	redisrepo "github.com/shestoi/nextbuy/services/checkout/internal/repository/redis"
	"github.com/shestoi/nextbuy/services/checkout/internal/service"
	"github.com/shestoi/nextbuy/services/checkout/internal/worker"
	"github.com/shestoi/nextbuy/services/checkout/migrations"
	notificationmigrations "github.com/shestoi/nextbuy/services/notification/migrations"
	"github.com/shestoi/nextbuy/services/notification/record"
)

// paymentProvider провайдер вместе с разбором его webhook-ов
type paymentProvider interface {
	provider.PaymentProvider
	provider.WebhookParser
}

// App содержит все зависимости для запуска и корректного shutdown Checkout Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	sweeper     *worker.ExpirySweeper
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Checkout Service
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"
	ctx := context.Background()

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "checkout",
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Checkout service",
		zap.String("session_store", cfg.SessionStore),
		zap.String("intent_store", cfg.IntentStore),
		zap.String("payment_provider", cfg.PaymentProvider),
		zap.Bool("broker_enabled", cfg.Kafka.Enabled),
	)

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)

	otelShutdown, err := platformobservability.Init(ctx, cfg.Observability)
	if err != nil {
		return nil, err
	}
	shutdownMgr.Add("otel", otelShutdown)

	fail := func(err error) (*App, error) {
		shutdownMgr.Shutdown()
		return nil, err
	}

	var checks []func() bool

	// Сессии
	var sessionRepo repository.SessionRepository
	switch cfg.SessionStore {
	case config.StoreRedis:
		logger.Info("Connecting to Redis", zap.String("addr", cfg.RedisAddr))
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		shutdownMgr.Add("redis_client", platformshutdown.Close(redisClient))

		ctxRedis, cancelRedis := context.WithTimeout(ctx, 5*time.Second)
		defer cancelRedis()
		if err := redisClient.Ping(ctxRedis).Err(); err != nil {
			return fail(fmt.Errorf("ping redis: %w", err))
		}
		logger.Info("Redis connection established")

		sessionRepo = redisrepo.NewSessionRepository(redisClient, cfg.SessionRetention, logger)
		checks = append(checks, redisReadiness(redisClient))
	default:
		logger.Warn("Using in-memory session store")
		sessionRepo = memory.NewSessionRepository()
	}

	// Интенты и аккаунты продавцов
	var (
		intentRepo  repository.IntentRepository
		accountRepo repository.PayoutAccountRepository
	)
	switch cfg.IntentStore {
	case config.StorePostgres:
		logger.Info("Applying checkout migrations")
		if err := platformpostgres.Migrate(ctx, cfg.PostgresDSN, migrations.FS); err != nil {
			return fail(err)
		}

		logger.Info("Connecting to PostgreSQL")
		pool, err := platformpostgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return fail(err)
		}
		shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))
		logger.Info("PostgreSQL connection established")

		intentRepo = pgrepo.NewIntentRepository(pool)
		accountRepo = pgrepo.NewPayoutAccountRepository(pool)
		checks = append(checks, platformpostgres.Readiness(pool))
	default:
		logger.Warn("Using in-memory intent and payout account store")
		intentRepo = memory.NewIntentRepository()
		accountRepo = memory.NewPayoutAccountRepository()
	}

	// Платёжный провайдер
	var p paymentProvider
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		p = stripe.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret, logger)
	default:
		logger.Warn("Using fake payment provider, webhooks are not signed")
		p = fake.New()
	}

	// Шина событий
	var (
		publisher service.EventPublisher
		notifier  service.Notifier
	)
	if cfg.Kafka.Enabled {
		writer := platformkafka.NewWriter(cfg.Kafka.Brokers, "")
		behaviorWriter := platformkafka.NewWriter(cfg.Kafka.Brokers, "", platformkafka.WithAsync(logger))
		kafkaPublisher := eventkafka.NewPublisher(logger, writer, behaviorWriter, eventkafka.Topics{
			Payments:      cfg.PaymentsTopic,
			Refunds:       cfg.RefundsTopic,
			Payouts:       cfg.PayoutsTopic,
			Behavior:      cfg.BehaviorTopic,
			Notifications: cfg.NotificationsTopic,
		})
		shutdownMgr.Add("kafka_publisher", platformshutdown.Close(kafkaPublisher))

		publisher = kafkaPublisher
		notifier = kafkaPublisher
		logger.Info("Kafka publisher configured", zap.Strings("kafka_brokers", cfg.Kafka.Brokers))
	} else {
		logger.Warn("Broker disabled, events are logged and notifications are written directly")
		publisher = eventkafka.NewLoggingPublisher(logger)

		store, err := buildNotificationStore(ctx, cfg, logger, shutdownMgr)
		if err != nil {
			return fail(err)
		}
		notifier = record.NewDirectNotifier(store, logger)
	}

	coupons, err := coupon.Parse(cfg.Coupons)
	if err != nil {
		return fail(fmt.Errorf("parse coupons: %w", err))
	}

	sessions := service.NewSessionStore(sessionRepo, coupons, cfg.SessionTTL, cfg.Currency, logger)
	gate := service.NewPayoutAccountGate(accountRepo, p, logger)
	orchestrator := service.NewOrchestrator(
		sessions,
		intentRepo,
		accountRepo,
		gate,
		p,
		publisher,
		notifier,
		cfg.PlatformFeeRatio,
		logger,
	)

	handler := httpapi.NewHandler(sessions, orchestrator, gate, p, publisher, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, platformhealth.All(checks...), logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:      logger,
		httpServer:  httpServer,
		sweeper:     worker.NewExpirySweeper(logger, sessions, cfg.SweepInterval),
		shutdownMgr: shutdownMgr,
	}, nil
}

// buildNotificationStore хранилище для прямой записи уведомлений при выключенном брокере.
// Использует те же миграции и таблицу, что и Notification Service.
func buildNotificationStore(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
	shutdownMgr *platformshutdown.Manager,
) (record.Store, error) {
	if cfg.NotificationPostgresDSN == "" {
		logger.Warn("NOTIFICATION_POSTGRES_DSN is not set, notifications are kept in memory")
		return record.NewMemoryStore(), nil
	}

	if err := platformpostgres.Migrate(ctx, cfg.NotificationPostgresDSN, notificationmigrations.FS); err != nil {
		return nil, fmt.Errorf("migrate notification store: %w", err)
	}

	pool, err := platformpostgres.Connect(ctx, cfg.NotificationPostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect notification store: %w", err)
	}
	shutdownMgr.Add("notification_postgres_pool", platformshutdown.ClosePool(pool))
	logger.Info("Notification store connected")

	return record.NewPostgresStore(pool), nil
}

func redisReadiness(client *redis.Client) func() bool {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err() == nil
	}
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	return a.RunContext(context.Background())
}

// RunContext как Run, но также останавливается при отмене ctx
func (a *App) RunContext(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Checkout service")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP server listening", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		if err := a.sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("expiry sweeper error", zap.Error(err))
		}
	}()

	// Выполняется первым: sweeper не должен писать в закрытые хранилища
	a.shutdownMgr.Add("expiry_sweeper", func(hookCtx context.Context) error {
		cancel()
		select {
		case <-sweeperDone:
			return nil
		case <-hookCtx.Done():
			return hookCtx.Err()
		}
	})

	a.shutdownMgr.WaitContext(ctx)
	cancel()
	a.wg.Wait()

	a.logger.Info("Checkout service stopped")
	return nil
}
