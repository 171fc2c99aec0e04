package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	platformkafka "github.com/shestoi/nextbuy/platform/kafka"
	platformlogging "github.com/shestoi/nextbuy/platform/logging"
	platformobservability "github.com/shestoi/nextbuy/platform/observability"
	platformpostgres "github.com/shestoi/nextbuy/platform/postgres"
	platformshutdown "github.com/shestoi/nextbuy/platform/shutdown"
	httpapi "github.com/shestoi/nextbuy/services/notification/internal/api/http"
	"github.com/shestoi/nextbuy/services/notification/internal/config"
	eventkafka "github.com/shestoi/nextbuy/services/notification/internal/event/kafka"
	"github.com/shestoi/nextbuy/services/notification/internal/service"
	"github.com/shestoi/nextbuy/services/notification/migrations"
	"github.com/shestoi/nextbuy/services/notification/record"
)

// App содержит все зависимости для запуска и корректного shutdown Notification Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	consumer    *eventkafka.NotificationConsumer
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Notification Service.
// При BROKER_ENABLED=false подписка на топик не создаётся: уведомления
// пишет checkout напрямую в то же хранилище.
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"
	ctx := context.Background()

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "notification",
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Notification service",
		zap.Bool("broker_enabled", cfg.Kafka.Enabled),
		zap.String("store", cfg.Store),
	)

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)

	otelShutdown, err := platformobservability.Init(ctx, cfg.Observability)
	if err != nil {
		return nil, err
	}
	shutdownMgr.Add("otel", otelShutdown)

	var (
		store     record.Store
		readiness func() bool
	)
	switch cfg.Store {
	case config.StorePostgres:
		logger.Info("Applying notification migrations")
		if err := platformpostgres.Migrate(ctx, cfg.PostgresDSN, migrations.FS); err != nil {
			shutdownMgr.Shutdown()
			return nil, err
		}

		logger.Info("Connecting to PostgreSQL")
		var pool *pgxpool.Pool
		pool, err = platformpostgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			shutdownMgr.Shutdown()
			return nil, err
		}
		shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))
		logger.Info("PostgreSQL connection established")

		store = record.NewPostgresStore(pool)
		readiness = platformpostgres.Readiness(pool)
	default:
		logger.Warn("Using in-memory notification store")
		store = record.NewMemoryStore()
	}

	notificationService := service.NewNotificationService(logger, store)

	var consumer *eventkafka.NotificationConsumer
	if cfg.Kafka.Enabled {
		dlqWriter := platformkafka.NewWriter(cfg.Kafka.Brokers, cfg.DLQTopic)
		dlqPublisher := eventkafka.NewDLQPublisher(logger, dlqWriter)
		shutdownMgr.Add("dlq_publisher", platformshutdown.Close(dlqPublisher))

		reader := platformkafka.NewReader(cfg.Kafka.Brokers, cfg.GroupID, cfg.Topic)
		consumer = eventkafka.NewNotificationConsumer(
			logger,
			reader,
			notificationService,
			dlqPublisher,
			cfg.RetryMaxAttempts,
			cfg.RetryBackoffBase,
		)
		shutdownMgr.Add("kafka_notification_consumer", platformshutdown.Close(consumer))
		logger.Info("Kafka consumer configured",
			zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Topic),
			zap.String("group_id", cfg.GroupID),
		)
	} else {
		logger.Warn("Broker disabled, notification consumer is not started")
	}

	handler := httpapi.NewHandler(notificationService, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, readiness, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:      logger,
		httpServer:  httpServer,
		consumer:    consumer,
		shutdownMgr: shutdownMgr,
	}, nil
}

// ConsumerEnabled сообщает, поднята ли подписка на брокер
func (a *App) ConsumerEnabled() bool {
	return a.consumer != nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	return a.RunContext(context.Background())
}

// RunContext как Run, но также останавливается при отмене ctx
func (a *App) RunContext(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Notification service")

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

	if a.consumer != nil {
		consumerDone := make(chan struct{})
		go func() {
			defer close(consumerDone)
			if err := a.consumer.Start(ctx); err != nil {
				a.logger.Error("kafka notification consumer error", zap.Error(err))
			}
		}()
		a.logger.Info("Kafka consumer started")

		// Выполняется первым: цикл чтения останавливается до закрытия reader-а
		a.shutdownMgr.Add("kafka_consumer_loop", func(hookCtx context.Context) error {
			cancel()
			select {
			case <-consumerDone:
				return nil
			case <-hookCtx.Done():
				return hookCtx.Err()
			}
		})
	}

	a.shutdownMgr.WaitContext(ctx)
	cancel()
	a.wg.Wait()

	a.logger.Info("Notification service stopped")
	return nil
}
