package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/batcher"
	"github.com/shestoi/nextbuy/platform/events"
	platformkafka "github.com/shestoi/nextbuy/platform/kafka"
	platformlogging "github.com/shestoi/nextbuy/platform/logging"
	platformobservability "github.com/shestoi/nextbuy/platform/observability"
	platformshutdown "github.com/shestoi/nextbuy/platform/shutdown"
	httpapi "github.com/shestoi/nextbuy/services/analytics/internal/api/http"
	"github.com/shestoi/nextbuy/services/analytics/internal/config"
	eventkafka "github.com/shestoi/nextbuy/services/analytics/internal/event/kafka"
	"github.com/shestoi/nextbuy/services/analytics/internal/repository"
	"github.com/shestoi/nextbuy/services/analytics/internal/repository/memory"
	mongorepo "github.com/shestoi/nextbuy/services/analytics/internal/repository/mongo"
	"github.com/shestoi/nextbuy/services/analytics/internal/service"
)

// App содержит все зависимости для запуска и корректного shutdown Analytics Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	batcher     *batcher.Batcher[events.Event]
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Analytics Service.
// При BROKER_ENABLED=false батчер не создаётся: события поведения только логируются продюсером.
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"
	ctx := context.Background()

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "analytics",
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Analytics service",
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
		repo      repository.CounterRepository
		readiness func() bool
	)
	switch cfg.Store {
	case config.StoreMongo:
		logger.Info("Connecting to MongoDB")
		ctxMongo, cancelMongo := context.WithTimeout(ctx, 10*time.Second)
		defer cancelMongo()

		client, err := mongo.Connect(ctxMongo, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			shutdownMgr.Shutdown()
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		shutdownMgr.Add("mongodb", platformshutdown.DisconnectMongo(client))

		if err := client.Ping(ctxMongo, readpref.Primary()); err != nil {
			shutdownMgr.Shutdown()
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		logger.Info("MongoDB connection established")

		repo = mongorepo.NewRepository(client, cfg.MongoDBName)
		readiness = mongoReadiness(client)
	default:
		logger.Warn("Using in-memory analytics store")
		repo = memory.NewCounterRepository()
	}

	analyticsService := service.NewAnalyticsService(logger, repo)

	var b *batcher.Batcher[events.Event]
	if cfg.Kafka.Enabled {
		policy, err := eventkafka.NewPolicy(eventkafka.PolicyConfig{
			ContinueOnError: cfg.ContinueOnError,
			MaxBuffer:       cfg.MaxBuffer,
		}, otel.Meter("analytics"), logger)
		if err != nil {
			shutdownMgr.Shutdown()
			return nil, err
		}

		b, err = batcher.New(batcher.Config[events.Event]{
			Name:          cfg.Topic,
			Subscriber:    platformkafka.NewSubscriber(cfg.Kafka.Brokers, cfg.GroupID, cfg.Topic),
			Decode:        eventkafka.DecodeBehavior,
			Handle:        analyticsService.Handle,
			Accept:        cfg.AcceptedActions,
			FlushInterval: cfg.FlushInterval,
			DrainTimeout:  cfg.DrainTimeout,
			Policy:        policy,
		}, logger)
		if err != nil {
			shutdownMgr.Shutdown()
			return nil, err
		}
		logger.Info("Behavior batcher configured",
			zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Topic),
			zap.String("group_id", cfg.GroupID),
			zap.Duration("flush_interval", cfg.FlushInterval),
		)
	} else {
		logger.Warn("Broker disabled, behavior batcher is not started")
	}

	var batcherStats func() batcher.Stats
	if b != nil {
		batcherStats = b.Stats
	}

	handler := httpapi.NewHandler(analyticsService, batcherStats, logger)
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
		batcher:     b,
		shutdownMgr: shutdownMgr,
	}, nil
}

func mongoReadiness(client *mongo.Client) func() bool {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx, readpref.Primary()) == nil
	}
}

// BatcherEnabled сообщает, поднята ли подписка на брокер
func (a *App) BatcherEnabled() bool {
	return a.batcher != nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	return a.RunContext(context.Background())
}

// RunContext как Run, но также останавливается при отмене ctx
func (a *App) RunContext(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Analytics service")

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

	if a.batcher != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.batcher.Start(ctx); err != nil {
				a.logger.Error("behavior batcher error", zap.Error(err))
			}
		}()
		a.logger.Info("Behavior batcher started")

		// Выполняется первым: финальный сброс буфера до отключения от MongoDB
		a.shutdownMgr.Add("behavior_batcher", a.batcher.Stop)
	}

	a.shutdownMgr.WaitContext(ctx)
	cancel()
	a.wg.Wait()

	a.logger.Info("Analytics service stopped")
	return nil
}
