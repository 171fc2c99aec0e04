// Package main отправляет в Kafka пачку поведенческих событий для ручной проверки
// батчера Analytics Service.
//
// Параметры из переменных окружения:
//   - KAFKA_BROKERS (например, "localhost:19092" или "kafka:9092" для Docker)
//   - KAFKA_USER_BEHAVIOR_TOPIC (по умолчанию marketplace.user-behavior)
//   - EMIT_COUNT, EMIT_SHOP_ID, EMIT_ACTIONS
//   - EMIT_DUPLICATES, EMIT_MALFORMED для проверки дедупликации и poison messages
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
	platformkafka "github.com/shestoi/nextbuy/platform/kafka"
	platformlogging "github.com/shestoi/nextbuy/platform/logging"
)

type config struct {
	Kafka      platformkafka.Config
	Topic      string        `env:"KAFKA_USER_BEHAVIOR_TOPIC" envDefault:"marketplace.user-behavior"`
	Count      int           `env:"EMIT_COUNT" envDefault:"10"`
	ShopID     string        `env:"EMIT_SHOP_ID" envDefault:"shop-a"`
	Actions    []string      `env:"EMIT_ACTIONS" envSeparator:"," envDefault:"product_view,add_to_cart,purchase"`
	Duplicates bool          `env:"EMIT_DUPLICATES" envDefault:"false"`
	Malformed  bool          `env:"EMIT_MALFORMED" envDefault:"false"`
	Timeout    time.Duration `env:"EMIT_TIMEOUT" envDefault:"10s"`
}

func main() {
	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "kafka-playground",
		Env:         "local",
		Level:       "info",
		Format:      "console",
		AddCaller:   true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer platformlogging.Sync(logger)

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if err := cfg.Kafka.Validate(); err != nil {
		logger.Fatal("invalid kafka config", zap.Error(err))
	}
	if cfg.Count <= 0 || len(cfg.Actions) == 0 {
		logger.Fatal("EMIT_COUNT must be positive and EMIT_ACTIONS non-empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	writer := platformkafka.NewWriter(cfg.Kafka.Brokers, cfg.Topic)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close kafka writer", zap.Error(err))
		}
	}()

	msgs, err := buildMessages(cfg)
	if err != nil {
		logger.Fatal("failed to build messages", zap.Error(err))
	}

	logger.Info("sending behavior events",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Int("messages", len(msgs)),
	)

	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		logger.Fatal("failed to send messages", zap.Error(err), zap.String("topic", cfg.Topic))
	}

	logger.Info("behavior events sent", zap.Int("messages", len(msgs)))
}

func buildMessages(cfg config) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, cfg.Count+2)
	for i := 0; i < cfg.Count; i++ {
		action := cfg.Actions[i%len(cfg.Actions)]
		payload := events.UserBehavior{
			UserID:    "user-" + strconv.Itoa(i%3+1),
			Action:    action,
			ProductID: "product-" + strconv.Itoa(i%5+1),
			ShopID:    cfg.ShopID,
		}
		if action == events.ActionPurchase {
			payload.Amount = decimal.NewFromInt(int64(10 + i))
		}

		ev := events.New(payload)
		value, err := events.Encode(ev)
		if err != nil {
			return nil, err
		}
		msg := kafka.Message{Key: []byte(ev.Key()), Value: value}
		msgs = append(msgs, msg)

		if cfg.Duplicates && i == 0 {
			msgs = append(msgs, msg)
		}
	}

	if cfg.Malformed {
		msgs = append(msgs, kafka.Message{Key: []byte("poison"), Value: []byte("{not an event")})
	}
	return msgs, nil
}
