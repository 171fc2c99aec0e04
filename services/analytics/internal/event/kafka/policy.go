package kafka

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/batcher"
)

// PolicyConfig параметры политики батчера аналитики
type PolicyConfig struct {
	ContinueOnError bool
	MaxBuffer       int
}

// NewPolicy политика батчера с метриками: отброшенные события по этапам и размер батча
func NewPolicy(cfg PolicyConfig, meter metric.Meter, logger *zap.Logger) (batcher.Policy, error) {
	dropped, err := meter.Int64Counter("analytics_events_dropped_total",
		metric.WithDescription("Behavior events dropped or failed by the batcher, by stage"))
	if err != nil {
		return batcher.Policy{}, err
	}
	batchSize, err := meter.Int64Histogram("analytics_batch_size",
		metric.WithDescription("Number of events handled per flush"))
	if err != nil {
		return batcher.Policy{}, err
	}
	batchFailed, err := meter.Int64Counter("analytics_batch_failed_events_total",
		metric.WithDescription("Handler failures across flushed batches"))
	if err != nil {
		return batcher.Policy{}, err
	}

	return batcher.Policy{
		ContinueOnError: cfg.ContinueOnError,
		MaxBuffer:       cfg.MaxBuffer,
		OnFailure: func(f batcher.Failure) {
			dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("stage", string(f.Stage))))
			if f.Stage == batcher.StageCommit {
				logger.Error("failed to commit batch offsets", zap.Error(f.Err))
			}
		},
		OnFlush: func(size, failed int) {
			batchSize.Record(context.Background(), int64(size))
			if failed > 0 {
				batchFailed.Add(context.Background(), int64(failed))
			}
		},
	}, nil
}
