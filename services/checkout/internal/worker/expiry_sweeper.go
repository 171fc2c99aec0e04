package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper переводит просроченные сессии в expired (реализуется service.SessionStore)
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpirySweeper периодически запускает sweep истёкших checkout-сессий.
// Работает вне пути запроса: ошибка одного прохода логируется, следующий проход идёт по расписанию.
type ExpirySweeper struct {
	logger   *zap.Logger
	sweeper  Sweeper
	interval time.Duration
}

// NewExpirySweeper создаёт sweeper с интервалом interval
func NewExpirySweeper(logger *zap.Logger, sweeper Sweeper, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		logger:   logger,
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start блокирует до отмены ctx
func (w *ExpirySweeper) Start(ctx context.Context) error {
	w.logger.Info("starting expiry sweeper", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Первый проход сразу при старте: сессии могли истечь, пока сервис был выключен
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry sweeper context cancelled, stopping")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	count, err := w.sweeper.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("failed to sweep expired sessions", zap.Error(err), zap.Int("swept", count))
		return
	}
	if count > 0 {
		w.logger.Debug("sweep finished", zap.Int("swept", count))
	}
}
