package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/batcher"
	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/platform/observability"
	"github.com/shestoi/nextbuy/services/analytics/internal/repository"
)

// DayLayout формат дня в ключе счётчика
const DayLayout = "2006-01-02"

var (
	// ErrNotBehavior событие не является UserBehavior
	ErrNotBehavior = errors.New("event is not a user behavior event")
	// ErrInvalidQuery некорректные параметры запроса статистики
	ErrInvalidQuery = errors.New("invalid stats query")
)

// AnalyticsService обновляет агрегаты поведения пользователей
type AnalyticsService struct {
	logger *zap.Logger
	repo   repository.CounterRepository
}

// NewAnalyticsService создаёт сервис
func NewAnalyticsService(logger *zap.Logger, repo repository.CounterRepository) *AnalyticsService {
	return &AnalyticsService{
		logger: logger,
		repo:   repo,
	}
}

// ApplyEvent учитывает событие в счётчике {день, магазин, товар, действие}.
// Для purchase к сумме добавляется amount события.
// applied=false означает, что событие уже было учтено (повторная доставка).
func (s *AnalyticsService) ApplyEvent(ctx context.Context, ev events.Event) (bool, error) {
	behavior, ok := ev.Payload.(events.UserBehavior)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotBehavior, ev.Type())
	}
	if ev.ID == "" {
		return false, &events.ParseError{Field: "event_id", Message: "event_id is required"}
	}
	if err := events.Validate(behavior); err != nil {
		return false, err
	}

	key := repository.CounterKey{
		Day:       ev.OccurredAt.UTC().Format(DayLayout),
		ShopID:    behavior.ShopID,
		ProductID: behavior.ProductID,
		Action:    behavior.Action,
	}
	amount := decimal.Zero
	if behavior.Action == events.ActionPurchase {
		amount = behavior.Amount
	}

	log := observability.L(ctx, s.logger).With(
		zap.String("event_id", ev.ID),
		zap.String("action", behavior.Action),
		zap.String("shop_id", behavior.ShopID),
	)

	if err := s.repo.Apply(ctx, ev.ID, key, amount); err != nil {
		if errors.Is(err, repository.ErrAlreadyApplied) {
			log.Debug("behavior event already applied, skipping")
			return false, nil
		}
		log.Error("failed to apply behavior event", zap.Error(err))
		return false, fmt.Errorf("apply event %s: %w", ev.ID, err)
	}

	log.Debug("behavior event applied")
	return true, nil
}

// Handle обработчик батчера
func (s *AnalyticsService) Handle(ctx context.Context, item batcher.Item[events.Event]) error {
	_, err := s.ApplyEvent(ctx, item.Value)
	return err
}

// Stats счётчики магазина за день (YYYY-MM-DD)
func (s *AnalyticsService) Stats(ctx context.Context, shopID, day string) ([]repository.Counter, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop_id is required", ErrInvalidQuery)
	}
	if _, err := time.Parse(DayLayout, day); err != nil {
		return nil, fmt.Errorf("%w: day must be YYYY-MM-DD", ErrInvalidQuery)
	}
	return s.repo.ListByShopDay(ctx, shopID, day)
}
