package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/platform/observability"
	"github.com/shestoi/nextbuy/services/notification/record"
)

// NotificationService сохраняет уведомления, пришедшие через брокер
type NotificationService struct {
	logger *zap.Logger
	store  record.Store
}

// NewNotificationService создаёт новый экземпляр NotificationService
func NewNotificationService(logger *zap.Logger, store record.Store) *NotificationService {
	return &NotificationService{
		logger: logger,
		store:  store,
	}
}

// Handle обрабатывает событие Notification.
// Идемпотентность обеспечивается уникальностью event_id в хранилище:
// повторная доставка того же события ничего не меняет.
func (s *NotificationService) Handle(ctx context.Context, ev events.Event) error {
	logger := observability.L(ctx, s.logger)

	r, err := record.FromEvent(ev)
	if err != nil {
		return err
	}

	created, err := s.store.Create(ctx, r)
	if err != nil {
		logger.Error("failed to store notification",
			zap.Error(err),
			zap.String("event_id", ev.ID),
			zap.String("receiver_id", r.ReceiverID),
		)
		return fmt.Errorf("store notification %s: %w", ev.ID, err)
	}

	if !created {
		logger.Info("event already processed (duplicate)",
			zap.String("event_id", ev.ID),
			zap.String("receiver_id", r.ReceiverID),
		)
		return nil
	}

	logger.Info("notification stored",
		zap.String("event_id", ev.ID),
		zap.String("receiver_id", r.ReceiverID),
		zap.String("title", r.Title),
	)
	return nil
}

// List последние уведомления получателя
func (s *NotificationService) List(ctx context.Context, receiverID string, limit int) ([]record.Record, error) {
	return s.store.ListByReceiver(ctx, receiverID, limit)
}
