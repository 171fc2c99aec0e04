// Package record общий формат уведомления и хранилище для него.
//
// Пакет используется и consumer-ом сервиса уведомлений (режим с брокером),
// и checkout-ом при выключенном брокере (DirectNotifier). Оба пути строят запись
// через FromEvent, поэтому её вид не зависит от способа доставки.
package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Store --dir=. --output=./mocks --outpkg=mocks

// DefaultListLimit размер выборки ListByReceiver, если limit не задан
const DefaultListLimit = 50

// ErrNotNotification событие не является уведомлением
var ErrNotNotification = errors.New("event is not a notification")

// namespace пространство имён для детерминированного id записи по event_id
var namespace = uuid.MustParse("5b7e8f0a-2c4d-4e61-9a3b-7d1f0c9e8a24")

// Record сохранённое уведомление
type Record struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	CreatorID    string    `json:"creator_id"`
	ReceiverID   string    `json:"receiver_id"`
	RedirectLink string    `json:"redirect_link,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromEvent строит запись из события Notification.
// ID выводится из event_id, CreatedAt равен времени события (UTC, точность PostgreSQL).
func FromEvent(ev events.Event) (Record, error) {
	n, ok := ev.Payload.(events.Notification)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotNotification, ev.Type())
	}
	if ev.ID == "" {
		return Record{}, &events.ParseError{Field: "event_id", Message: "event_id is required"}
	}
	if err := events.Validate(n); err != nil {
		return Record{}, err
	}

	return Record{
		ID:           uuid.NewSHA1(namespace, []byte(ev.ID)).String(),
		EventID:      ev.ID,
		Title:        n.Title,
		Message:      n.Message,
		CreatorID:    n.CreatorID,
		ReceiverID:   n.ReceiverID,
		RedirectLink: n.RedirectLink,
		CreatedAt:    ev.OccurredAt.UTC().Truncate(time.Microsecond),
	}, nil
}

// Store хранилище уведомлений
type Store interface {
	// Create сохраняет запись. created=false, если запись с таким EventID уже есть.
	Create(ctx context.Context, r Record) (created bool, err error)
	// ListByReceiver последние уведомления получателя, новые первыми
	ListByReceiver(ctx context.Context, receiverID string, limit int) ([]Record, error)
}

// DirectNotifier пишет уведомление в хранилище синхронно, без брокера
type DirectNotifier struct {
	store  Store
	logger *zap.Logger
}

// NewDirectNotifier создаёт DirectNotifier
func NewDirectNotifier(store Store, logger *zap.Logger) *DirectNotifier {
	return &DirectNotifier{store: store, logger: logger}
}

// Notify сохраняет уведомление из события. Повторное событие не создаёт вторую запись.
func (n *DirectNotifier) Notify(ctx context.Context, ev events.Event) error {
	r, err := FromEvent(ev)
	if err != nil {
		return err
	}

	created, err := n.store.Create(ctx, r)
	if err != nil {
		return fmt.Errorf("store notification %s: %w", ev.ID, err)
	}
	if !created {
		n.logger.Debug("notification already stored",
			zap.String("event_id", ev.ID),
			zap.String("receiver_id", r.ReceiverID),
		)
		return nil
	}

	n.logger.Info("notification stored directly",
		zap.String("event_id", ev.ID),
		zap.String("receiver_id", r.ReceiverID),
	)
	return nil
}
