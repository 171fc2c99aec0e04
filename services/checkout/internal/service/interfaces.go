package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/shestoi/nextbuy/platform/events"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=EventPublisher --dir=. --output=./mocks --outpkg=mocks

// EventPublisher отправляет доменные события на шину.
// Ошибка публикации не откатывает изменение состояния, которое её вызвало.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Notifier --dir=. --output=./mocks --outpkg=mocks

// Notifier доставляет событие-уведомление (payload events.Notification).
// С брокером это публикация в топик уведомлений, без брокера синхронная запись.
type Notifier interface {
	Notify(ctx context.Context, ev events.Event) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=CouponResolver --dir=. --output=./mocks --outpkg=mocks

// CouponResolver считает скидку купона относительно суммы корзины до скидки
type CouponResolver interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error)
}
