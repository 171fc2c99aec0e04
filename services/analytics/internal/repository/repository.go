package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrAlreadyApplied событие с таким event_id уже учтено
var ErrAlreadyApplied = errors.New("event already applied")

// CounterKey ключ агрегата: день (YYYY-MM-DD, UTC), магазин, товар, действие
type CounterKey struct {
	Day       string
	ShopID    string
	ProductID string
	Action    string
}

// Counter агрегированный счётчик действий
type Counter struct {
	CounterKey
	Count  int64
	Amount decimal.Decimal
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=CounterRepository --dir=. --output=./mocks --outpkg=mocks

// CounterRepository хранилище счётчиков поведения
type CounterRepository interface {
	// Apply учитывает событие один раз: повторный eventID возвращает ErrAlreadyApplied
	Apply(ctx context.Context, eventID string, key CounterKey, amount decimal.Decimal) error
	// ListByShopDay счётчики магазина за день, отсортированные по товару и действию
	ListByShopDay(ctx context.Context, shopID, day string) ([]Counter, error)
}
