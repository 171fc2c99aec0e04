package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shestoi/nextbuy/services/analytics/internal/repository"
)

// CounterRepository in-memory реализация для локального запуска и тестов
type CounterRepository struct {
	mu        sync.RWMutex
	processed map[string]struct{}
	counters  map[repository.CounterKey]repository.Counter
}

// NewCounterRepository создаёт пустое хранилище
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{
		processed: make(map[string]struct{}),
		counters:  make(map[repository.CounterKey]repository.Counter),
	}
}

func (r *CounterRepository) Apply(_ context.Context, eventID string, key repository.CounterKey, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.processed[eventID]; ok {
		return repository.ErrAlreadyApplied
	}
	r.processed[eventID] = struct{}{}

	c := r.counters[key]
	c.CounterKey = key
	c.Count++
	c.Amount = c.Amount.Add(amount)
	r.counters[key] = c
	return nil
}

func (r *CounterRepository) ListByShopDay(_ context.Context, shopID, day string) ([]repository.Counter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Counter, 0)
	for key, c := range r.counters {
		if key.ShopID == shopID && key.Day == day {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}
