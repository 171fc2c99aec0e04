package record

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore in-memory Store для локального запуска и тестов
type MemoryStore struct {
	mu      sync.RWMutex
	byEvent map[string]Record
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEvent: make(map[string]Record)}
}

func (s *MemoryStore) Create(_ context.Context, r Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEvent[r.EventID]; ok {
		return false, nil
	}
	s.byEvent[r.EventID] = r
	return true, nil
}

func (s *MemoryStore) ListByReceiver(_ context.Context, receiverID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	out := make([]Record, 0)
	for _, r := range s.byEvent {
		if r.ReceiverID == receiverID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
