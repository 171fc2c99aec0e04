package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
)

// SessionRepository in-memory хранилище сессий (SESSION_STORE=memory и тесты)
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]repository.Session
}

// NewSessionRepository создаёт пустое хранилище сессий
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]repository.Session)}
}

func (r *SessionRepository) Create(_ context.Context, s repository.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *SessionRepository) Get(_ context.Context, id string) (repository.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return repository.Session{}, repository.ErrNotFound
	}
	return cloneSession(s), nil
}

func (r *SessionRepository) UpdateStatus(_ context.Context, id string, from, to repository.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if s.Status != from {
		return &repository.StatusConflictError{Current: s.Status}
	}
	s.Status = to
	r.sessions[id] = s
	return nil
}

func (r *SessionRepository) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, s := range r.sessions {
		if s.Status == repository.SessionPending && !s.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func cloneSession(s repository.Session) repository.Session {
	s.Cart = append([]repository.CartLine(nil), s.Cart...)
	s.Sellers = append([]string(nil), s.Sellers...)
	if s.Coupon != nil {
		c := *s.Coupon
		s.Coupon = &c
	}
	return s
}

// IntentRepository in-memory хранилище интентов
type IntentRepository struct {
	mu         sync.RWMutex
	intents    map[string]repository.IntentRecord
	bySession  map[string][]string
	byProvider map[string]string
}

// NewIntentRepository создаёт пустое хранилище интентов
func NewIntentRepository() *IntentRepository {
	return &IntentRepository{
		intents:    make(map[string]repository.IntentRecord),
		bySession:  make(map[string][]string),
		byProvider: make(map[string]string),
	}
}

func (r *IntentRepository) SaveIntents(_ context.Context, records []repository.IntentRecord) error {
	if len(records) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID := records[0].SessionID
	if len(r.bySession[sessionID]) > 0 {
		return repository.ErrIntentsExist
	}
	for _, rec := range records {
		r.intents[rec.ID] = rec
		r.bySession[rec.SessionID] = append(r.bySession[rec.SessionID], rec.ID)
		if rec.ProviderIntentID != "" {
			r.byProvider[rec.ProviderIntentID] = rec.ID
		}
	}
	return nil
}

func (r *IntentRepository) ListBySession(_ context.Context, sessionID string) ([]repository.IntentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bySession[sessionID]
	out := make([]repository.IntentRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.intents[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SellerID < out[j].SellerID })
	return out, nil
}

func (r *IntentRepository) GetByProviderID(_ context.Context, providerIntentID string) (repository.IntentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byProvider[providerIntentID]
	if !ok {
		return repository.IntentRecord{}, repository.ErrNotFound
	}
	return r.intents[id], nil
}

func (r *IntentRepository) UpdateStatus(_ context.Context, id string, status repository.IntentStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.intents[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Status = status
	rec.FailureReason = reason
	rec.UpdatedAt = time.Now().UTC()
	r.intents[id] = rec
	return nil
}

// PayoutAccountRepository in-memory хранилище субаккаунтов
type PayoutAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]repository.PayoutAccount
}

// NewPayoutAccountRepository создаёт пустое хранилище субаккаунтов
func NewPayoutAccountRepository() *PayoutAccountRepository {
	return &PayoutAccountRepository{accounts: make(map[string]repository.PayoutAccount)}
}

// Upsert регистрирует субаккаунт. Смена аккаунта сбрасывает флаг onboarded.
func (r *PayoutAccountRepository) Upsert(_ context.Context, acc repository.PayoutAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.accounts[acc.SellerID]
	acc.Onboarded = ok && prev.ProviderAccountID == acc.ProviderAccountID && prev.Onboarded
	acc.LastCheckedAt = prev.LastCheckedAt
	r.accounts[acc.SellerID] = acc
	return nil
}

func (r *PayoutAccountRepository) Get(_ context.Context, sellerID string) (repository.PayoutAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[sellerID]
	if !ok {
		return repository.PayoutAccount{}, repository.ErrNotFound
	}
	return acc, nil
}

func (r *PayoutAccountRepository) GetByProviderAccount(_ context.Context, providerAccountID string) (repository.PayoutAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acc := range r.accounts {
		if acc.ProviderAccountID == providerAccountID {
			return acc, nil
		}
	}
	return repository.PayoutAccount{}, repository.ErrNotFound
}

func (r *PayoutAccountRepository) MarkChecked(_ context.Context, sellerID string, onboarded bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[sellerID]
	if !ok {
		return repository.ErrNotFound
	}
	acc.Onboarded = onboarded
	acc.LastCheckedAt = at
	r.accounts[sellerID] = acc
	return nil
}
