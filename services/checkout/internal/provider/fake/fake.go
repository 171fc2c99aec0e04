// Package fake in-memory платёжный провайдер для локального запуска без Stripe (PAYMENT_PROVIDER=fake)
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shestoi/nextbuy/services/checkout/internal/provider"
)

// Provider хранит интенты и аккаунты в памяти.
// Неизвестный аккаунт считается полностью подключённым, если не задан явно через SetAccount.
type Provider struct {
	mu        sync.Mutex
	intents   map[string]provider.Intent
	byKey     map[string]string
	accounts  map[string]provider.Account
	cancelled map[string]bool
}

// New создаёт пустой fake-провайдер
func New() *Provider {
	return &Provider{
		intents:   make(map[string]provider.Intent),
		byKey:     make(map[string]string),
		accounts:  make(map[string]provider.Account),
		cancelled: make(map[string]bool),
	}
}

// SetAccount задаёт состояние аккаунта
func (p *Provider) SetAccount(acc provider.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[acc.ID] = acc
}

// Cancelled отменён ли интент
func (p *Provider) Cancelled(intentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled[intentID]
}

func (p *Provider) CreateIntent(_ context.Context, req provider.CreateIntentRequest) (provider.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return p.intents[id], nil
	}

	id := "pi_" + uuid.NewString()
	intent := provider.Intent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method"}
	p.intents[id] = intent
	if req.IdempotencyKey != "" {
		p.byKey[req.IdempotencyKey] = id
	}
	return intent, nil
}

func (p *Provider) CancelIntent(_ context.Context, intentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.intents[intentID]; !ok {
		return fmt.Errorf("fake: intent %s not found", intentID)
	}
	p.cancelled[intentID] = true
	return nil
}

func (p *Provider) RetrieveAccount(_ context.Context, accountID string) (provider.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.accounts[accountID]; ok {
		return acc, nil
	}
	return provider.Account{ID: accountID, ChargesEnabled: true, DetailsSubmitted: true}, nil
}

// webhookBody тело webhook-а fake-провайдера, подпись не проверяется
type webhookBody struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	IntentID      string          `json:"intent_id"`
	FailureReason string          `json:"failure_reason"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	AccountID     string          `json:"account_id"`
	PayoutID      string          `json:"payout_id"`
}

// ParseWebhook принимает webhook в упрощённом JSON-формате
func (p *Provider) ParseWebhook(payload []byte, _ string) (provider.WebhookEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return provider.WebhookEvent{}, fmt.Errorf("fake webhook: %w", err)
	}

	typ := provider.WebhookEventType(body.Type)
	switch typ {
	case provider.WebhookIntentSucceeded, provider.WebhookIntentFailed, provider.WebhookChargeRefunded,
		provider.WebhookPayoutCreated, provider.WebhookPayoutPaid:
	default:
		return provider.WebhookEvent{}, fmt.Errorf("%w: %s", provider.ErrUnhandledEvent, body.Type)
	}

	return provider.WebhookEvent{
		ID:            body.ID,
		Type:          typ,
		IntentID:      body.IntentID,
		FailureReason: body.FailureReason,
		Amount:        body.Amount,
		Currency:      body.Currency,
		AccountID:     body.AccountID,
		PayoutID:      body.PayoutID,
	}, nil
}
