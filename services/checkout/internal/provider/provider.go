// Package provider описывает внешний платёжный провайдер так, как его видит checkout.
// Конкретные реализации: stripe (боевая) и fake (локальная разработка, тесты).
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CreateIntentRequest запрос на создание интента для одного продавца
type CreateIntentRequest struct {
	SessionID string
	SellerID  string
	Amount    decimal.Decimal
	Currency  string
	// DestinationAccount субаккаунт продавца, куда переводятся средства
	DestinationAccount string
	// IdempotencyKey повтор запроса с тем же ключом возвращает тот же интент
	IdempotencyKey string
}

// Intent созданный у провайдера интент
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Account состояние субаккаунта продавца у провайдера
type Account struct {
	ID               string
	ChargesEnabled   bool
	DetailsSubmitted bool
	CurrentlyDue     []string
}

// Ready аккаунт может принимать платежи: все три условия обязательны
func (a Account) Ready() bool {
	return a.ChargesEnabled && a.DetailsSubmitted && len(a.CurrentlyDue) == 0
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentProvider --dir=. --output=./mocks --outpkg=mocks

// PaymentProvider операции провайдера, нужные оркестратору
type PaymentProvider interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	RetrieveAccount(ctx context.Context, accountID string) (Account, error)
}

// WebhookEventType тип webhook-события, приведённый к домену
type WebhookEventType string

const (
	WebhookIntentSucceeded WebhookEventType = "intent.succeeded"
	WebhookIntentFailed    WebhookEventType = "intent.failed"
	WebhookChargeRefunded  WebhookEventType = "charge.refunded"
	WebhookPayoutCreated   WebhookEventType = "payout.created"
	WebhookPayoutPaid      WebhookEventType = "payout.paid"
)

// WebhookEvent webhook провайдера в независимом от SDK виде
type WebhookEvent struct {
	ID            string
	Type          WebhookEventType
	IntentID      string
	FailureReason string
	Amount        decimal.Decimal
	Currency      string
	AccountID     string
	PayoutID      string
	ArrivalDate   time.Time
}

// WebhookParser проверяет подпись и разбирает webhook
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

var (
	// ErrInvalidSignature подпись webhook не прошла проверку
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrUnhandledEvent тип webhook-события не интересен checkout
	ErrUnhandledEvent = errors.New("unhandled webhook event")
)
