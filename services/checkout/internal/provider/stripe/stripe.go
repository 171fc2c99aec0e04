package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/services/checkout/internal/provider"
)

// minorUnits множитель для перевода в центы; валюты без дробной части не поддерживаются
const minorUnits = 2

// Provider реализует provider.PaymentProvider и provider.WebhookParser через Stripe Connect
type Provider struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// New создаёт Stripe провайдер с отдельным клиентом (без глобального stripe.Key)
func New(secretKey, webhookSecret string, logger *zap.Logger) *Provider {
	return &Provider{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreateIntent создаёт PaymentIntent с переводом на субаккаунт продавца
func (p *Provider) CreateIntent(ctx context.Context, req provider.CreateIntentRequest) (provider.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinor(req.Amount)),
		Currency:      stripe.String(req.Currency),
		TransferGroup: stripe.String(req.SessionID),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.DestinationAccount),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("session_id", req.SessionID)
	params.AddMetadata("seller_id", req.SellerID)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		p.logger.Error("stripe create payment intent failed",
			zap.Error(err),
			zap.String("session_id", req.SessionID),
			zap.String("seller_id", req.SellerID),
		)
		return provider.Intent{}, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return provider.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// CancelIntent отменяет неоплаченный PaymentIntent
func (p *Provider) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := p.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("stripe cancel payment intent %s: %w", intentID, err)
	}
	return nil
}

// RetrieveAccount читает состояние connected account
func (p *Provider) RetrieveAccount(ctx context.Context, accountID string) (provider.Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := p.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return provider.Account{}, fmt.Errorf("stripe retrieve account %s: %w", accountID, err)
	}
	return accountFromStripe(acct), nil
}

func accountFromStripe(acct *stripe.Account) provider.Account {
	out := provider.Account{
		ID:               acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
	if acct.Requirements != nil {
		out.CurrentlyDue = append([]string(nil), acct.Requirements.CurrentlyDue...)
	}
	return out
}

// ParseWebhook проверяет подпись Stripe-Signature и приводит событие к provider.WebhookEvent
func (p *Provider) ParseWebhook(payload []byte, signature string) (provider.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return provider.WebhookEvent{}, fmt.Errorf("%w: %v", provider.ErrInvalidSignature, err)
	}
	return fromEvent(event)
}

func fromEvent(event stripe.Event) (provider.WebhookEvent, error) {
	out := provider.WebhookEvent{ID: event.ID, AccountID: event.Account}
	if event.Data == nil {
		return out, errors.New("stripe event without data")
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return out, fmt.Errorf("unmarshal payment intent: %w", err)
		}
		out.IntentID = pi.ID
		out.Amount = fromMinor(pi.Amount)
		out.Currency = string(pi.Currency)
		out.Type = provider.WebhookIntentSucceeded
		if event.Type == "payment_intent.payment_failed" {
			out.Type = provider.WebhookIntentFailed
			out.FailureReason = "payment_failed"
			if pi.LastPaymentError != nil {
				out.FailureReason = string(pi.LastPaymentError.Code)
				if out.FailureReason == "" {
					out.FailureReason = pi.LastPaymentError.Msg
				}
			}
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return out, fmt.Errorf("unmarshal charge: %w", err)
		}
		out.Type = provider.WebhookChargeRefunded
		if ch.PaymentIntent != nil {
			out.IntentID = ch.PaymentIntent.ID
		}
		out.Amount = fromMinor(ch.AmountRefunded)
		out.Currency = string(ch.Currency)
	case "payout.created", "payout.paid":
		var po stripe.Payout
		if err := json.Unmarshal(event.Data.Raw, &po); err != nil {
			return out, fmt.Errorf("unmarshal payout: %w", err)
		}
		out.Type = provider.WebhookPayoutCreated
		if event.Type == "payout.paid" {
			out.Type = provider.WebhookPayoutPaid
		}
		out.PayoutID = po.ID
		out.Amount = fromMinor(po.Amount)
		out.Currency = string(po.Currency)
		if po.ArrivalDate > 0 {
			out.ArrivalDate = time.Unix(po.ArrivalDate, 0).UTC()
		}
	default:
		return out, fmt.Errorf("%w: %s", provider.ErrUnhandledEvent, event.Type)
	}

	return out, nil
}

func toMinor(amount decimal.Decimal) int64 {
	return amount.Shift(minorUnits).Round(0).IntPart()
}

func fromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -minorUnits)
}
