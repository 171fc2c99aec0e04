package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/platform/events"
	"github.com/shestoi/nextbuy/platform/observability"
	"github.com/shestoi/nextbuy/services/checkout/internal/provider"
	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
)

// systemActor автор системных уведомлений
const systemActor = "system"

// Orchestrator превращает checkout-сессию в платёжные интенты (по одному на продавца)
// и доводит сессию до completed по webhook-ам провайдера.
//
// Все операции над одной сессией сериализуются мьютексом сессии,
// разные сессии обрабатываются независимо.
type Orchestrator struct {
	sessions    *SessionStore
	intents     repository.IntentRepository
	accounts    repository.PayoutAccountRepository
	gate        *PayoutAccountGate
	provider    provider.PaymentProvider
	publisher   EventPublisher
	notifier    Notifier
	platformFee decimal.Decimal
	locks       *keyedMutex
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrchestrator создаёт оркестратор.
// platformFee доля комиссии площадки, используется только в событии PaymentCompleted.
func NewOrchestrator(
	sessions *SessionStore,
	intents repository.IntentRepository,
	accounts repository.PayoutAccountRepository,
	gate *PayoutAccountGate,
	p provider.PaymentProvider,
	publisher EventPublisher,
	notifier Notifier,
	platformFee decimal.Decimal,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:    sessions,
		intents:     intents,
		accounts:    accounts,
		gate:        gate,
		provider:    p,
		publisher:   publisher,
		notifier:    notifier,
		platformFee: platformFee,
		locks:       newKeyedMutex(),
		logger:      logger,
		now:         time.Now,
	}
}

// CreateIntents создаёт по интенту на каждого продавца сессии.
//
// Либо создаётся полный набор интентов, либо не сохраняется ни одного.
// Повторный вызов возвращает уже сохранённый набор.
func (o *Orchestrator) CreateIntents(ctx context.Context, sessionID string) ([]repository.IntentRecord, error) {
	log := observability.L(ctx, o.logger).With(zap.String("session_id", sessionID))

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, &SessionNotPayableError{SessionID: sessionID, Reason: "session not found"}
		}
		return nil, err
	}
	if session.Status != repository.SessionPending {
		return nil, &SessionNotPayableError{SessionID: sessionID, Reason: "session is " + string(session.Status)}
	}
	if !o.now().Before(session.ExpiresAt) {
		return nil, &SessionNotPayableError{SessionID: sessionID, Reason: "session expired"}
	}

	existing, err := o.intents.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	if len(existing) > 0 {
		log.Info("intents already exist, returning them", zap.Int("count", len(existing)))
		return existing, nil
	}

	// Все продавцы проверяются до первого обращения к провайдеру
	accounts := make(map[string]repository.PayoutAccount, len(session.Sellers))
	for _, sellerID := range session.Sellers {
		acc, ok := o.gate.Check(ctx, sellerID)
		if !ok {
			log.Warn("seller is not onboarded, checkout blocked", zap.String("seller_id", sellerID))
			return nil, &SellerNotOnboardedError{SellerID: sellerID}
		}
		accounts[sellerID] = acc
	}

	records, created, err := o.createProviderIntents(ctx, session, accounts)
	if err != nil {
		o.cancelIntents(ctx, created)
		return nil, err
	}

	if err := o.intents.SaveIntents(ctx, records); err != nil {
		o.cancelIntents(ctx, created)
		if errors.Is(err, repository.ErrIntentsExist) {
			// другой экземпляр сервиса успел раньше
			log.Info("intents saved concurrently, returning stored set")
			return o.intents.ListBySession(ctx, sessionID)
		}
		return nil, fmt.Errorf("save intents: %w", err)
	}

	log.Info("payment intents created", zap.Int("count", len(records)))

	if allSucceeded(records) {
		// Вся сумма покрыта купоном: платить нечего
		if err := o.complete(ctx, session, records); err != nil {
			return records, err
		}
	}
	return records, nil
}

func (o *Orchestrator) createProviderIntents(
	ctx context.Context,
	session repository.Session,
	accounts map[string]repository.PayoutAccount,
) ([]repository.IntentRecord, []string, error) {
	now := o.now().UTC()
	attempt := uuid.New().String()
	shares := SplitTotal(session.SellerSubtotals(), session.TotalAmount)

	records := make([]repository.IntentRecord, 0, len(shares))
	created := make([]string, 0, len(shares))
	for _, share := range shares {
		rec := repository.IntentRecord{
			ID:               uuid.New().String(),
			SessionID:        session.ID,
			SellerID:         share.SellerID,
			Amount:           share.Amount,
			Currency:         session.Currency,
			PayoutAccountRef: accounts[share.SellerID].ProviderAccountID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if share.Amount.IsZero() {
			rec.Status = repository.IntentSucceeded
			records = append(records, rec)
			continue
		}

		intent, err := o.provider.CreateIntent(ctx, provider.CreateIntentRequest{
			SessionID:          session.ID,
			SellerID:           share.SellerID,
			Amount:             share.Amount,
			Currency:           session.Currency,
			DestinationAccount: rec.PayoutAccountRef,
			IdempotencyKey:     session.ID + ":" + share.SellerID + ":" + attempt,
		})
		if err != nil {
			return nil, created, &ProviderError{Op: "create intent", SellerID: share.SellerID, Err: err}
		}
		created = append(created, intent.ID)

		rec.ProviderIntentID = intent.ID
		rec.ClientSecret = intent.ClientSecret
		rec.Status = repository.IntentCreated
		records = append(records, rec)
	}
	return records, created, nil
}

// cancelIntents отменяет интенты, созданные в неудачном вызове (best effort)
func (o *Orchestrator) cancelIntents(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := o.provider.CancelIntent(ctx, id); err != nil {
			o.logger.Warn("failed to cancel orphan payment intent",
				zap.String("provider_intent_id", id),
				zap.Error(err),
			)
		}
	}
}

// OnIntentConfirmed отмечает интент оплаченным. Когда оплачены все интенты сессии,
// сессия завершается и публикуется PaymentCompleted. Повторный webhook ничего не меняет.
func (o *Orchestrator) OnIntentConfirmed(ctx context.Context, providerIntentID string) error {
	rec, unlock, err := o.lockIntent(ctx, providerIntentID)
	if err != nil {
		return err
	}
	defer unlock()

	log := observability.L(ctx, o.logger).With(
		zap.String("session_id", rec.SessionID),
		zap.String("provider_intent_id", providerIntentID),
	)

	if rec.Status == repository.IntentSucceeded {
		log.Debug("intent already succeeded, skipping")
		return nil
	}
	if rec.Status == repository.IntentFailed {
		log.Info("previously failed intent confirmed")
	}
	if err := o.intents.UpdateStatus(ctx, rec.ID, repository.IntentSucceeded, ""); err != nil {
		return fmt.Errorf("update intent status: %w", err)
	}

	records, err := o.intents.ListBySession(ctx, rec.SessionID)
	if err != nil {
		return fmt.Errorf("list intents: %w", err)
	}
	if !allSucceeded(records) {
		return nil
	}

	session, err := o.sessions.Get(ctx, rec.SessionID)
	if err != nil {
		return err
	}
	switch session.Status {
	case repository.SessionCompleted:
		return nil
	case repository.SessionExpired:
		log.Error("payment confirmed for expired session, session stays expired",
			zap.String("buyer_id", session.BuyerID),
		)
		return nil
	}

	return o.complete(ctx, session, records)
}

// complete завершает сессию и публикует события. Вызывается под мьютексом сессии.
func (o *Orchestrator) complete(ctx context.Context, session repository.Session, records []repository.IntentRecord) error {
	log := observability.L(ctx, o.logger).With(zap.String("session_id", session.ID))

	err := o.sessions.MarkCompleted(ctx, session.ID)
	var stateErr *InvalidStateError
	switch {
	case err == nil:
	case errors.As(err, &stateErr) && stateErr.Current == string(repository.SessionCompleted):
		log.Debug("session already completed")
		return nil
	case errors.As(err, &stateErr) && stateErr.Current == string(repository.SessionExpired):
		log.Error("payment confirmed for expired session, session stays expired")
		return nil
	default:
		return fmt.Errorf("complete session: %w", err)
	}

	log.Info("checkout session completed", zap.String("total", session.TotalAmount.StringFixed(minorUnits)))

	shares := make([]events.IntentShare, 0, len(records))
	for _, rec := range records {
		shares = append(shares, events.IntentShare{
			SellerID: rec.SellerID,
			IntentID: rec.ProviderIntentID,
			Amount:   rec.Amount,
		})
	}
	o.publish(ctx, events.New(events.PaymentCompleted{
		SessionID:   session.ID,
		BuyerID:     session.BuyerID,
		Amount:      session.TotalAmount,
		Currency:    session.Currency,
		PlatformFee: session.TotalAmount.Mul(o.platformFee).Round(minorUnits),
		Intents:     shares,
	}))

	for _, rec := range records {
		o.publish(ctx, events.New(events.UserBehavior{
			UserID:    session.BuyerID,
			Action:    events.ActionPurchase,
			ShopID:    rec.SellerID,
			SessionID: session.ID,
			Amount:    rec.Amount,
		}))
	}

	o.notify(ctx, events.Notification{
		Title:        "Payment completed",
		Message:      fmt.Sprintf("Your order for %s %s has been paid.", session.TotalAmount.StringFixed(minorUnits), session.Currency),
		CreatorID:    systemActor,
		ReceiverID:   session.BuyerID,
		RedirectLink: "/orders/" + session.ID,
	})
	for _, rec := range records {
		o.notify(ctx, events.Notification{
			Title:        "New paid order",
			Message:      fmt.Sprintf("You received a paid order for %s %s.", rec.Amount.StringFixed(minorUnits), rec.Currency),
			CreatorID:    session.BuyerID,
			ReceiverID:   rec.SellerID,
			RedirectLink: "/seller/orders/" + session.ID,
		})
	}
	return nil
}

// OnIntentFailed отмечает интент неудачным и публикует PaymentFailed.
// Автоматического повтора нет: покупатель начинает новый checkout.
func (o *Orchestrator) OnIntentFailed(ctx context.Context, providerIntentID, reason string) error {
	rec, unlock, err := o.lockIntent(ctx, providerIntentID)
	if err != nil {
		return err
	}
	defer unlock()

	log := observability.L(ctx, o.logger).With(
		zap.String("session_id", rec.SessionID),
		zap.String("provider_intent_id", providerIntentID),
	)

	switch rec.Status {
	case repository.IntentFailed:
		log.Debug("intent already failed, skipping")
		return nil
	case repository.IntentSucceeded:
		err := &InvalidStateError{
			Entity:  "intent",
			ID:      rec.ID,
			Current: string(rec.Status),
			Target:  string(repository.IntentFailed),
		}
		log.Warn("failure reported for succeeded intent", zap.Error(err))
		return err
	}

	if err := o.intents.UpdateStatus(ctx, rec.ID, repository.IntentFailed, reason); err != nil {
		return fmt.Errorf("update intent status: %w", err)
	}
	log.Info("payment intent failed", zap.String("reason", reason))

	var buyerID string
	if session, err := o.sessions.Get(ctx, rec.SessionID); err != nil {
		log.Warn("session lookup failed for failed intent", zap.Error(err))
	} else {
		buyerID = session.BuyerID
	}

	o.publish(ctx, events.New(events.PaymentFailed{
		SessionID: rec.SessionID,
		BuyerID:   buyerID,
		SellerID:  rec.SellerID,
		IntentID:  providerIntentID,
		Reason:    reason,
	}))
	if buyerID != "" {
		o.notify(ctx, events.Notification{
			Title:        "Payment failed",
			Message:      "Your payment could not be completed. Please start checkout again.",
			CreatorID:    systemActor,
			ReceiverID:   buyerID,
			RedirectLink: "/cart",
		})
	}
	return nil
}

// OnRefundCompleted публикует RefundCompleted по возврату от провайдера
func (o *Orchestrator) OnRefundCompleted(ctx context.Context, providerIntentID string, amount decimal.Decimal, currency string) error {
	rec, err := o.intents.GetByProviderID(ctx, providerIntentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIntentNotFound
		}
		return fmt.Errorf("get intent: %w", err)
	}
	if currency == "" {
		currency = rec.Currency
	}

	o.publish(ctx, events.New(events.RefundCompleted{
		SessionID: rec.SessionID,
		SellerID:  rec.SellerID,
		IntentID:  providerIntentID,
		Amount:    amount,
		Currency:  currency,
	}))

	if session, err := o.sessions.Get(ctx, rec.SessionID); err == nil {
		o.notify(ctx, events.Notification{
			Title:        "Refund completed",
			Message:      fmt.Sprintf("%s %s has been refunded.", amount.StringFixed(minorUnits), currency),
			CreatorID:    rec.SellerID,
			ReceiverID:   session.BuyerID,
			RedirectLink: "/orders/" + session.ID,
		})
	}
	return nil
}

// PayoutInput выплата продавцу из webhook-а провайдера
type PayoutInput struct {
	AccountID   string
	PayoutID    string
	Amount      decimal.Decimal
	Currency    string
	ArrivalDate time.Time
	Completed   bool
}

// OnPayout публикует PayoutInitiated или PayoutCompleted
func (o *Orchestrator) OnPayout(ctx context.Context, in PayoutInput) error {
	payout := events.Payout{
		AccountID:   in.AccountID,
		PayoutID:    in.PayoutID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		ArrivalDate: in.ArrivalDate,
	}

	acc, err := o.accounts.GetByProviderAccount(ctx, in.AccountID)
	switch {
	case err == nil:
		payout.SellerID = acc.SellerID
	case errors.Is(err, repository.ErrNotFound):
		o.logger.Warn("payout for unknown account", zap.String("account_id", in.AccountID))
	default:
		return fmt.Errorf("get payout account: %w", err)
	}

	if !in.Completed {
		o.publish(ctx, events.New(events.PayoutInitiated{Payout: payout}))
		return nil
	}

	o.publish(ctx, events.New(events.PayoutCompleted{Payout: payout}))
	if payout.SellerID != "" {
		o.notify(ctx, events.Notification{
			Title:        "Payout completed",
			Message:      fmt.Sprintf("%s %s has been paid out to your account.", in.Amount.StringFixed(minorUnits), in.Currency),
			CreatorID:    systemActor,
			ReceiverID:   payout.SellerID,
			RedirectLink: "/seller/payouts",
		})
	}
	return nil
}

// HandleWebhook направляет событие провайдера в нужную операцию
func (o *Orchestrator) HandleWebhook(ctx context.Context, ev provider.WebhookEvent) error {
	switch ev.Type {
	case provider.WebhookIntentSucceeded:
		return o.OnIntentConfirmed(ctx, ev.IntentID)
	case provider.WebhookIntentFailed:
		return o.OnIntentFailed(ctx, ev.IntentID, ev.FailureReason)
	case provider.WebhookChargeRefunded:
		return o.OnRefundCompleted(ctx, ev.IntentID, ev.Amount, ev.Currency)
	case provider.WebhookPayoutCreated, provider.WebhookPayoutPaid:
		return o.OnPayout(ctx, PayoutInput{
			AccountID:   ev.AccountID,
			PayoutID:    ev.PayoutID,
			Amount:      ev.Amount,
			Currency:    ev.Currency,
			ArrivalDate: ev.ArrivalDate,
			Completed:   ev.Type == provider.WebhookPayoutPaid,
		})
	default:
		return fmt.Errorf("%w: %s", provider.ErrUnhandledEvent, ev.Type)
	}
}

// lockIntent находит интент, берёт мьютекс его сессии и перечитывает интент под мьютексом
func (o *Orchestrator) lockIntent(ctx context.Context, providerIntentID string) (repository.IntentRecord, func(), error) {
	rec, err := o.intents.GetByProviderID(ctx, providerIntentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.IntentRecord{}, nil, ErrIntentNotFound
		}
		return repository.IntentRecord{}, nil, fmt.Errorf("get intent: %w", err)
	}

	unlock := o.locks.Lock(rec.SessionID)
	rec, err = o.intents.GetByProviderID(ctx, providerIntentID)
	if err != nil {
		unlock()
		return repository.IntentRecord{}, nil, fmt.Errorf("get intent: %w", err)
	}
	return rec, unlock, nil
}

// publish fire-and-forget: ошибка только логируется
func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	if err := o.publisher.Publish(ctx, ev); err != nil {
		observability.L(ctx, o.logger).Error("failed to publish event",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type())),
			zap.String("key", ev.Key()),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) notify(ctx context.Context, n events.Notification) {
	ev := events.New(n)
	if err := o.notifier.Notify(ctx, ev); err != nil {
		observability.L(ctx, o.logger).Error("failed to deliver notification",
			zap.String("event_id", ev.ID),
			zap.String("receiver_id", n.ReceiverID),
			zap.Error(err),
		)
	}
}

func allSucceeded(records []repository.IntentRecord) bool {
	if len(records) == 0 {
		return false
	}
	for _, rec := range records {
		if rec.Status != repository.IntentSucceeded {
			return false
		}
	}
	return true
}
