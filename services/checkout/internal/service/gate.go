package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/services/checkout/internal/provider"
	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
)

// PayoutAccountGate решает, может ли продавец сейчас принимать платежи.
// Каждая проверка идёт к провайдеру: сохранённый флаг onboarded не используется для решения.
type PayoutAccountGate struct {
	accounts repository.PayoutAccountRepository
	provider provider.PaymentProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewPayoutAccountGate создаёт gate
func NewPayoutAccountGate(accounts repository.PayoutAccountRepository, p provider.PaymentProvider, logger *zap.Logger) *PayoutAccountGate {
	return &PayoutAccountGate{
		accounts: accounts,
		provider: p,
		logger:   logger,
		now:      time.Now,
	}
}

// IsOnboarded true, только если аккаунт продавца готов принимать платежи.
// Неизвестный продавец и ошибка провайдера дают false.
func (g *PayoutAccountGate) IsOnboarded(ctx context.Context, sellerID string) bool {
	_, ok := g.Check(ctx, sellerID)
	return ok
}

// Check проверяет аккаунт продавца и возвращает его вместе с результатом.
// Результат проверки записывается обратно в хранилище (ошибка записи на ответ не влияет).
func (g *PayoutAccountGate) Check(ctx context.Context, sellerID string) (repository.PayoutAccount, bool) {
	acc, err := g.accounts.Get(ctx, sellerID)
	if err != nil {
		g.logger.Warn("payout account lookup failed",
			zap.String("seller_id", sellerID),
			zap.Error(err),
		)
		return repository.PayoutAccount{SellerID: sellerID}, false
	}

	onboarded := false
	remote, err := g.provider.RetrieveAccount(ctx, acc.ProviderAccountID)
	if err != nil {
		g.logger.Warn("payout account check failed at provider",
			zap.String("seller_id", sellerID),
			zap.String("account_id", acc.ProviderAccountID),
			zap.Error(err),
		)
	} else {
		onboarded = remote.Ready()
		if !onboarded {
			g.logger.Info("payout account is not ready",
				zap.String("seller_id", sellerID),
				zap.String("account_id", acc.ProviderAccountID),
				zap.Bool("charges_enabled", remote.ChargesEnabled),
				zap.Bool("details_submitted", remote.DetailsSubmitted),
				zap.Strings("currently_due", remote.CurrentlyDue),
			)
		}
	}

	at := g.now().UTC()
	if err := g.accounts.MarkChecked(ctx, sellerID, onboarded, at); err != nil {
		g.logger.Warn("failed to store payout account check",
			zap.String("seller_id", sellerID),
			zap.Error(err),
		)
	}

	acc.Onboarded = onboarded
	acc.LastCheckedAt = at
	return acc, onboarded
}

// Register привязывает продавцу аккаунт провайдера и сразу проверяет его готовность
func (g *PayoutAccountGate) Register(ctx context.Context, sellerID, providerAccountID string) (repository.PayoutAccount, error) {
	sellerID = strings.TrimSpace(sellerID)
	providerAccountID = strings.TrimSpace(providerAccountID)
	if sellerID == "" || providerAccountID == "" {
		return repository.PayoutAccount{}, fmt.Errorf("%w: seller_id and provider_account_id are required", ErrInvalidPayoutAccount)
	}

	if err := g.accounts.Upsert(ctx, repository.PayoutAccount{
		SellerID:          sellerID,
		ProviderAccountID: providerAccountID,
	}); err != nil {
		return repository.PayoutAccount{}, fmt.Errorf("store payout account for %s: %w", sellerID, err)
	}

	g.logger.Info("payout account registered",
		zap.String("seller_id", sellerID),
		zap.String("account_id", providerAccountID),
	)

	acc, _ := g.Check(ctx, sellerID)
	return acc, nil
}
