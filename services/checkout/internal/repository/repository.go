package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus статус checkout-сессии
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// CartLine позиция корзины
type CartLine struct {
	ProductID string          `json:"product_id"`
	ShopID    string          `json:"shop_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Total стоимость позиции
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Coupon применённый купон
type Coupon struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

// Session checkout-сессия покупателя.
// Статус меняется только pending → completed или pending → expired.
type Session struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyer_id"`
	Cart        []CartLine      `json:"cart"`
	Coupon      *Coupon         `json:"coupon,omitempty"`
	Sellers     []string        `json:"sellers"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Status      SessionStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// SellerSubtotals сумма корзины по каждому продавцу до скидки
func (s Session) SellerSubtotals() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.Sellers))
	for _, line := range s.Cart {
		out[line.ShopID] = out[line.ShopID].Add(line.Total())
	}
	return out
}

// SellersOf отсортированный список уникальных продавцов корзины
func SellersOf(cart []CartLine) []string {
	seen := make(map[string]struct{}, len(cart))
	out := make([]string, 0, len(cart))
	for _, line := range cart {
		if _, ok := seen[line.ShopID]; ok {
			continue
		}
		seen[line.ShopID] = struct{}{}
		out = append(out, line.ShopID)
	}
	sort.Strings(out)
	return out
}

// IntentStatus статус платёжного интента продавца
type IntentStatus string

const (
	IntentCreated   IntentStatus = "created"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
)

// IntentRecord платёжный интент одного продавца в рамках сессии
type IntentRecord struct {
	ID               string
	SessionID        string
	SellerID         string
	Amount           decimal.Decimal
	Currency         string
	PayoutAccountRef string
	ProviderIntentID string
	// ClientSecret отдаётся фронту для подтверждения оплаты и не попадает в события
	ClientSecret  string
	Status        IntentStatus
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PayoutAccount платёжный субаккаунт продавца у провайдера
type PayoutAccount struct {
	SellerID          string
	ProviderAccountID string
	Onboarded         bool
	LastCheckedAt     time.Time
}

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("not found")
	// ErrIntentsExist для сессии уже сохранён набор интентов
	ErrIntentsExist = errors.New("intents already exist for session")
)

// StatusConflictError текущий статус сессии не совпал с ожидаемым
type StatusConflictError struct {
	Current SessionStatus
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("session status conflict: current status is %s", e.Current)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=SessionRepository --dir=. --output=./mocks --outpkg=mocks

// SessionRepository хранилище checkout-сессий
type SessionRepository interface {
	// Create сохраняет новую сессию
	Create(ctx context.Context, s Session) error
	// Get возвращает сессию или ErrNotFound
	Get(ctx context.Context, id string) (Session, error)
	// UpdateStatus атомарно переводит статус from → to.
	// Если текущий статус не from, возвращает *StatusConflictError.
	UpdateStatus(ctx context.Context, id string, from, to SessionStatus) error
	// ListExpiredPending id pending-сессий с ExpiresAt <= now
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=IntentRepository --dir=. --output=./mocks --outpkg=mocks

// IntentRepository хранилище платёжных интентов
type IntentRepository interface {
	// SaveIntents сохраняет весь набор интентов сессии атомарно.
	// Если для сессии уже есть интенты, возвращает ErrIntentsExist и ничего не пишет.
	SaveIntents(ctx context.Context, records []IntentRecord) error
	// ListBySession интенты сессии, отсортированные по продавцу
	ListBySession(ctx context.Context, sessionID string) ([]IntentRecord, error)
	// GetByProviderID интент по id у провайдера или ErrNotFound
	GetByProviderID(ctx context.Context, providerIntentID string) (IntentRecord, error)
	// UpdateStatus меняет статус интента
	UpdateStatus(ctx context.Context, id string, status IntentStatus, reason string) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PayoutAccountRepository --dir=. --output=./mocks --outpkg=mocks

// PayoutAccountRepository хранилище субаккаунтов продавцов
type PayoutAccountRepository interface {
	// Upsert регистрирует или меняет субаккаунт продавца
	Upsert(ctx context.Context, acc PayoutAccount) error
	// Get субаккаунт продавца или ErrNotFound
	Get(ctx context.Context, sellerID string) (PayoutAccount, error)
	// GetByProviderAccount субаккаунт по id у провайдера или ErrNotFound
	GetByProviderAccount(ctx context.Context, providerAccountID string) (PayoutAccount, error)
	// MarkChecked сохраняет результат последней проверки готовности
	MarkChecked(ctx context.Context, sellerID string, onboarded bool, at time.Time) error
}
