package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
)

// CartLineRequest позиция корзины в запросе
type CartLineRequest struct {
	ProductID string          `json:"product_id"`
	ShopID    string          `json:"shop_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateSessionRequest тело POST /checkout/sessions
type CreateSessionRequest struct {
	BuyerID    string            `json:"buyer_id"`
	Cart       []CartLineRequest `json:"cart"`
	CouponCode string            `json:"coupon_code,omitempty"`
}

// SessionResponse checkout-сессия в ответе
type SessionResponse struct {
	ID          string                `json:"id"`
	BuyerID     string                `json:"buyer_id"`
	Cart        []repository.CartLine `json:"cart"`
	Coupon      *repository.Coupon    `json:"coupon,omitempty"`
	Sellers     []string              `json:"sellers"`
	Subtotal    string                `json:"subtotal"`
	TotalAmount string                `json:"total_amount"`
	Currency    string                `json:"currency"`
	Status      string                `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	ExpiresAt   time.Time             `json:"expires_at"`
}

func toSessionResponse(s repository.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		BuyerID:     s.BuyerID,
		Cart:        s.Cart,
		Coupon:      s.Coupon,
		Sellers:     s.Sellers,
		Subtotal:    s.Subtotal.StringFixed(2),
		TotalAmount: s.TotalAmount.StringFixed(2),
		Currency:    s.Currency,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

// IntentResponse интент продавца; client_secret нужен фронту для подтверждения оплаты
type IntentResponse struct {
	ID               string `json:"id"`
	SellerID         string `json:"seller_id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	ProviderIntentID string `json:"provider_intent_id,omitempty"`
	ClientSecret     string `json:"client_secret,omitempty"`
	Status           string `json:"status"`
}

// IntentsResponse ответ POST /checkout/sessions/{id}/intents
type IntentsResponse struct {
	SessionID string           `json:"session_id"`
	Intents   []IntentResponse `json:"intents"`
}

func toIntentsResponse(sessionID string, records []repository.IntentRecord) IntentsResponse {
	out := IntentsResponse{SessionID: sessionID, Intents: make([]IntentResponse, 0, len(records))}
	for _, rec := range records {
		out.Intents = append(out.Intents, IntentResponse{
			ID:               rec.ID,
			SellerID:         rec.SellerID,
			Amount:           rec.Amount.StringFixed(2),
			Currency:         rec.Currency,
			ProviderIntentID: rec.ProviderIntentID,
			ClientSecret:     rec.ClientSecret,
			Status:           string(rec.Status),
		})
	}
	return out
}

// PayoutAccountRequest тело PUT /sellers/{id}/payout-account
type PayoutAccountRequest struct {
	ProviderAccountID string `json:"provider_account_id"`
}

// PayoutAccountResponse состояние аккаунта продавца после проверки
type PayoutAccountResponse struct {
	SellerID          string    `json:"seller_id"`
	ProviderAccountID string    `json:"provider_account_id"`
	Onboarded         bool      `json:"onboarded"`
	LastCheckedAt     time.Time `json:"last_checked_at"`
}

// BehaviorRequest тело POST /events/behavior
type BehaviorRequest struct {
	UserID    string          `json:"user_id"`
	Action    string          `json:"action"`
	ProductID string          `json:"product_id,omitempty"`
	ShopID    string          `json:"shop_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

// AcceptedResponse ответ на принятое событие
type AcceptedResponse struct {
	EventID string `json:"event_id"`
}
