// Package events описывает доменные события маркетплейса и их конверт на шине.
//
// Набор payload-ов закрыт: каждый тип реализует Payload, а потребители
// разбирают событие через type switch. Новый тип события добавляется только здесь,
// вместе с константой Type и веткой в Decode.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type тип события в конверте (event_type)
type Type string

const (
	TypePaymentCompleted Type = "payment.completed"
	TypePaymentFailed    Type = "payment.failed"
	TypeRefundCompleted  Type = "refund.completed"
	TypePayoutInitiated  Type = "payout.initiated"
	TypePayoutCompleted  Type = "payout.completed"
	TypeUserBehavior     Type = "user.behavior"
	TypeNotification     Type = "notification.created"
)

// Version текущая версия схемы конверта (event_version)
const Version = 1

// Действия пользователя для UserBehavior
const (
	ActionProductView    = "product_view"
	ActionAddToCart      = "add_to_cart"
	ActionRemoveFromCart = "remove_from_cart"
	ActionCheckout       = "checkout_started"
	ActionPurchase       = "purchase"
	ActionWishlistAdd    = "wishlist_add"
)

// Payload содержимое события. Реализуется только типами этого пакета.
type Payload interface {
	// Type тип события
	Type() Type
	// Key ключ партиционирования на шине
	Key() string

	validate() error
}

// Event доменное событие: идентификатор, время и типизированный payload
type Event struct {
	ID         string
	OccurredAt time.Time
	Payload    Payload
}

// New создаёт событие с новым event_id и текущим временем (UTC)
func New(p Payload) Event {
	return Event{
		ID:         uuid.New().String(),
		OccurredAt: time.Now().UTC(),
		Payload:    p,
	}
}

// Type тип события по payload
func (e Event) Type() Type {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Type()
}

// Key ключ партиционирования по payload
func (e Event) Key() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Key()
}

// IntentShare доля продавца в оплаченной сессии
type IntentShare struct {
	SellerID string          `json:"seller_id"`
	IntentID string          `json:"intent_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
}

// PaymentCompleted все интенты сессии успешно оплачены, сессия завершена
type PaymentCompleted struct {
	SessionID   string          `json:"session_id"`
	BuyerID     string          `json:"buyer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	Intents     []IntentShare   `json:"intents"`
}

func (PaymentCompleted) Type() Type { return TypePaymentCompleted }
func (p PaymentCompleted) Key() string { return p.SessionID }
func (p PaymentCompleted) validate() error {
	if p.SessionID == "" {
		return &ParseError{Field: "payload.session_id", Message: "session_id is required"}
	}
	return nil
}

// PaymentFailed провайдер отклонил оплату интента продавца
type PaymentFailed struct {
	SessionID string `json:"session_id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	IntentID  string `json:"intent_id"`
	Reason    string `json:"reason"`
}

func (PaymentFailed) Type() Type { return TypePaymentFailed }
func (p PaymentFailed) Key() string { return p.SessionID }
func (p PaymentFailed) validate() error {
	if p.SessionID == "" {
		return &ParseError{Field: "payload.session_id", Message: "session_id is required"}
	}
	return nil
}

// RefundCompleted возврат по интенту проведён провайдером
type RefundCompleted struct {
	SessionID string          `json:"session_id"`
	SellerID  string          `json:"seller_id"`
	IntentID  string          `json:"intent_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func (RefundCompleted) Type() Type { return TypeRefundCompleted }
func (p RefundCompleted) Key() string { return p.SessionID }
func (p RefundCompleted) validate() error {
	if p.IntentID == "" {
		return &ParseError{Field: "payload.intent_id", Message: "intent_id is required"}
	}
	return nil
}

// Payout выплата на счёт продавца
type Payout struct {
	SellerID    string          `json:"seller_id"`
	AccountID   string          `json:"account_id"`
	PayoutID    string          `json:"payout_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ArrivalDate time.Time       `json:"arrival_date"`
}

func (p Payout) validate() error {
	if p.PayoutID == "" {
		return &ParseError{Field: "payload.payout_id", Message: "payout_id is required"}
	}
	return nil
}

// PayoutInitiated провайдер создал выплату
type PayoutInitiated struct{ Payout }

func (PayoutInitiated) Type() Type { return TypePayoutInitiated }
func (p PayoutInitiated) Key() string { return p.AccountID }

// PayoutCompleted выплата дошла до продавца
type PayoutCompleted struct{ Payout }

func (PayoutCompleted) Type() Type { return TypePayoutCompleted }
func (p PayoutCompleted) Key() string { return p.AccountID }

// UserBehavior действие пользователя для аналитики
type UserBehavior struct {
	UserID    string          `json:"user_id"`
	Action    string          `json:"action"`
	ProductID string          `json:"product_id,omitempty"`
	ShopID    string          `json:"shop_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

func (UserBehavior) Type() Type { return TypeUserBehavior }
func (p UserBehavior) Key() string { return p.UserID }
func (p UserBehavior) validate() error {
	if p.UserID == "" {
		return &ParseError{Field: "payload.user_id", Message: "user_id is required"}
	}
	if p.Action == "" {
		return &ParseError{Field: "payload.action", Message: "action is required"}
	}
	return nil
}

// Notification уведомление пользователю
type Notification struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	CreatorID    string `json:"creator_id"`
	ReceiverID   string `json:"receiver_id"`
	RedirectLink string `json:"redirect_link,omitempty"`
}

func (Notification) Type() Type { return TypeNotification }
func (p Notification) Key() string { return p.ReceiverID }
func (p Notification) validate() error {
	if p.ReceiverID == "" {
		return &ParseError{Field: "payload.receiver_id", Message: "receiver_id is required"}
	}
	if p.Title == "" {
		return &ParseError{Field: "payload.title", Message: "title is required"}
	}
	return nil
}
