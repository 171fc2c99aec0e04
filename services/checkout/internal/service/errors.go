package service

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound сессия не найдена
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrIntentNotFound интент с таким id провайдера не найден
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrInvalidCart корзина не прошла валидацию
	ErrInvalidCart = errors.New("invalid cart")
	// ErrInvalidCoupon купон неизвестен или неприменим
	ErrInvalidCoupon = errors.New("invalid coupon")
	// ErrInvalidPayoutAccount не заданы продавец или аккаунт провайдера
	ErrInvalidPayoutAccount = errors.New("invalid payout account")
)

// SessionNotPayableError по сессии нельзя создать интенты: её нет, она истекла или уже оплачена.
// Покупателю предлагается начать checkout заново.
type SessionNotPayableError struct {
	SessionID string
	Reason    string
}

func (e *SessionNotPayableError) Error() string {
	return fmt.Sprintf("session %s is not payable: %s", e.SessionID, e.Reason)
}

// SellerNotOnboardedError субаккаунт продавца не готов принимать платежи.
// Блокирует создание интентов для всей сессии.
type SellerNotOnboardedError struct {
	SellerID string
}

func (e *SellerNotOnboardedError) Error() string {
	return fmt.Sprintf("seller %s cannot currently accept payments", e.SellerID)
}

// ProviderError сбой платёжного провайдера при создании интентов
type ProviderError struct {
	Op       string
	SellerID string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.SellerID != "" {
		return fmt.Sprintf("payment provider %s for seller %s: %v", e.Op, e.SellerID, e.Err)
	}
	return fmt.Sprintf("payment provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// InvalidStateError недопустимый переход состояния (сессии или интента)
type InvalidStateError struct {
	Entity  string
	ID      string
	Current string
	Target  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Entity, e.ID, e.Current, e.Target)
}
