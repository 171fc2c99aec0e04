package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
)

// sweepBatch сколько истёкших сессий обрабатывается за один запрос к хранилищу
const sweepBatch = 100

// SessionStore управляет жизненным циклом checkout-сессий
type SessionStore struct {
	repo     repository.SessionRepository
	coupons  CouponResolver
	ttl      time.Duration
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionStore создаёт SessionStore. coupons может быть nil: тогда любой купон отклоняется.
func NewSessionStore(
	repo repository.SessionRepository,
	coupons CouponResolver,
	ttl time.Duration,
	currency string,
	logger *zap.Logger,
) *SessionStore {
	return &SessionStore{
		repo:     repo,
		coupons:  coupons,
		ttl:      ttl,
		currency: strings.ToLower(currency),
		logger:   logger,
		now:      time.Now,
	}
}

// CreateSessionInput входные данные для создания сессии
type CreateSessionInput struct {
	BuyerID    string
	Cart       []repository.CartLine
	CouponCode string
}

// Create валидирует корзину, применяет купон и сохраняет новую pending-сессию
func (s *SessionStore) Create(ctx context.Context, input CreateSessionInput) (repository.Session, error) {
	if err := validateCart(input.BuyerID, input.Cart); err != nil {
		return repository.Session{}, err
	}

	subtotal := decimal.Zero
	for _, line := range input.Cart {
		subtotal = subtotal.Add(line.Total())
	}
	subtotal = subtotal.Round(minorUnits)

	var coupon *repository.Coupon
	total := subtotal
	if code := strings.TrimSpace(input.CouponCode); code != "" {
		if s.coupons == nil {
			return repository.Session{}, fmt.Errorf("%w: %s", ErrInvalidCoupon, code)
		}
		discount, err := s.coupons.Resolve(ctx, code, subtotal)
		if err != nil {
			return repository.Session{}, fmt.Errorf("%w: %v", ErrInvalidCoupon, err)
		}
		discount = discount.Round(minorUnits)
		coupon = &repository.Coupon{Code: code, Discount: discount}
		total = subtotal.Sub(discount)
		if total.IsNegative() {
			total = decimal.Zero
		}
	}

	now := s.now().UTC()
	session := repository.Session{
		ID:          uuid.New().String(),
		BuyerID:     input.BuyerID,
		Cart:        input.Cart,
		Coupon:      coupon,
		Sellers:     repository.SellersOf(input.Cart),
		Subtotal:    subtotal,
		TotalAmount: total,
		Currency:    s.currency,
		Status:      repository.SessionPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.repo.Create(ctx, session); err != nil {
		s.logger.Error("failed to save checkout session",
			zap.String("buyer_id", input.BuyerID),
			zap.Error(err),
		)
		return repository.Session{}, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("buyer_id", session.BuyerID),
		zap.Strings("sellers", session.Sellers),
		zap.String("total", session.TotalAmount.StringFixed(minorUnits)),
	)
	return session, nil
}

func validateCart(buyerID string, cart []repository.CartLine) error {
	if buyerID == "" {
		return fmt.Errorf("%w: buyer_id is required", ErrInvalidCart)
	}
	if len(cart) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidCart)
	}
	for i, line := range cart {
		switch {
		case line.ProductID == "":
			return fmt.Errorf("%w: line %d: product_id is required", ErrInvalidCart, i)
		case line.ShopID == "":
			return fmt.Errorf("%w: line %d: shop_id is required", ErrInvalidCart, i)
		case line.Quantity <= 0:
			return fmt.Errorf("%w: line %d: quantity must be positive", ErrInvalidCart, i)
		case line.UnitPrice.IsNegative():
			return fmt.Errorf("%w: line %d: unit_price must not be negative", ErrInvalidCart, i)
		}
	}
	return nil
}

// Get возвращает сессию или ErrSessionNotFound
func (s *SessionStore) Get(ctx context.Context, id string) (repository.Session, error) {
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Session{}, ErrSessionNotFound
		}
		return repository.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// MarkCompleted переводит сессию pending → completed.
// Для сессии в другом статусе возвращает *InvalidStateError; "уже completed" вызывающий считает успехом.
func (s *SessionStore) MarkCompleted(ctx context.Context, id string) error {
	return s.transition(ctx, id, repository.SessionCompleted)
}

func (s *SessionStore) transition(ctx context.Context, id string, to repository.SessionStatus) error {
	err := s.repo.UpdateStatus(ctx, id, repository.SessionPending, to)
	if err == nil {
		return nil
	}

	var conflict *repository.StatusConflictError
	switch {
	case errors.As(err, &conflict):
		return &InvalidStateError{
			Entity:  "session",
			ID:      id,
			Current: string(conflict.Current),
			Target:  string(to),
		}
	case errors.Is(err, repository.ErrNotFound):
		return ErrSessionNotFound
	default:
		return fmt.Errorf("update session status: %w", err)
	}
}

// SweepExpired переводит просроченные pending-сессии в expired и возвращает их число.
// Сессии, которые успели завершиться параллельно, пропускаются.
func (s *SessionStore) SweepExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	swept := 0

	for {
		ids, err := s.repo.ListExpiredPending(ctx, now, sweepBatch)
		if err != nil {
			return swept, fmt.Errorf("list expired sessions: %w", err)
		}

		progressed := false
		for _, id := range ids {
			err := s.transition(ctx, id, repository.SessionExpired)
			var stateErr *InvalidStateError
			switch {
			case err == nil:
				swept++
				progressed = true
			case errors.As(err, &stateErr), errors.Is(err, ErrSessionNotFound):
				s.logger.Debug("session left pending before sweep",
					zap.String("session_id", id),
					zap.Error(err),
				)
				progressed = true
			default:
				return swept, err
			}
		}

		if len(ids) < sweepBatch || !progressed {
			break
		}
	}

	if swept > 0 {
		s.logger.Info("expired checkout sessions swept", zap.Int("count", swept))
	}
	return swept, nil
}
