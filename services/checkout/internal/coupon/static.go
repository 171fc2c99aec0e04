// Package coupon разрешает коды купонов в сумму скидки
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownCoupon код купона не найден
var ErrUnknownCoupon = errors.New("unknown coupon")

// Kind способ расчёта скидки
type Kind string

const (
	// KindFixed фиксированная сумма
	KindFixed Kind = "fixed"
	// KindPercent процент от суммы корзины до скидки
	KindPercent Kind = "percent"
)

// Rule правило купона
type Rule struct {
	Kind  Kind
	Value decimal.Decimal
}

// StaticResolver купоны из конфигурации (COUPONS). Коды регистронезависимы.
type StaticResolver struct {
	rules map[string]Rule
}

// NewStaticResolver создаёт resolver из готовых правил
func NewStaticResolver(rules map[string]Rule) *StaticResolver {
	normalized := make(map[string]Rule, len(rules))
	for code, rule := range rules {
		normalized[strings.ToUpper(code)] = rule
	}
	return &StaticResolver{rules: normalized}
}

// Parse разбирает строку вида "CODE:fixed:10.00,CODE2:percent:15"
func Parse(raw string) (*StaticResolver, error) {
	rules := make(map[string]Rule)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("coupon %q: expected CODE:kind:value", item)
		}
		code := strings.TrimSpace(parts[0])
		if code == "" {
			return nil, fmt.Errorf("coupon %q: empty code", item)
		}

		kind := Kind(strings.ToLower(strings.TrimSpace(parts[1])))
		if kind != KindFixed && kind != KindPercent {
			return nil, fmt.Errorf("coupon %q: unknown kind %q", item, parts[1])
		}

		value, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("coupon %q: invalid value: %w", item, err)
		}
		if value.IsNegative() || (kind == KindPercent && value.GreaterThan(decimal.NewFromInt(100))) {
			return nil, fmt.Errorf("coupon %q: value out of range", item)
		}

		rules[code] = Rule{Kind: kind, Value: value}
	}
	return NewStaticResolver(rules), nil
}

// Resolve скидка по купону для суммы subtotal.
// Процентная скидка округляется до цента вниз.
func (r *StaticResolver) Resolve(_ context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	rule, ok := r.rules[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCoupon, code)
	}

	switch rule.Kind {
	case KindPercent:
		return subtotal.Mul(rule.Value).Div(decimal.NewFromInt(100)).RoundFloor(2), nil
	default:
		return rule.Value, nil
	}
}

// Len число настроенных купонов
func (r *StaticResolver) Len() int {
	return len(r.rules)
}
