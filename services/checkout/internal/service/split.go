package service

import (
	"sort"

	"github.com/shopspring/decimal"
)

// minorUnits число знаков минимальной денежной единицы (центы)
const minorUnits = 2

// Share доля продавца в сумме сессии
type Share struct {
	SellerID string
	Subtotal decimal.Decimal
	Amount   decimal.Decimal
}

// SplitTotal делит total между продавцами пропорционально их сумме до скидки.
//
// Каждая доля округляется вниз до цента, остаток целиком уходит продавцу
// с наибольшей суммой (при равенстве побеждает меньший shopId). Сумма долей
// всегда равна total, округлённому до цента. Результат отсортирован по SellerID.
func SplitTotal(subtotals map[string]decimal.Decimal, total decimal.Decimal) []Share {
	sellers := make([]string, 0, len(subtotals))
	for id := range subtotals {
		sellers = append(sellers, id)
	}
	sort.Strings(sellers)

	shares := make([]Share, len(sellers))
	sum := decimal.Zero
	for i, id := range sellers {
		shares[i] = Share{SellerID: id, Subtotal: subtotals[id], Amount: decimal.Zero}
		sum = sum.Add(subtotals[id])
	}
	if len(shares) == 0 || !sum.IsPositive() {
		return shares
	}

	totalMinor := total.Shift(minorUnits).Floor()
	if !totalMinor.IsPositive() {
		return shares
	}

	allocated := decimal.Zero
	largest := 0
	for i := range shares {
		// floor(subtotal * T / S) без потери точности: целая часть деления
		q, _ := shares[i].Subtotal.Mul(totalMinor).QuoRem(sum, 0)
		shares[i].Amount = q
		allocated = allocated.Add(q)
		if shares[i].Subtotal.GreaterThan(shares[largest].Subtotal) {
			largest = i
		}
	}
	shares[largest].Amount = shares[largest].Amount.Add(totalMinor.Sub(allocated))

	for i := range shares {
		shares[i].Amount = shares[i].Amount.Shift(-minorUnits)
	}
	return shares
}
