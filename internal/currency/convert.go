// Package currency converts and sums amounts held in heterogeneous currencies.
//
// Conversions never fail. When the rate table is absent, or either side of a
// conversion has no usable rate, the amount is returned unconverted
// (see Convert). Arithmetic runs at full decimal precision; rounding to two
// places happens only in Round and Format, at the display boundary.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// Convert converts amount from one currency to another through the table's
// base. Equal codes return amount untouched without consulting rates. A
// missing table or a missing rate for either code returns amount unconverted.
func Convert(amount decimal.Decimal, from, to string, rates *entity.ExchangeRateTable) decimal.Decimal {
	from, to = normalize(from), normalize(to)
	if from == to {
		return amount
	}
	fromRate, ok := rates.Rate(from)
	if !ok {
		return amount
	}
	toRate, ok := rates.Rate(to)
	if !ok {
		return amount
	}
	return amount.Mul(toRate).Div(fromRate)
}

// Converted reports whether Convert would apply a rate for this pair.
func Converted(from, to string, rates *entity.ExchangeRateTable) bool {
	from, to = normalize(from), normalize(to)
	if from == to {
		return true
	}
	_, okFrom := rates.Rate(from)
	_, okTo := rates.Rate(to)
	return okFrom && okTo
}

// ConvertAndSum converts every amount to the target currency and sums them.
// An empty list sums to exactly zero.
func ConvertAndSum(amounts []entity.CurrencyAmount, to string, rates *entity.ExchangeRateTable) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(Convert(a.Amount, a.Currency, to, rates))
	}
	return sum
}

// AggregateByCurrency sums pre-grouped per-currency subtotals in the target
// currency.
func AggregateByCurrency(subtotals map[string]decimal.Decimal, to string, rates *entity.ExchangeRateTable) decimal.Decimal {
	amounts := make([]entity.CurrencyAmount, 0, len(subtotals))
	for code, amount := range subtotals {
		amounts = append(amounts, entity.CurrencyAmount{Currency: code, Amount: amount})
	}
	return ConvertAndSum(amounts, to, rates)
}

// GroupByCurrency folds amounts into per-currency subtotals.
func GroupByCurrency(amounts []entity.CurrencyAmount) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, a := range amounts {
		code := normalize(a.Currency)
		out[code] = out[code].Add(a.Amount)
	}
	return out
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
