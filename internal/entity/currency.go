package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyAmount is the atomic unit of multi-currency aggregation.
type CurrencyAmount struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// ExchangeRateTable maps currency codes to a multiplicative rate relative to
// Base: one unit of Base buys Rates[code] units of code.
type ExchangeRateTable struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	Timestamp time.Time                  `json:"timestamp"`
}

// Rate returns the usable rate for code. The base currency has an implicit
// rate of one; missing and non-positive rates report false.
func (t *ExchangeRateTable) Rate(code string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	if r, ok := t.Rates[code]; ok {
		if !r.IsPositive() {
			return decimal.Zero, false
		}
		return r, true
	}
	if code != "" && code == t.Base {
		return decimal.NewFromInt(1), true
	}
	return decimal.Zero, false
}

// IsStale reports whether the table is older than maxAge at now.
func (t *ExchangeRateTable) IsStale(now time.Time, maxAge time.Duration) bool {
	if t == nil || t.Timestamp.IsZero() {
		return true
	}
	return now.Sub(t.Timestamp) > maxAge
}
