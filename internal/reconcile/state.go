// Package reconcile detects and repairs disagreement between a receipt's
// stated total and the sum of its items.
//
// An AI suggestion is expensive, so it is remembered against a fingerprint of
// the receipt's numeric state and reused only while that fingerprint is
// unchanged. Applying a suggestion is a sequential, non-transactional batch:
// a failed step stops the batch and earlier removals stay committed.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-sync/internal/currency"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// Tolerance absorbs rounding noise from extraction; only a larger absolute
// delta is a mismatch.
var Tolerance = decimal.New(5, -2)

// Summary is the reconciliation state of one receipt in one currency.
type Summary struct {
	Currency     string
	ReceiptTotal decimal.Decimal
	ItemsTotal   decimal.Decimal
	Delta        decimal.Decimal // ItemsTotal - ReceiptTotal
	HasMismatch  bool
}

// Summarize computes the summary in the receipt's own currency.
func Summarize(r *entity.Receipt) Summary {
	return SummarizeIn(r, r.Currency, nil)
}

// SummarizeIn computes the summary in the given currency. Amounts are
// converted at full precision and rounded once per total.
func SummarizeIn(r *entity.Receipt, to string, rates *entity.ExchangeRateTable) Summary {
	receiptTotal := currency.Round(currency.Convert(r.TotalAmount, r.Currency, to, rates))
	itemsTotal := currency.Round(currency.ConvertAndSum(itemAmounts(r), to, rates))
	delta := itemsTotal.Sub(receiptTotal)
	return Summary{
		Currency:     to,
		ReceiptTotal: receiptTotal,
		ItemsTotal:   itemsTotal,
		Delta:        delta,
		HasMismatch:  delta.Abs().GreaterThan(Tolerance),
	}
}

// ItemsSum is the unrounded sum of item totals in the receipt's currency.
func ItemsSum(r *entity.Receipt) decimal.Decimal {
	return currency.ConvertAndSum(itemAmounts(r), r.Currency, nil)
}

func itemAmounts(r *entity.Receipt) []entity.CurrencyAmount {
	out := make([]entity.CurrencyAmount, 0, len(r.Items))
	for _, it := range r.Items {
		code := it.Currency
		if code == "" {
			code = r.Currency
		}
		out = append(out, entity.CurrencyAmount{Currency: code, Amount: it.TotalPrice})
	}
	return out
}
