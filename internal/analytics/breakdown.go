// Package analytics builds spending breakdowns in one display currency.
// Subtotals are kept per source currency at full precision and converted
// once per bucket; rounding happens only on the reported totals.
package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-sync/constants"
	"github.com/joseph-ayodele/receipts-sync/internal/currency"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// Bucket is one row of a breakdown.
type Bucket struct {
	Key       string
	Label     string
	Count     int
	Subtotals map[string]decimal.Decimal // per source currency, unrounded
	Total     decimal.Decimal            // in the display currency, rounded
}

// Breakdown groups spending into buckets, largest first.
type Breakdown struct {
	Currency string
	Buckets  []Bucket
	Total    decimal.Decimal
	// Unconverted lists source currencies shown at face value for lack of a rate.
	Unconverted []string
}

type accumulator struct {
	order   []string
	buckets map[string]*Bucket
	amounts map[string][]entity.CurrencyAmount
}

func newAccumulator() *accumulator {
	return &accumulator{
		buckets: make(map[string]*Bucket),
		amounts: make(map[string][]entity.CurrencyAmount),
	}
}

func (a *accumulator) add(key, label, code string, amount decimal.Decimal) {
	b, ok := a.buckets[key]
	if !ok {
		b = &Bucket{Key: key, Label: label}
		a.buckets[key] = b
		a.order = append(a.order, key)
	}
	a.amounts[key] = append(a.amounts[key], entity.CurrencyAmount{Currency: code, Amount: amount})
	b.Count++
}

func (a *accumulator) finish(to string, rates *entity.ExchangeRateTable) Breakdown {
	to = strings.ToUpper(strings.TrimSpace(to))
	out := Breakdown{Currency: to, Buckets: make([]Bucket, 0, len(a.order))}

	var every []entity.CurrencyAmount
	for _, key := range a.order {
		b := a.buckets[key]
		b.Subtotals = currency.GroupByCurrency(a.amounts[key])
		b.Total = currency.Round(currency.AggregateByCurrency(b.Subtotals, to, rates))
		every = append(every, a.amounts[key]...)
		out.Buckets = append(out.Buckets, *b)
	}
	all := currency.GroupByCurrency(every)
	out.Total = currency.Round(currency.AggregateByCurrency(all, to, rates))

	for code := range all {
		if !currency.Converted(code, to, rates) {
			out.Unconverted = append(out.Unconverted, code)
		}
	}
	sort.Strings(out.Unconverted)

	sort.SliceStable(out.Buckets, func(i, j int) bool {
		if c := out.Buckets[i].Total.Cmp(out.Buckets[j].Total); c != 0 {
			return c > 0
		}
		return out.Buckets[i].Label < out.Buckets[j].Label
	})
	return out
}

// ByCategory sums item totals per category. Items without a category and
// items whose category no longer exists share the Uncategorized bucket.
func ByCategory(receipts []*entity.Receipt, categories []entity.Category, to string, rates *entity.ExchangeRateTable) Breakdown {
	names := entity.CategoryNames(categories)
	acc := newAccumulator()
	for _, r := range receipts {
		for _, it := range r.Items {
			label := constants.CategoryLabel(it.CategoryID, names)
			key := ""
			if label != constants.Uncategorized {
				key = it.CategoryID.String()
			}
			acc.add(key, label, itemCurrency(r, it), it.TotalPrice)
		}
	}
	return acc.finish(to, rates)
}

// ByStore sums stated receipt totals per store, case-insensitively.
func ByStore(receipts []*entity.Receipt, to string, rates *entity.ExchangeRateTable) Breakdown {
	acc := newAccumulator()
	for _, r := range receipts {
		label := strings.TrimSpace(r.StoreName)
		if label == "" {
			label = "Unknown store"
		}
		acc.add(strings.ToLower(label), label, r.Currency, r.TotalAmount)
	}
	return acc.finish(to, rates)
}

// ByCurrency sums stated receipt totals per source currency. Each bucket's
// Total is its subtotal in the display currency.
func ByCurrency(receipts []*entity.Receipt, to string, rates *entity.ExchangeRateTable) Breakdown {
	acc := newAccumulator()
	for _, r := range receipts {
		code := strings.ToUpper(strings.TrimSpace(r.Currency))
		acc.add(code, code, code, r.TotalAmount)
	}
	return acc.finish(to, rates)
}

func itemCurrency(r *entity.Receipt, it entity.ReceiptItem) string {
	if it.Currency != "" {
		return it.Currency
	}
	return r.Currency
}
