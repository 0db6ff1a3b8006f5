package currency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRates() *entity.ExchangeRateTable {
	return &entity.ExchangeRateTable{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"EUR": d("0.9"),
			"GBP": d("0.8"),
			"JPY": d("150"),
			"BAD": d("0"),
		},
		Timestamp: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestConvert_SameCurrencyIsIdentity(t *testing.T) {
	amounts := []string{"0", "19.98", "0.333333333333", "-4.5", "123456789.987654321"}
	tables := []*entity.ExchangeRateTable{nil, {}, testRates()}

	for _, a := range amounts {
		for _, table := range tables {
			got := Convert(d(a), "EUR", "EUR", table)
			assert.True(t, got.Equal(d(a)), "amount %s", a)
			assert.Equal(t, d(a).String(), got.String())
		}
	}
}

func TestConvert_MissingRateFallsBack(t *testing.T) {
	rates := testRates()

	tests := []struct {
		name     string
		from, to string
		table    *entity.ExchangeRateTable
	}{
		{"nil table", "EUR", "USD", nil},
		{"empty table", "EUR", "USD", &entity.ExchangeRateTable{}},
		{"unknown source", "XYZ", "USD", rates},
		{"unknown target", "EUR", "XYZ", rates},
		{"zero rate", "BAD", "EUR", rates},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Convert(d("42.42"), tc.from, tc.to, tc.table)
			assert.True(t, got.Equal(d("42.42")))
			assert.False(t, Converted(tc.from, tc.to, tc.table))
		})
	}
}

func TestConvert_ThroughBase(t *testing.T) {
	rates := testRates()

	assert.True(t, Convert(d("10"), "USD", "EUR", rates).Equal(d("9")))
	assert.True(t, Convert(d("9"), "EUR", "USD", rates).Equal(d("10")))
	// EUR -> GBP goes through USD: 9 EUR = 10 USD = 8 GBP
	assert.True(t, Convert(d("9"), "EUR", "GBP", rates).Equal(d("8")))
	assert.True(t, Convert(d("1"), "usd", " jpy ", rates).Equal(d("150")))
}

func TestConvertAndSum(t *testing.T) {
	rates := testRates()

	assert.True(t, ConvertAndSum(nil, "USD", rates).Equal(decimal.Zero))
	assert.True(t, ConvertAndSum([]entity.CurrencyAmount{}, "EUR", nil).Equal(decimal.Zero))

	got := ConvertAndSum([]entity.CurrencyAmount{
		{Currency: "USD", Amount: d("10")},
		{Currency: "EUR", Amount: d("9")},
		{Currency: "XYZ", Amount: d("1.5")},
	}, "USD", rates)
	assert.True(t, got.Equal(d("21.5")), got.String())
}

func TestConvertAndSum_NoIntermediateRounding(t *testing.T) {
	rates := &entity.ExchangeRateTable{Base: "USD", Rates: map[string]decimal.Decimal{"EUR": d("3")}}
	amounts := make([]entity.CurrencyAmount, 3)
	for i := range amounts {
		amounts[i] = entity.CurrencyAmount{Currency: "USD", Amount: d("0.01")}
	}
	// each element is 0.03 EUR exactly; rounding per element would not change it,
	// but 0.01 USD -> EUR -> USD must not drift either
	sum := ConvertAndSum(amounts, "EUR", rates)
	assert.Equal(t, "0.09", Round(sum).StringFixed(2))

	third := []entity.CurrencyAmount{
		{Currency: "EUR", Amount: d("0.01")},
		{Currency: "EUR", Amount: d("0.01")},
		{Currency: "EUR", Amount: d("0.01")},
	}
	// 0.01/3 = 0.00333.. per element; rounding each to 2dp would give 0.00
	assert.Equal(t, "0.01", Round(ConvertAndSum(third, "USD", rates)).StringFixed(2))
}

func TestAggregateByCurrency(t *testing.T) {
	rates := testRates()

	grouped := GroupByCurrency([]entity.CurrencyAmount{
		{Currency: "usd", Amount: d("5")},
		{Currency: "USD", Amount: d("5")},
		{Currency: "GBP", Amount: d("8")},
	})
	assert.Len(t, grouped, 2)
	assert.True(t, grouped["USD"].Equal(d("10")))

	total := AggregateByCurrency(grouped, "USD", rates)
	assert.True(t, total.Equal(d("20")), total.String())
	assert.True(t, AggregateByCurrency(nil, "USD", rates).Equal(decimal.Zero))
}
