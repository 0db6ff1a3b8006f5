package currency

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-sync/constants"
)

// DisplayPlaces is the fixed number of decimals shown for every currency.
const DisplayPlaces = 2

// Round rounds half away from zero to DisplayPlaces.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(DisplayPlaces)
}

// Format renders an amount with its currency symbol, e.g. "€12.50".
func Format(amount decimal.Decimal, code string) string {
	return CodeToSymbol(code) + amount.StringFixed(DisplayPlaces)
}

// CodeToSymbol maps an ISO 4217 code to its symbol, falling back to the code.
func CodeToSymbol(code string) string {
	return constants.SymbolForCode(code)
}

// SymbolToCode maps a symbol to its ISO 4217 code, falling back to the input.
func SymbolToCode(symbol string) string {
	return constants.CodeForSymbol(symbol)
}
