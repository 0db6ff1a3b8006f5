package constants

import "strings"

var codeToSymbol = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "CN¥",
	"INR": "₹",
	"KRW": "₩",
	"RUB": "₽",
	"TRY": "₺",
	"ILS": "₪",
	"NGN": "₦",
	"PHP": "₱",
	"VND": "₫",
	"THB": "฿",
	"UAH": "₴",
	"PLN": "zł",
	"BRL": "R$",
	"CAD": "CA$",
	"AUD": "A$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"SGD": "S$",
	"MXN": "MX$",
	"CHF": "CHF",
	"ZAR": "R",
	"SEK": "kr",
}

// symbolToCode is built from codeToSymbol; "kr" and "$"-style collisions resolve
// to the entries listed in preferredSymbolOwner.
var symbolToCode = func() map[string]string {
	m := make(map[string]string, len(codeToSymbol))
	for code, sym := range codeToSymbol {
		m[sym] = code
	}
	for sym, code := range preferredSymbolOwner {
		m[sym] = code
	}
	return m
}()

var preferredSymbolOwner = map[string]string{
	"$":  "USD",
	"¥":  "JPY",
	"kr": "SEK",
}

// SymbolForCode returns the display symbol for an ISO 4217 code, or the
// normalized code itself when unknown.
func SymbolForCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if sym, ok := codeToSymbol[c]; ok {
		return sym
	}
	return c
}

// CodeForSymbol returns the ISO 4217 code for a display symbol. Unknown symbols
// are returned trimmed, so an input that already is a code passes through.
func CodeForSymbol(symbol string) string {
	s := strings.TrimSpace(symbol)
	if code, ok := symbolToCode[s]; ok {
		return code
	}
	if _, ok := codeToSymbol[strings.ToUpper(s)]; ok {
		return strings.ToUpper(s)
	}
	return s
}
