package currency

import "strings"

// Fallback is returned for inputs that do not map to a known currency.
const Fallback = "USD"

// ISO codes the storefront knows how to price.
const (
	USD = "USD"
	CNY = "CNY"
	VND = "VND"
	EUR = "EUR"
	GBP = "GBP"
)

var knownCodes = map[string]struct{}{
	USD: {},
	CNY: {},
	VND: {},
	EUR: {},
	GBP: {},
}

// symbols is matched verbatim (case-sensitive): "đ" and "Đ" are not the same input.
var symbols = map[string]string{
	"$": USD,
	"¥": CNY,
	"元": CNY,
	"₫": VND,
	"đ": VND,
	"€": EUR,
	"£": GBP,
}

// Normalize maps a currency code or symbol, as scraped from marketplace
// payloads, to an ISO code. Unknown and empty inputs fall back to USD with
// known=false so the caller can flag the line; Normalize itself never fails.
func Normalize(input string) (code string, known bool) {
	if input == "" {
		return Fallback, false
	}
	if upper := strings.ToUpper(input); isKnown(upper) {
		return upper, true
	}
	if iso, ok := symbols[input]; ok {
		return iso, true
	}
	return Fallback, false
}

// Code is Normalize without the known flag.
func Code(input string) string {
	code, _ := Normalize(input)
	return code
}

func isKnown(code string) bool {
	_, ok := knownCodes[code]
	return ok
}
