package currency

import (
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/storefront/pkg/model"
)

// RateLookup is the read side of an exchange-rate table.
// Implementations must tolerate a nil receiver and report every code as missing.
type RateLookup interface {
	Lookup(code string) (model.ExchangeRate, bool)
}

// ToBase converts amount in currency into the base currency.
// ok=false means the amount is unconvertible for now (no table, or no rate for
// the normalized code); callers render a loading state instead of a number.
// The result is not rounded.
func ToBase(amount decimal.Decimal, currency string, table RateLookup) (decimal.Decimal, bool) {
	if isNilLookup(table) {
		return decimal.Zero, false
	}
	rate, ok := table.Lookup(Code(currency))
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(rate.RateToBase), true
}

// nilLookup lets a typed-nil table (e.g. (*rates.Table)(nil)) pass through
// interfaces and still behave as "no rates yet".
type nilLookup interface {
	IsNil() bool
}

func isNilLookup(table RateLookup) bool {
	if table == nil {
		return true
	}
	if n, ok := table.(nilLookup); ok {
		return n.IsNil()
	}
	return false
}
