// Package pricing derives the order cost breakdown shown at checkout.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/storefront/pkg/currency"
	"github.com/Checker-Finance/storefront/pkg/model"
)

var (
	// DefaultServiceFeeRate is the platform fee charged on the subtotal.
	DefaultServiceFeeRate = decimal.RequireFromString("0.015")
	// DefaultDepositRate is the upfront share of subtotal plus fee.
	DefaultDepositRate = decimal.RequireFromString("0.70")
)

// Calculator computes cost breakdowns in the base currency.
type Calculator struct {
	ServiceFeeRate decimal.Decimal
	DepositRate    decimal.Decimal
}

// NewCalculator returns a Calculator with the default rates.
func NewCalculator() *Calculator {
	return &Calculator{
		ServiceFeeRate: DefaultServiceFeeRate,
		DepositRate:    DefaultDepositRate,
	}
}

// IDSet is a set of cart line IDs.
type IDSet map[string]struct{}

// NewIDSet builds an IDSet from ids.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Compute returns the breakdown for the selected lines. Lines whose currency
// cannot be converted with table contribute zero and are reported through
// RatesPending/PendingCurrencies. Currencies that fall back to USD are
// listed in UnknownCurrencies. Inputs are read-only and nothing is cached,
// so a refreshed table is always honoured.
func (c *Calculator) Compute(lines []model.CartLine, selected IDSet, table currency.RateLookup) model.CostBreakdown {
	out := model.CostBreakdown{
		BaseCurrency: model.BaseCurrency,
		Subtotal:     decimal.Zero,
	}
	pending := make(map[string]struct{})
	unknown := make(map[string]struct{})

	for _, line := range lines {
		if !selected.Has(line.ID) {
			continue
		}
		out.LineCount++
		if _, known := currency.Normalize(line.Currency); !known {
			unknown[line.Currency] = struct{}{}
		}
		amount := line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		base, ok := currency.ToBase(amount, line.Currency, table)
		if !ok {
			pending[currency.Code(line.Currency)] = struct{}{}
			continue
		}
		out.Subtotal = out.Subtotal.Add(base)
	}

	out.ServiceFee = out.Subtotal.Mul(c.ServiceFeeRate)
	out.Deposit = out.Subtotal.Add(out.ServiceFee).Mul(c.DepositRate)

	if len(pending) > 0 {
		out.RatesPending = true
		for code := range pending {
			out.PendingCurrencies = append(out.PendingCurrencies, code)
		}
		sort.Strings(out.PendingCurrencies)
	}
	for raw := range unknown {
		out.UnknownCurrencies = append(out.UnknownCurrencies, raw)
	}
	sort.Strings(out.UnknownCurrencies)
	return out
}
