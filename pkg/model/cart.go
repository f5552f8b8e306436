package model

import "github.com/shopspring/decimal"

// CartLineVariant describes the variant a cart line was added with.
type CartLineVariant struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	OptionsDescription string `json:"optionsDescription,omitempty"`
}

// CartLine is a single line of a shopping cart. Price is per unit, in Currency.
type CartLine struct {
	ID        string           `json:"id"`
	ProductID string           `json:"productId"`
	Price     decimal.Decimal  `json:"price"`
	Currency  string           `json:"currency"`
	Quantity  int              `json:"quantity"`
	Variant   *CartLineVariant `json:"variant,omitempty"`
}

// CostBreakdown is the derived order cost in the base currency.
// It is recomputed on every call and never persisted.
type CostBreakdown struct {
	BaseCurrency string          `json:"baseCurrency"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ServiceFee   decimal.Decimal `json:"serviceFee"`
	Deposit      decimal.Decimal `json:"deposit"`

	// RatesPending is set when at least one selected line could not be
	// converted yet; such lines contribute zero to Subtotal.
	RatesPending      bool     `json:"ratesPending"`
	PendingCurrencies []string `json:"pendingCurrencies,omitempty"`
	// UnknownCurrencies lists the raw currency inputs of selected lines that
	// matched no known code or symbol; those lines were priced as USD.
	UnknownCurrencies []string `json:"unknownCurrencies,omitempty"`
	LineCount         int      `json:"lineCount"`
}
