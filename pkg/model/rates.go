package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency every cross-currency total is normalized into.
const BaseCurrency = "VND"

// ExchangeRate converts one unit of CurrencyCode into the base currency.
// UpdatedAt is informational and only used for display.
type ExchangeRate struct {
	CurrencyCode string          `json:"currencyCode"`
	RateToBase   decimal.Decimal `json:"rateToBase"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// RateSnapshot is the serializable form of a full exchange-rate table.
type RateSnapshot struct {
	Base      string                  `json:"base"`
	Rates     map[string]ExchangeRate `json:"rates"`
	FetchedAt time.Time               `json:"fetchedAt"`
}
