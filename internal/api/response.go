package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/storefront/internal/rates"
)

// RateItem is one currency of the rate table.
type RateItem struct {
	Code       string          `json:"code"`
	RateToBase decimal.Decimal `json:"rateToBase"`
	UpdatedAt  time.Time       `json:"updatedAt,omitempty"`
}

// RatesResponse is the current exchange-rate table.
type RatesResponse struct {
	Base      string     `json:"base"`
	Loaded    bool       `json:"loaded"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	Rates     []RateItem `json:"rates"`
	ErrorMsg  string     `json:"errorMessage,omitempty"`
}

// FormatResponse is a single formatted amount.
type FormatResponse struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Code      string `json:"code"`
	Known     bool   `json:"known"`
	Formatted string `json:"formatted"`
}

func toRatesResponse(t *rates.Table) RatesResponse {
	resp := RatesResponse{
		Base:   t.Base(),
		Loaded: t.Len() > 0,
		Rates:  make([]RateItem, 0, t.Len()),
	}
	if at := t.FetchedAt(); !at.IsZero() {
		resp.FetchedAt = &at
	}
	for _, code := range t.Currencies() {
		r, _ := t.Lookup(code)
		resp.Rates = append(resp.Rates, RateItem{Code: code, RateToBase: r.RateToBase, UpdatedAt: r.UpdatedAt})
	}
	return resp
}
