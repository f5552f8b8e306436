package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types emitted by the pricing engine.
const (
	EventVariantResolved   = "variant.resolved"
	EventRatesRefreshed    = "rates.refreshed"
	EventBreakdownComputed = "cart.breakdown.computed"
)

// VariantResolved is emitted when a selection resolves to a concrete variant.
type VariantResolved struct {
	ViewID       string          `json:"viewId,omitempty"`
	ProductID    string          `json:"productId,omitempty"`
	VariantID    string          `json:"variantId"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Selection    Selection       `json:"selection"`
	VariantImage *Attribute      `json:"variantImage,omitempty"`
}

// RatesRefreshed is emitted after a successful wholesale table refresh.
type RatesRefreshed struct {
	Base       string    `json:"base"`
	Currencies []string  `json:"currencies"`
	FetchedAt  time.Time `json:"fetchedAt"`
	DurationMs int64     `json:"durationMs"`
}

// BreakdownComputed is emitted for analytics each time a cart breakdown is served.
type BreakdownComputed struct {
	CartID    string        `json:"cartId,omitempty"`
	Breakdown CostBreakdown `json:"breakdown"`
	At        time.Time     `json:"at"`
}

// Envelope is the canonical event envelope published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}
