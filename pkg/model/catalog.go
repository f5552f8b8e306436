package model

import "github.com/shopspring/decimal"

// Attribute is one (property, value) facet of a marketplace product.
// IsConfigurator marks a selectable variant axis (Color, Size) as opposed to a
// fixed specification (Material, Brand).
type Attribute struct {
	PropertyID     string `json:"propertyId"`
	PropertyName   string `json:"propertyName"`
	ValueID        string `json:"valueId"`
	Value          string `json:"value"`
	ValueAlias     string `json:"valueAlias,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	IsConfigurator bool   `json:"isConfigurator"`
}

// Option is a single selectable value inside an OptionGroup.
type Option struct {
	ValueID    string `json:"valueId"`
	Value      string `json:"value"`
	ValueAlias string `json:"valueAlias,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

// OptionGroup collects the alternative values of one configurator axis.
// Options keep the order in which they were first seen.
type OptionGroup struct {
	PropertyID   string   `json:"propertyId"`
	PropertyName string   `json:"propertyName"`
	Options      []Option `json:"options"`
}

// Configurator pins one axis of a concrete variant to a value.
type Configurator struct {
	PropertyID string `json:"propertyId"`
	ValueID    string `json:"valueId"`
}

// ConcreteVariant is a priced, stocked SKU combination.
type ConcreteVariant struct {
	ID            string          `json:"id"`
	Configurators []Configurator  `json:"configurators"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
}

// Has reports whether the variant pins propertyID to valueID.
func (v ConcreteVariant) Has(propertyID, valueID string) bool {
	for _, c := range v.Configurators {
		if c.PropertyID == propertyID && c.ValueID == valueID {
			return true
		}
	}
	return false
}

// Product is the fetched product payload a view is built from.
type Product struct {
	ID         string            `json:"id"`
	Title      string            `json:"title,omitempty"`
	Currency   string            `json:"currency,omitempty"`
	Attributes []Attribute       `json:"attributes"`
	Variants   []ConcreteVariant `json:"variants"`
}

// Selection maps propertyId to the chosen valueId.
type Selection map[string]string

// Clone returns an independent copy of s. A nil selection clones to an empty one.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
