package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/storefront/pkg/model"
)

// flexID accepts both JSON strings and numbers; marketplace ids come as either.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type rawAttribute struct {
	PropertyID     flexID `json:"propertyId"`
	PID            flexID `json:"pid"`
	PropertyName   string `json:"propertyName"`
	ValueID        flexID `json:"valueId"`
	VID            flexID `json:"vid"`
	Value          string `json:"value"`
	ValueAlias     string `json:"valueAlias"`
	ImageURL       string `json:"imageUrl"`
	IsConfigurator bool   `json:"isConfigurator"`
}

type rawConfigurator struct {
	PropertyID flexID `json:"propertyId"`
	PID        flexID `json:"pid"`
	ValueID    flexID `json:"valueId"`
	VID        flexID `json:"vid"`
}

type rawVariant struct {
	ID            flexID            `json:"id"`
	Configurators []rawConfigurator `json:"configurators"`
	Price         decimal.Decimal   `json:"price"`
	Quantity      int               `json:"quantity"`
}

type rawProduct struct {
	ID         flexID         `json:"id"`
	Title      string         `json:"title"`
	Currency   string         `json:"currency"`
	Attributes []rawAttribute `json:"attributes"`
	Variants   []rawVariant   `json:"variants"`
}

type rawCartLine struct {
	ID        flexID                 `json:"id"`
	ProductID flexID                 `json:"productId"`
	Price     decimal.Decimal        `json:"price"`
	Currency  string                 `json:"currency"`
	Quantity  int                    `json:"quantity"`
	Variant   *model.CartLineVariant `json:"variant"`
}

type rawCart struct {
	ID    flexID        `json:"id"`
	Items []rawCartLine `json:"items"`
}

func first(a, b flexID) string {
	if a != "" {
		return string(a)
	}
	return string(b)
}

// MapProduct converts the marketplace payload. The legacy pid/vid keys are
// used only when propertyId/valueId are absent. Currency is kept verbatim.
func MapProduct(p rawProduct) model.Product {
	out := model.Product{
		ID:         string(p.ID),
		Title:      strings.TrimSpace(p.Title),
		Currency:   p.Currency,
		Attributes: make([]model.Attribute, 0, len(p.Attributes)),
		Variants:   make([]model.ConcreteVariant, 0, len(p.Variants)),
	}
	for _, a := range p.Attributes {
		out.Attributes = append(out.Attributes, model.Attribute{
			PropertyID:     first(a.PropertyID, a.PID),
			PropertyName:   a.PropertyName,
			ValueID:        first(a.ValueID, a.VID),
			Value:          a.Value,
			ValueAlias:     a.ValueAlias,
			ImageURL:       a.ImageURL,
			IsConfigurator: a.IsConfigurator,
		})
	}
	for _, v := range p.Variants {
		cv := model.ConcreteVariant{
			ID:            string(v.ID),
			Configurators: make([]model.Configurator, 0, len(v.Configurators)),
			Price:         v.Price,
			Quantity:      v.Quantity,
		}
		for _, c := range v.Configurators {
			cv.Configurators = append(cv.Configurators, model.Configurator{
				PropertyID: first(c.PropertyID, c.PID),
				ValueID:    first(c.ValueID, c.VID),
			})
		}
		out.Variants = append(out.Variants, cv)
	}
	return out
}

// MapCart converts cart items to CartLines.
func MapCart(c rawCart) []model.CartLine {
	lines := make([]model.CartLine, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, model.CartLine{
			ID:        string(it.ID),
			ProductID: string(it.ProductID),
			Price:     it.Price,
			Currency:  it.Currency,
			Quantity:  it.Quantity,
			Variant:   it.Variant,
		})
	}
	return lines
}
