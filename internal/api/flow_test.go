package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/rates"
	"github.com/Checker-Finance/storefront/internal/storefront"
	"github.com/Checker-Finance/storefront/pkg/model"
)

type productStub map[string]model.Product

func (p productStub) GetProduct(_ context.Context, id string) (model.Product, error) {
	if prod, ok := p[id]; ok {
		return prod, nil
	}
	return model.Product{}, errors.New("unknown product")
}

type bookStub struct{ table *rates.Table }

func (b bookStub) Current() *rates.Table { return b.table }

func TestFlow_ViewSelectAndBreakdown(t *testing.T) {
	products := productStub{"p1": {
		ID:       "p1",
		Currency: "USD",
		Attributes: []model.Attribute{
			{PropertyID: "1", PropertyName: "Color", ValueID: "10", Value: "Red", IsConfigurator: true},
			{PropertyID: "1", PropertyName: "Color", ValueID: "11", Value: "Blue", IsConfigurator: true},
		},
		Variants: []model.ConcreteVariant{
			{ID: "v1", Configurators: []model.Configurator{{PropertyID: "1", ValueID: "10"}}, Price: decimal.RequireFromString("19.99"), Quantity: 4},
			{ID: "v2", Configurators: []model.Configurator{{PropertyID: "1", ValueID: "11"}}, Price: decimal.NewFromInt(21), Quantity: 1},
		},
	}}
	svc := storefront.NewService(zap.NewNop(), products, nil, bookStub{table: sampleTable()}, nil, nil, nil, storefront.Config{})
	app := fiber.New()
	RegisterRoutes(app, nil, nil, NewStorefrontHandler(zap.NewNop(), svc, nil))

	resp, data := doRequest(t, app, http.MethodPost, "/api/v1/views", `{"productId":"p1"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	view := decode(t, data)
	viewID := view["viewId"].(string)
	assert.Equal(t, "$19.99", view["displayPrice"])

	resp, data = doRequest(t, app, http.MethodPost, "/api/v1/views/"+viewID+"/selection", `{"propertyId":"1","valueId":"11"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	view = decode(t, data)
	assert.Equal(t, "v2", view["resolution"].(map[string]any)["variantId"])

	resp, _ = doRequest(t, app, http.MethodPost, "/api/v1/views/"+viewID+"/selection", `{"propertyId":"1","valueId":"12"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, data = doRequest(t, app, http.MethodPost, "/api/v1/cart/breakdown",
		`{"lines":[{"id":"a","price":"100","currency":"元","quantity":1},{"id":"b","price":"6","currency":"$","quantity":1},{"id":"c","price":"9","currency":"USD","quantity":1}],"selectedIds":["a","b"]}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	b := decode(t, data)
	assert.Equal(t, "500000", b["subtotal"])
	assert.Equal(t, "7500", b["serviceFee"])
	assert.Equal(t, "355250", b["deposit"])
	assert.Equal(t, false, b["ratesPending"])
	assert.Equal(t, "355,250đ", b["formatted"].(map[string]any)["deposit"])

	resp, _ = doRequest(t, app, http.MethodPost, "/api/v1/cart/breakdown", `{"cartId":"c1"}`)
	assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
}
