// Package catalog reads products and carts from the marketplace API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/httpclient"
	"github.com/Checker-Finance/storefront/pkg/model"
)

// Upstream names the marketplace API in logs, metrics and limiter keys.
const Upstream = "catalog"

// ErrNotFound is returned when the product or cart does not exist.
var ErrNotFound = errors.New("catalog: not found")

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ErrorHandler maps marketplace 4xx responses; 404 becomes ErrNotFound.
func ErrorHandler(logger *zap.Logger) func(status int, body []byte) error {
	return func(status int, body []byte) error {
		var e apiError
		_ = json.Unmarshal(body, &e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		if status == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		logger.Warn("catalog.client_error", zap.Int("status", status), zap.String("message", msg))
		return fmt.Errorf("catalog returned %d: %s", status, msg)
	}
}

// Client fetches product and cart payloads.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
}

// NewClient builds a Client over exec for the API rooted at baseURL.
func NewClient(logger *zap.Logger, exec *httpclient.Executor, baseURL string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:  logger,
		exec:    exec,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.exec.DoJSON(ctx, req, Upstream, out)
}

// GetProduct fetches GET /v1/products/{id}.
func (c *Client) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	if productID == "" {
		return model.Product{}, errors.New("product id is required")
	}
	var raw rawProduct
	if err := c.get(ctx, "/v1/products/"+url.PathEscape(productID), &raw); err != nil {
		return model.Product{}, err
	}
	p := MapProduct(raw)
	if p.ID == "" {
		p.ID = productID
	}
	c.logger.Debug("catalog.product_fetched",
		zap.String("product_id", p.ID),
		zap.Int("attributes", len(p.Attributes)),
		zap.Int("variants", len(p.Variants)))
	return p, nil
}

// GetCart fetches GET /v1/carts/{id}.
func (c *Client) GetCart(ctx context.Context, cartID string) ([]model.CartLine, error) {
	if cartID == "" {
		return nil, errors.New("cart id is required")
	}
	var raw rawCart
	if err := c.get(ctx, "/v1/carts/"+url.PathEscape(cartID), &raw); err != nil {
		return nil, err
	}
	return MapCart(raw), nil
}
