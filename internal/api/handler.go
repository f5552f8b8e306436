package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/catalog"
	"github.com/Checker-Finance/storefront/internal/rates"
	"github.com/Checker-Finance/storefront/internal/storefront"
	"github.com/Checker-Finance/storefront/pkg/currency"
	"github.com/Checker-Finance/storefront/pkg/variant"
)

// StorefrontService defines the controller operations used by the handler.
type StorefrontService interface {
	OpenView(ctx context.Context, productID string) (storefront.View, error)
	Select(ctx context.Context, viewID, propertyID, valueID string) (storefront.View, error)
	GetView(viewID string) (storefront.View, error)
	CloseView(viewID string) bool
	Breakdown(ctx context.Context, req storefront.BreakdownRequest) (storefront.Breakdown, error)
	FormatPrice(amount decimal.Decimal, currency string) string
	Rates() *rates.Table
}

// RateRefresher triggers an out-of-band rate refresh.
type RateRefresher interface {
	RefreshNow(ctx context.Context) (*rates.Table, error)
}

// StorefrontHandler handles HTTP API requests for views, carts and rates.
type StorefrontHandler struct {
	logger    *zap.Logger
	service   StorefrontService
	refresher RateRefresher
}

// NewStorefrontHandler creates a new StorefrontHandler. refresher may be nil,
// which disables manual refresh.
func NewStorefrontHandler(logger *zap.Logger, service StorefrontService, refresher RateRefresher) *StorefrontHandler {
	return &StorefrontHandler{
		logger:    logger,
		service:   service,
		refresher: refresher,
	}
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storefront.ErrViewNotFound), errors.Is(err, catalog.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, variant.ErrUnknownProperty), errors.Is(err, variant.ErrUnknownOption):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, storefront.ErrNoCartSource):
		return fiber.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusBadGateway
	}
}

// OpenView handles POST /views.
func (h *StorefrontHandler) OpenView(c *fiber.Ctx) error {
	var req OpenViewRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	view, err := h.service.OpenView(c.UserContext(), req.ProductID)
	if err != nil {
		h.logger.Error("storefront.open_view.failed",
			zap.String("product_id", req.ProductID),
			zap.Error(err))
		return errorJSON(c, statusFor(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GetView handles GET /views/:viewId.
func (h *StorefrontHandler) GetView(c *fiber.Ctx) error {
	view, err := h.service.GetView(c.Params("viewId"))
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return c.JSON(view)
}

// Select handles POST /views/:viewId/selection.
func (h *StorefrontHandler) Select(c *fiber.Ctx) error {
	var req SelectRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	view, err := h.service.Select(c.UserContext(), c.Params("viewId"), req.PropertyID, req.ValueID)
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return c.JSON(view)
}

// CloseView handles DELETE /views/:viewId.
func (h *StorefrontHandler) CloseView(c *fiber.Ctx) error {
	if !h.service.CloseView(c.Params("viewId")) {
		return errorJSON(c, fiber.StatusNotFound, storefront.ErrViewNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Breakdown handles POST /cart/breakdown.
func (h *StorefrontHandler) Breakdown(c *fiber.Ctx) error {
	var req BreakdownRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	b, err := h.service.Breakdown(c.UserContext(), storefront.BreakdownRequest{
		CartID:      req.CartID,
		Lines:       req.Lines,
		SelectedIDs: req.SelectedIDs,
	})
	if err != nil {
		h.logger.Error("storefront.breakdown.failed",
			zap.String("cart_id", req.CartID),
			zap.Error(err))
		return errorJSON(c, statusFor(err), err)
	}
	return c.JSON(b)
}

// Rates handles GET /rates.
func (h *StorefrontHandler) Rates(c *fiber.Ctx) error {
	return c.JSON(toRatesResponse(h.service.Rates()))
}

// RefreshRates handles POST /rates/refresh. A failed refresh still returns the
// table that stays in effect.
func (h *StorefrontHandler) RefreshRates(c *fiber.Ctx) error {
	if h.refresher == nil {
		return errorJSON(c, fiber.StatusNotImplemented, errors.New("rate refresh not configured"))
	}
	t, err := h.refresher.RefreshNow(c.UserContext())
	resp := toRatesResponse(t)
	if err != nil {
		resp.ErrorMsg = err.Error()
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}
	return c.JSON(resp)
}

// FormatPrice handles GET /prices/format?amount=&currency=.
func (h *StorefrontHandler) FormatPrice(c *fiber.Ctx) error {
	raw := c.Query("amount")
	if raw == "" {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("amount is required"))
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("amount must be a decimal number"))
	}
	cur := c.Query("currency")
	code, known := currency.Normalize(cur)
	return c.JSON(FormatResponse{
		Amount:    amount.String(),
		Currency:  cur,
		Code:      code,
		Known:     known,
		Formatted: h.service.FormatPrice(amount, cur),
	})
}
