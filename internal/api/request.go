package api

import "github.com/Checker-Finance/storefront/pkg/model"

// OpenViewRequest starts a product view.
type OpenViewRequest struct {
	ProductID string `json:"productId" validate:"required,max=128"`
}

// SelectRequest picks one option of one axis.
type SelectRequest struct {
	PropertyID string `json:"propertyId" validate:"required,max=128"`
	ValueID    string `json:"valueId" validate:"required,max=128"`
}

// BreakdownRequest prices a stored cart (cartId) or inline lines.
// Omitting selectedIds selects every line; [] selects none.
type BreakdownRequest struct {
	CartID      string           `json:"cartId" validate:"omitempty,max=128"`
	Lines       []model.CartLine `json:"lines"`
	SelectedIDs []string         `json:"selectedIds" validate:"omitempty,dive,required"`
}
