package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_FieldPaths(t *testing.T) {
	err := (&OpenViewRequest{ProductID: strings.Repeat("x", 129)}).Validate()
	require.Error(t, err)
	assert.Equal(t, "productId must be at most 128 characters", err.Error())

	err = (&SelectRequest{ValueID: "v"}).Validate()
	require.Error(t, err)
	assert.Equal(t, "propertyId is required", err.Error())

	err = (&BreakdownRequest{CartID: "c1", SelectedIDs: []string{"a", ""}}).Validate()
	require.Error(t, err)
	assert.Equal(t, "selectedIds[1] is required", err.Error())
}

func TestValidate_Accepts(t *testing.T) {
	assert.NoError(t, (&OpenViewRequest{ProductID: "p1"}).Validate())
	assert.NoError(t, (&SelectRequest{PropertyID: "1", ValueID: "2"}).Validate())
	assert.NoError(t, (&BreakdownRequest{CartID: "c1", SelectedIDs: []string{}}).Validate())
}
