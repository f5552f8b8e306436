package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs the validate tags of req and reports the first failure
// using the JSON field path, e.g. "selectedIds[0] is required".
func checkStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "max":
		return fmt.Errorf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

// Validate checks that OpenViewRequest has all required fields.
func (r *OpenViewRequest) Validate() error {
	return checkStruct(r)
}

// Validate checks that SelectRequest has all required fields.
func (r *SelectRequest) Validate() error {
	return checkStruct(r)
}

// Validate checks that exactly one line source is given and inline lines are well formed.
func (r *BreakdownRequest) Validate() error {
	if r.CartID != "" && len(r.Lines) > 0 {
		return fmt.Errorf("cartId and lines are mutually exclusive")
	}
	if r.CartID == "" && r.Lines == nil {
		return fmt.Errorf("cartId or lines is required")
	}
	if err := checkStruct(r); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(r.Lines))
	for i, l := range r.Lines {
		if l.ID == "" {
			return fmt.Errorf("lines[%d].id is required", i)
		}
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("lines[%d].id %q is duplicated", i, l.ID)
		}
		seen[l.ID] = struct{}{}
		if l.Quantity < 0 {
			return fmt.Errorf("lines[%d].quantity must not be negative", i)
		}
		if l.Price.IsNegative() {
			return fmt.Errorf("lines[%d].price must not be negative", i)
		}
	}
	return nil
}
