package variant

import "github.com/Checker-Finance/storefront/pkg/model"

// Resolve finds the first variant, in list order, that carries every
// (propertyId, valueId) pair of sel. The match is conjunctive: a variant may
// pin axes that sel does not mention. Out-of-stock variants still resolve.
func Resolve(sel model.Selection, variants []model.ConcreteVariant) (model.ConcreteVariant, bool) {
	for _, v := range variants {
		if matches(sel, v) {
			return v, true
		}
	}
	return model.ConcreteVariant{}, false
}

func matches(sel model.Selection, v model.ConcreteVariant) bool {
	for propertyID, valueID := range sel {
		if !v.Has(propertyID, valueID) {
			return false
		}
	}
	return true
}

// VariantImage picks the configurator attribute that represents the current
// selection visually: the first one, in attribute order, whose pair is selected
// and which carries an image.
func VariantImage(sel model.Selection, attrs []model.Attribute) *model.Attribute {
	for _, a := range attrs {
		if !a.IsConfigurator || a.ImageURL == "" {
			continue
		}
		if valueID, ok := sel[a.PropertyID]; ok && valueID == a.ValueID {
			img := a
			return &img
		}
	}
	return nil
}
