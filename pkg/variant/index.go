// Package variant turns a product's flat attribute list into selectable option
// groups and resolves a selection to a concrete, priced variant.
package variant

import "github.com/Checker-Finance/storefront/pkg/model"

// Index is the ordered set of option groups for one product.
// Groups are keyed by display name (PropertyName), not by PropertyID: two
// attributes sharing an id but differing in name casing land in different groups.
type Index struct {
	groups []model.OptionGroup
	byName map[string]int
}

// BuildGroups derives option groups from configurator attributes.
// Non-configurator attributes are specifications and are skipped. Within a
// group, options are deduplicated by ValueID and the first occurrence wins.
// Group and option order follow first appearance. attrs is not modified.
func BuildGroups(attrs []model.Attribute) Index {
	idx := Index{byName: make(map[string]int)}
	seen := make(map[string]map[string]struct{})

	for _, a := range attrs {
		if !a.IsConfigurator {
			continue
		}
		pos, ok := idx.byName[a.PropertyName]
		if !ok {
			pos = len(idx.groups)
			idx.byName[a.PropertyName] = pos
			idx.groups = append(idx.groups, model.OptionGroup{
				PropertyID:   a.PropertyID,
				PropertyName: a.PropertyName,
			})
			seen[a.PropertyName] = make(map[string]struct{})
		}
		if _, dup := seen[a.PropertyName][a.ValueID]; dup {
			continue
		}
		seen[a.PropertyName][a.ValueID] = struct{}{}
		idx.groups[pos].Options = append(idx.groups[pos].Options, model.Option{
			ValueID:    a.ValueID,
			Value:      a.Value,
			ValueAlias: a.ValueAlias,
			ImageURL:   a.ImageURL,
		})
	}
	return idx
}

// Len returns the number of groups.
func (i Index) Len() int { return len(i.groups) }

// Groups returns the groups in display order. The slice is a copy.
func (i Index) Groups() []model.OptionGroup {
	out := make([]model.OptionGroup, len(i.groups))
	for n, g := range i.groups {
		g.Options = append([]model.Option(nil), g.Options...)
		out[n] = g
	}
	return out
}

// Group looks a group up by its display name.
func (i Index) Group(name string) (model.OptionGroup, bool) {
	pos, ok := i.byName[name]
	if !ok {
		return model.OptionGroup{}, false
	}
	return i.groups[pos], true
}

// hasOption reports whether any group for propertyID offers valueID.
// More than one group can share a PropertyID when names differ only in casing.
func (i Index) hasOption(propertyID, valueID string) (propertyKnown, valueKnown bool) {
	for _, g := range i.groups {
		if g.PropertyID != propertyID {
			continue
		}
		propertyKnown = true
		for _, o := range g.Options {
			if o.ValueID == valueID {
				return true, true
			}
		}
	}
	return propertyKnown, false
}
