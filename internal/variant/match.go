// Package variant resolves option selections to concrete purchasable variants.
//
// Matching is positional and exact: the value chosen for options[i] must equal
// variant.Options[i] byte for byte. Case folding belongs to the trigger rule only.
package variant

import "quickview-proxy/internal/model"

// Match returns the first variant whose option tuple equals the selection's values
// taken in option order. A partial selection never matches.
// Duplicate tuples are malformed catalog data; list order decides.
func Match(options []model.Option, variants []model.Variant, sel model.Selection) (*model.Variant, bool) {
	if len(options) == 0 {
		return nil, false
	}

	want := make([]string, len(options))
	for i, opt := range options {
		v, ok := sel[opt.Name]
		if !ok {
			return nil, false
		}
		want[i] = v
	}

	for i := range variants {
		if tupleEqual(variants[i].Options, want) {
			return &variants[i], true
		}
	}
	return nil, false
}

// Initial picks the variant a fresh quick-view starts on:
// the first available one, else the first in list order.
func Initial(variants []model.Variant) (*model.Variant, bool) {
	for i := range variants {
		if variants[i].Available {
			return &variants[i], true
		}
	}
	if len(variants) > 0 {
		return &variants[0], true
	}
	return nil, false
}

// SelectionFor builds the complete selection that describes v.
func SelectionFor(options []model.Option, v *model.Variant) model.Selection {
	sel := make(model.Selection, len(options))
	for i, opt := range options {
		if i < len(v.Options) {
			sel[opt.Name] = v.Options[i]
		} else {
			sel[opt.Name] = ""
		}
	}
	return sel
}

func tupleEqual(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
