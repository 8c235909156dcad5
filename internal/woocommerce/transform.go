package woocommerce

import (
	"strconv"
	"strings"

	"quickview-proxy/internal/catalog"
	"quickview-proxy/internal/model"
)

// ToRawProduct maps a Store API product and its variation documents onto the
// catalog's raw shape, so WooCommerce and Shopify products normalize identically.
//
// Attributes with has_variations become explicit options (options_with_values).
// Variation attribute slugs are mapped back to term names; a slug with no matching
// term is used verbatim and an empty slug ("any") stays empty.
// A product without variations is its own single variant.
func ToRawProduct(p *WooProduct, variations map[int]*WooProduct) *catalog.RawProduct {
	raw := &catalog.RawProduct{
		ID:          catalog.FlexID(strconv.Itoa(p.ID)),
		Handle:      p.Slug,
		Title:       p.Name,
		Description: p.Description,
		Price:       catalog.FlexPrice(model.ParseMinorUnits(p.Prices.Price)),
	}
	for _, img := range p.Images {
		if img.Src != "" {
			raw.Images = append(raw.Images, catalog.FlexImage(img.Src))
		}
	}

	var attrs []WooAttribute
	for _, a := range p.Attributes {
		if a.HasVariations {
			attrs = append(attrs, a)
		}
	}
	for _, a := range attrs {
		opt := catalog.RawOption{Name: a.Name}
		for _, t := range a.Terms {
			opt.Values = append(opt.Values, t.Name)
		}
		raw.OptionsWithValues = append(raw.OptionsWithValues, opt)
	}

	if len(p.Variations) == 0 {
		raw.Variants = []catalog.RawVariant{{
			ID:        raw.ID,
			Title:     p.Name,
			Price:     raw.Price,
			Available: p.IsInStock,
		}}
		return raw
	}

	for _, ref := range p.Variations {
		rv := catalog.RawVariant{
			ID:      catalog.FlexID(strconv.Itoa(ref.ID)),
			Options: variationValues(attrs, ref.Attributes),
			Price:   raw.Price,
		}
		if v, ok := variations[ref.ID]; ok && v != nil {
			rv.Title = v.Name
			rv.Price = catalog.FlexPrice(model.ParseMinorUnits(v.Prices.Price))
			rv.Available = v.IsInStock && v.IsPurchable
		}
		raw.Variants = append(raw.Variants, rv)
	}
	return raw
}

// variationValues orders a variation's attribute values by the product's option order.
func variationValues(attrs []WooAttribute, chosen []WooVariationAttrib) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		for _, c := range chosen {
			if !attributeMatches(a, c.Name) {
				continue
			}
			out[i] = termName(a, c.Value)
			break
		}
	}
	return out
}

func attributeMatches(a WooAttribute, name string) bool {
	return strings.EqualFold(a.Name, name) ||
		(a.Taxonomy != "" && strings.EqualFold(a.Taxonomy, name))
}

func termName(a WooAttribute, slug string) string {
	if slug == "" {
		return ""
	}
	for _, t := range a.Terms {
		if t.Slug == slug {
			return t.Name
		}
	}
	return slug
}

// ToCartState converts a Store API cart response.
func ToCartState(cart *WooCartResponse, cartToken string) *model.CartState {
	state := &model.CartState{
		Token:      cartToken,
		ItemCount:  cart.ItemsCount,
		TotalPrice: model.ParseMinorUnits(cart.Totals.TotalPrice),
		Currency:   cart.Totals.CurrencyCode,
		Items:      make([]model.CartLine, 0, len(cart.Items)),
	}

	count := 0
	for _, item := range cart.Items {
		state.Items = append(state.Items, model.CartLine{
			VariantID: strconv.Itoa(item.ID),
			Title:     item.Name,
			Quantity:  item.Quantity,
			Price:     model.ParseMinorUnits(item.Prices.Price),
		})
		count += item.Quantity
	}
	if state.ItemCount == 0 {
		state.ItemCount = count
	}
	return state
}
