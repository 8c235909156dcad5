// Package model defines the normalized storefront types shared by every layer of the
// quick-view core: products, options, variants, selections, trigger rules and the
// cart state returned by storefront platforms.
package model

// Product is a normalized storefront product.
// Immutable once loaded for a quick-view session.
type Product struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Options     []Option  `json:"options"`
	Variants    []Variant `json:"variants"`
	Price       int64     `json:"price"` // Base price in minor units
	Media       []string  `json:"media,omitempty"`
}

// Option is a named product dimension (e.g. Color) with values in display order.
type Option struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Variant is one purchasable configuration of a product.
// Options has the same length and positional order as Product.Options.
type Variant struct {
	ID        string   `json:"id"`
	Title     string   `json:"title,omitempty"`
	Options   []string `json:"options"`
	Price     int64    `json:"price"`
	Available bool     `json:"available"`
}

// FirstMedia returns the lead image reference, or "" when the product has none.
func (p *Product) FirstMedia() string {
	if len(p.Media) == 0 {
		return ""
	}
	return p.Media[0]
}

// Configurable reports whether the product exposes any option controls.
func (p *Product) Configurable() bool {
	return len(p.Options) > 0
}

// Selection maps option name to the chosen value.
type Selection map[string]string

// Clone returns an independent copy of the selection.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// TriggerRule configures the promotional auto-add.
// Color and Size are compared case-insensitively against the resolved variant's values.
type TriggerRule struct {
	Color       string    `json:"color"`
	Size        string    `json:"size"`
	SizeAliases []string  `json:"size_aliases,omitempty"`
	Upsell      UpsellRef `json:"upsell"`
}

// UpsellRef points at the product added when the rule fires.
// An embedded Product takes precedence over fetching by Handle.
type UpsellRef struct {
	Handle  string   `json:"handle,omitempty"`
	Product *Product `json:"product,omitempty"`
}

// IsZero reports whether the reference names no product at all.
func (u UpsellRef) IsZero() bool {
	return u.Handle == "" && u.Product == nil
}

// Enabled reports whether every member needed to fire the rule is present.
// A nil rule is never enabled.
func (r *TriggerRule) Enabled() bool {
	return r != nil && r.Color != "" && r.Size != "" && !r.Upsell.IsZero()
}

// CartState is what a storefront reports back after a cart mutation.
type CartState struct {
	Token      string     `json:"token,omitempty"`
	ItemCount  int        `json:"item_count"`
	TotalPrice int64      `json:"total_price"`
	Currency   string     `json:"currency,omitempty"`
	Items      []CartLine `json:"items"`
}

// CartLine is a single line in a storefront cart.
type CartLine struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id,omitempty"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}
