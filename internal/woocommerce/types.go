// Package woocommerce implements adapter.Storefront using the WooCommerce Store API.
// All WooCommerce-specific types, transforms, and HTTP client logic live here.
package woocommerce

// WooProduct is a Store API product (GET /products/{id}).
// Variation entries on a variable product carry only id and attribute slugs;
// prices and stock come from the variation documents themselves.
type WooProduct struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Type        string            `json:"type"` // simple, variable, variation, ...
	Description string            `json:"description"`
	Prices      WooPrices         `json:"prices"`
	Images      []WooImage        `json:"images"`
	Attributes  []WooAttribute    `json:"attributes"`
	Variations  []WooVariationRef `json:"variations"`
	IsInStock   bool              `json:"is_in_stock"`
	IsPurchable bool              `json:"is_purchasable"`
}

// WooPrices holds price fields as strings in minor units.
type WooPrices struct {
	Price             string `json:"price"`
	RegularPrice      string `json:"regular_price"`
	SalePrice         string `json:"sale_price"`
	CurrencyCode      string `json:"currency_code"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
}

// WooAttribute is a product attribute. Only attributes with has_variations drive
// option controls.
type WooAttribute struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Taxonomy      string    `json:"taxonomy"`
	HasVariations bool      `json:"has_variations"`
	Terms         []WooTerm `json:"terms"`
}

// WooTerm is one attribute value.
type WooTerm struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// WooVariationRef is a variation entry on a variable product.
type WooVariationRef struct {
	ID         int                  `json:"id"`
	Attributes []WooVariationAttrib `json:"attributes"`
}

// WooVariationAttrib pairs an attribute name with a term slug.
// An empty value means "any" for that attribute.
type WooVariationAttrib struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WooImage represents a product image.
type WooImage struct {
	ID   int    `json:"id"`
	Src  string `json:"src"`
	Name string `json:"name"`
	Alt  string `json:"alt"`
}

// WooCartResponse is returned by every Store API cart mutation.
type WooCartResponse struct {
	Items      []WooCartItem  `json:"items"`
	ItemsCount int            `json:"items_count"`
	Totals     WooTotals      `json:"totals"`
	Errors     []WooCartError `json:"errors,omitempty"`
}

// WooCartError is a cart-level notice (e.g. an item went out of stock).
type WooCartError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WooCartItem represents an item in the cart.
type WooCartItem struct {
	Key       string            `json:"key"` // Cart item key (not numeric ID)
	ID        int               `json:"id"`  // Product or variation ID
	Name      string            `json:"name"`
	Quantity  int               `json:"quantity"`
	Prices    WooCartItemPrices `json:"prices"`
	Variation []WooItemVariant  `json:"variation,omitempty"`
}

// WooItemVariant is a chosen attribute on a cart line.
type WooItemVariant struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// WooCartItemPrices holds price info for a cart item.
type WooCartItemPrices struct {
	Price string `json:"price"` // Current unit price in minor units
}

// WooTotals holds cart totals, all in minor units as strings.
type WooTotals struct {
	CurrencyCode string `json:"currency_code"`
	TotalItems   string `json:"total_items"`
	TotalPrice   string `json:"total_price"`
}

// WooAddItemRequest is the body of POST /cart/add-item.
type WooAddItemRequest struct {
	ID       int `json:"id"`
	Quantity int `json:"quantity"`
}

// WooErrorResponse is the Store API error envelope.
type WooErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

// nonceInfo holds nonce and cart token from a preflight request.
type nonceInfo struct {
	nonce     string
	cartToken string
}
