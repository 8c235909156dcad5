// Shopify AJAX API wire types.
// Product documents are decoded by internal/catalog; only cart shapes live here.
package shopify

import "quickview-proxy/internal/catalog"

// addRequest is the body of POST /cart/add.js.
type addRequest struct {
	Items []addItem `json:"items"`
}

type addItem struct {
	ID       any `json:"id"` // number when the variant id is numeric
	Quantity int `json:"quantity"`
}

// addResponse is returned by POST /cart/add.js: the lines just added.
type addResponse struct {
	Items []cartLine `json:"items"`
}

// cartResponse is returned by GET /cart.js.
type cartResponse struct {
	Token      string            `json:"token"`
	ItemCount  int               `json:"item_count"`
	TotalPrice catalog.FlexPrice `json:"total_price"`
	Currency   string            `json:"currency"`
	Items      []cartLine        `json:"items"`
}

type cartLine struct {
	VariantID catalog.FlexID    `json:"variant_id"`
	ProductID catalog.FlexID    `json:"product_id"`
	Title     string            `json:"title"`
	Quantity  int               `json:"quantity"`
	Price     catalog.FlexPrice `json:"price"`
}

// errorResponse is Shopify's AJAX error body (422 on sold-out or invalid variant).
type errorResponse struct {
	Status      any    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}
