// Package adapter defines the interface for storefront platform integrations.
// Adapters translate platform-specific product and cart APIs to the normalized model.
package adapter

import (
	"context"

	"quickview-proxy/internal/model"
)

// Storefront abstracts the remote product and cart endpoints.
// Each platform (Shopify AJAX, WooCommerce Store API) provides its own implementation.
//
// Implementations report failures as *model.APIError: product loads as
// PRODUCT_FETCH_FAILED, cart mutations as CART_ADD_FAILED.
type Storefront interface {
	// FetchProduct loads a product by handle or id and normalizes it.
	// A *model.StructuralError may accompany a non-nil product; callers fall back to
	// single-variant mode in that case.
	FetchProduct(ctx context.Context, ref string) (*model.Product, error)

	// AddToCart adds quantity units of variantID to the shopper's cart.
	// cartToken identifies the shopper's cart session; "" lets the platform start one.
	AddToCart(ctx context.Context, cartToken, variantID string, quantity int) (*model.CartState, error)
}

