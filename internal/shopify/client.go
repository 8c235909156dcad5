// Package shopify implements adapter.Storefront against the Shopify AJAX API:
// product documents from /products/{handle}.js and cart mutations via /cart/add.js.
//
// The AJAX API is the storefront-facing surface: it needs no credentials, and the
// shopper's cart session travels in the "cart" cookie.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quickview-proxy/internal/adapter"
	"quickview-proxy/internal/catalog"
	"quickview-proxy/internal/model"
	"quickview-proxy/internal/transport"
)

const userAgent = "Quickview-Proxy/1.0"

// cartCookie carries the Shopify cart session.
const cartCookie = "cart"

// maxBody caps upstream response bodies.
const maxBody = 4 << 20

// Config holds Shopify-specific adapter configuration.
type Config struct {
	StoreURL string
	Timeout  time.Duration // Default 30s

	// HTTPClient overrides the fingerprinting client (tests).
	HTTPClient *http.Client
}

// Client implements adapter.Storefront for Shopify online stores.
type Client struct {
	httpClient *http.Client
	storeURL   string
}

// New creates a Shopify client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Chrome TLS fingerprint; see internal/transport.
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport.NewChromeTransport(timeout),
		}
	}

	return &Client{
		httpClient: httpClient,
		storeURL:   strings.TrimSuffix(cfg.StoreURL, "/"),
	}, nil
}

// FetchProduct loads /products/{handle}.js and normalizes it.
// A structural problem is returned alongside the usable product.
func (c *Client) FetchProduct(ctx context.Context, ref string) (*model.Product, error) {
	if ref == "" {
		return nil, model.NewValidationError("handle", "required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.storeURL+"/products/"+url.PathEscape(ref)+".js", nil)
	if err != nil {
		return nil, fmt.Errorf("creating product request: %w", err)
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewProductFetchError(ref, model.NewUpstreamError("Shopify", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, model.NewProductFetchError(ref, fmt.Errorf("reading product response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, model.NewProductFetchError(ref, model.NewNotFoundError("product"))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, model.NewProductFetchError(ref, model.NewRateLimitError("Shopify"))
	case resp.StatusCode >= 300:
		return nil, model.NewProductFetchError(ref, fmt.Errorf("status %d", resp.StatusCode))
	}

	product, err := catalog.Parse(body)
	if product == nil {
		return nil, model.NewProductFetchError(ref, err)
	}
	if product.Handle == "" {
		product.Handle = ref
	}
	return product, err
}

// AddToCart posts the variant to /cart/add.js, then reads /cart.js for totals.
func (c *Client) AddToCart(ctx context.Context, cartToken, variantID string, quantity int) (*model.CartState, error) {
	body, err := json.Marshal(addRequest{Items: []addItem{{ID: wireID(variantID), Quantity: quantity}}})
	if err != nil {
		return nil, fmt.Errorf("marshaling add request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.storeURL+"/cart/add.js", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating add request: %w", err)
	}
	c.setHeaders(req, cartToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewCartAddError(variantID, model.NewUpstreamError("Shopify", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, model.NewCartAddError(variantID, fmt.Errorf("reading add response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return nil, model.NewCartAddError(variantID, parseError(resp.StatusCode, respBody))
	}

	// A fresh session comes back as a Set-Cookie.
	token := cartToken
	for _, ck := range resp.Cookies() {
		if ck.Name == cartCookie && ck.Value != "" {
			token = ck.Value
		}
	}

	var added addResponse
	if err := json.Unmarshal(respBody, &added); err != nil {
		return nil, model.NewCartAddError(variantID, fmt.Errorf("parsing add response: %w", err))
	}

	// The add already landed; a failed cart read only costs the totals.
	cart, err := c.getCart(ctx, token)
	if err != nil {
		return cartFromLines(token, added.Items), nil
	}
	return cart, nil
}

// getCart reads the full cart for the session.
func (c *Client) getCart(ctx context.Context, cartToken string) (*model.CartState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storeURL+"/cart.js", nil)
	if err != nil {
		return nil, fmt.Errorf("creating cart request: %w", err)
	}
	c.setHeaders(req, cartToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError("Shopify", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, model.NewUpstreamError("Shopify", fmt.Errorf("cart status %d", resp.StatusCode))
	}

	var wire cartResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("parsing cart response: %w", err)
	}

	state := cartFromLines(cartToken, wire.Items)
	if wire.Token != "" {
		state.Token = wire.Token
	}
	state.ItemCount = wire.ItemCount
	state.TotalPrice = int64(wire.TotalPrice)
	state.Currency = wire.Currency
	return state, nil
}

func (c *Client) setHeaders(req *http.Request, cartToken string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if req.Method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	if cartToken != "" {
		req.AddCookie(&http.Cookie{Name: cartCookie, Value: cartToken})
	}
}

// parseError converts a Shopify AJAX error body into a diagnostic error.
func parseError(status int, body []byte) error {
	var e errorResponse
	json.Unmarshal(body, &e) // Best effort parse

	switch status {
	case http.StatusNotFound:
		return model.NewNotFoundError("variant")
	case http.StatusTooManyRequests:
		return model.NewRateLimitError("Shopify")
	}

	detail := e.Description
	if detail == "" {
		detail = e.Message
	}
	if detail == "" {
		return fmt.Errorf("status %d", status)
	}
	return fmt.Errorf("status %d: %s", status, detail)
}

func cartFromLines(token string, lines []cartLine) *model.CartState {
	state := &model.CartState{Token: token, Items: make([]model.CartLine, 0, len(lines))}
	for _, l := range lines {
		state.Items = append(state.Items, model.CartLine{
			VariantID: string(l.VariantID),
			ProductID: string(l.ProductID),
			Title:     l.Title,
			Quantity:  l.Quantity,
			Price:     int64(l.Price),
		})
		state.ItemCount += l.Quantity
		state.TotalPrice += int64(l.Price) * int64(l.Quantity)
	}
	return state
}

// wireID sends numeric variant ids as JSON numbers, which is what /cart/add.js expects.
func wireID(id string) any {
	if _, err := strconv.ParseUint(id, 10, 64); err == nil {
		return json.Number(id)
	}
	return id
}

// Verify Client implements adapter.Storefront at compile time.
var _ adapter.Storefront = (*Client)(nil)
