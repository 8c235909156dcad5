package woocommerce

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
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

// =============================================================================
// NONCE AUTHENTICATION STRATEGY
// =============================================================================
//
// The WooCommerce Store API requires a "nonce" for all mutation operations
// (POST, PUT, DELETE). It was designed for browser storefronts, not for a
// service adding items on a shopper's behalf.
//
// CURRENT STRATEGY: Preflight Every Mutation
//
// Before each add-item we make a GET /cart request to obtain a fresh nonce,
// then immediately use it:
//
//	primary add:  GET /cart → POST /cart/add-item     (2 calls)
//	upsell add:   GET /cart → POST /cart/add-item     (2 calls)
//	product load: GET /products/{id} [→ GET /products?type=variation]
//
// The adapter stays stateless and the nonce is always valid, at the cost of
// one extra round trip per add.
// =============================================================================

// storeAPIPath is the base path for WooCommerce Store API endpoints.
// Must include /wp-json prefix for proper routing.
const storeAPIPath = "/wp-json/wc/store/v1"

const userAgent = "Quickview-Proxy/1.0"

// maxVariations bounds the variation listing; Store API caps per_page at 100.
const maxVariations = 100

// Config holds WooCommerce-specific adapter configuration.
type Config struct {
	StoreURL string
	Timeout  time.Duration // Default 30s

	// HTTPClient overrides the fingerprinting client (tests).
	HTTPClient *http.Client
}

// Client implements adapter.Storefront for WooCommerce stores using the Store API.
// Requires WooCommerce Blocks (bundled since WC 6.9) for the Store API endpoints.
//
// The Store API uses Cart-Token headers for session management and Nonce headers
// for mutation authentication. See NONCE AUTHENTICATION STRATEGY above.
type Client struct {
	httpClient *http.Client
	storeURL   string
}

// generateCartToken creates a random cart token for a new session.
// Without one, WooCommerce may bind the cart to a shared server session.
func generateCartToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// New creates a WooCommerce client with the given configuration.
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
		// Chrome TLS fingerprint to avoid JA3-based rate limiting.
		// See internal/transport for rationale.
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

// FetchProduct loads a product by numeric id or slug, plus its variation documents,
// and normalizes it.
func (c *Client) FetchProduct(ctx context.Context, ref string) (*model.Product, error) {
	if ref == "" {
		return nil, model.NewValidationError("product", "id or slug required")
	}

	product, err := c.getProduct(ctx, ref)
	if err != nil {
		return nil, model.NewProductFetchError(ref, err)
	}

	var variations map[int]*WooProduct
	if len(product.Variations) > 0 {
		variations, err = c.getVariations(ctx, product.ID)
		if err != nil {
			return nil, model.NewProductFetchError(ref, err)
		}
	}

	return catalog.Normalize(ToRawProduct(product, variations))
}

// getProduct resolves ref as a numeric id, else as a slug.
func (c *Client) getProduct(ctx context.Context, ref string) (*WooProduct, error) {
	if _, err := strconv.Atoi(ref); err == nil {
		var p WooProduct
		if err := c.getJSON(ctx, "/products/"+ref, nil, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}

	var list []WooProduct
	if err := c.getJSON(ctx, "/products", url.Values{"slug": {ref}}, &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, model.NewNotFoundError("product")
	}
	return &list[0], nil
}

// getVariations lists the variation documents of a variable product, keyed by id.
func (c *Client) getVariations(ctx context.Context, parentID int) (map[int]*WooProduct, error) {
	q := url.Values{
		"type":     {"variation"},
		"parent":   {strconv.Itoa(parentID)},
		"per_page": {strconv.Itoa(maxVariations)},
	}

	var list []WooProduct
	if err := c.getJSON(ctx, "/products", q, &list); err != nil {
		return nil, err
	}

	out := make(map[int]*WooProduct, len(list))
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.storeURL + storeAPIPath + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setStoreAPIHeaders(req, "", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("WooCommerce", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return c.parseErrorResponse(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// AddToCart adds a product or variation via POST /cart/add-item.
// A shopper without a cart token gets a freshly generated one.
func (c *Client) AddToCart(ctx context.Context, cartToken, variantID string, quantity int) (*model.CartState, error) {
	id, err := strconv.Atoi(variantID)
	if err != nil {
		return nil, model.NewCartAddError(variantID, model.NewValidationError("variant_id", "must be numeric"))
	}
	if cartToken == "" {
		cartToken = generateCartToken()
	}

	ni, err := c.fetchNonce(ctx, cartToken)
	if err != nil {
		return nil, model.NewCartAddError(variantID, err)
	}

	body, err := json.Marshal(WooAddItemRequest{ID: id, Quantity: quantity})
	if err != nil {
		return nil, fmt.Errorf("marshaling add-item request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.storeURL+storeAPIPath+"/cart/add-item", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating add-item request: %w", err)
	}
	c.setStoreAPIHeaders(req, ni.cartToken, ni.nonce)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewCartAddError(variantID, model.NewUpstreamError("WooCommerce", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewCartAddError(variantID, fmt.Errorf("reading add-item response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return nil, model.NewCartAddError(variantID, c.parseErrorResponse(resp.StatusCode, respBody))
	}

	var cart WooCartResponse
	if err := json.Unmarshal(respBody, &cart); err != nil {
		return nil, model.NewCartAddError(variantID, fmt.Errorf("parsing cart response: %w", err))
	}

	return ToCartState(&cart, ni.cartToken), nil
}

// fetchNonce performs a preflight GET /cart request to obtain a fresh nonce.
// The Store API returns nonce in response headers on every request.
func (c *Client) fetchNonce(ctx context.Context, cartToken string) (*nonceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.storeURL+storeAPIPath+"/cart", nil)
	if err != nil {
		return nil, fmt.Errorf("creating nonce request: %w", err)
	}

	c.setStoreAPIHeaders(req, cartToken, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError("WooCommerce", err)
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		if resp.StatusCode == 429 {
			return nil, model.NewRateLimitError("WooCommerce")
		}
		return nil, model.NewUpstreamError("WooCommerce",
			fmt.Errorf("nonce preflight failed with status %d", resp.StatusCode))
	}

	nonce := resp.Header.Get("Nonce")
	if nonce == "" {
		return nil, model.NewUpstreamError("WooCommerce",
			fmt.Errorf("no nonce returned from Store API"))
	}

	// Keep our token; WooCommerce may echo a stale session token.
	returnedToken := cartToken
	if returnedToken == "" {
		returnedToken = resp.Header.Get("Cart-Token")
	}

	return &nonceInfo{
		nonce:     nonce,
		cartToken: returnedToken,
	}, nil
}

// setStoreAPIHeaders sets the common headers.
// Store API uses Cart-Token for session and Nonce for mutation auth.
func (c *Client) setStoreAPIHeaders(req *http.Request, cartToken, nonce string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	if cartToken != "" {
		req.Header.Set("Cart-Token", cartToken)
	}
	if nonce != "" {
		req.Header.Set("Nonce", nonce)
	}
}

// parseErrorResponse converts WooCommerce error to APIError.
func (c *Client) parseErrorResponse(statusCode int, body []byte) error {
	var wcErr WooErrorResponse
	json.Unmarshal(body, &wcErr) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError("product")
	case 400:
		msg := wcErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case 429:
		return model.NewRateLimitError("WooCommerce")
	default:
		return model.NewUpstreamError("WooCommerce",
			fmt.Errorf("status %d: %s - %s", statusCode, wcErr.Code, wcErr.Message))
	}
}

// Verify Client implements adapter.Storefront at compile time.
var _ adapter.Storefront = (*Client)(nil)
