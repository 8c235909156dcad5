// Package handler provides HTTP handlers for the quick-view API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quickview-proxy/internal/cart"
	"quickview-proxy/internal/model"
	"quickview-proxy/internal/quickview"
)

// CartTokenHeader carries the shopper's cart session in both directions.
const CartTokenHeader = "Cart-Token"

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc      *quickview.Service
	events   *cart.Broadcaster
	defaults *model.TriggerRule
	logger   *slog.Logger
}

// New creates a new Handler.
// defaults is the service-level trigger rule used when a request carries no page
// configuration; it may be nil.
func New(svc *quickview.Service, events *cart.Broadcaster, defaults *model.TriggerRule, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		events:   events,
		defaults: defaults,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// REST transport - quick-view lifecycle
	mux.HandleFunc("POST /quick-view", h.handleOpen)
	mux.HandleFunc("GET /quick-view/{id}", h.handleGet)
	mux.HandleFunc("PUT /quick-view/{id}/options", h.handleSelect)
	mux.HandleFunc("POST /quick-view/{id}/submit", h.handleSubmit)
	mux.HandleFunc("DELETE /quick-view/{id}", h.handleClose)

	// Cart-changed signal for mini-cart listeners
	mux.HandleFunc("GET /cart/events", h.handleCartEvents)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Only the user-facing message is written; the wrapped cause goes to the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// toAPIError finds the APIError in err's chain, or wraps err as an internal error.
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewInternalError(err)
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies; embedded product documents fit well under it.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// shopperToken returns the request's cart token, minting one when absent.
// The token in effect is always echoed in the response header.
func shopperToken(w http.ResponseWriter, r *http.Request) string {
	token := r.Header.Get(CartTokenHeader)
	if token == "" {
		token = quickview.NewShopperID()
	}
	w.Header().Set(CartTokenHeader, token)
	return token
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}
