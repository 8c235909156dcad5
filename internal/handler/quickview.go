package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"quickview-proxy/internal/model"
	"quickview-proxy/internal/pagecfg"
	"quickview-proxy/internal/quickview"
)

// openRequest is the body of POST /quick-view.
// product and upsell_product are the page's embedded JSON documents.
type openRequest struct {
	Handle        string          `json:"handle,omitempty"`
	Product       json.RawMessage `json:"product,omitempty"`
	UpsellProduct json.RawMessage `json:"upsell_product,omitempty"`
}

// selectRequest is the body of PUT /quick-view/{id}/options.
type selectRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// handleOpen opens a quick-view for the shopper.
// POST /quick-view
func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopper := shopperToken(w, r)

	var req openRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "opening quick view",
		slog.String("handle", req.Handle),
		slog.Bool("embedded", len(req.Product) > 0),
	)

	view, err := h.svc.Open(ctx, quickview.OpenRequest{
		Shopper:       shopper,
		Handle:        req.Handle,
		Product:       req.Product,
		UpsellProduct: req.UpsellProduct,
		Rule:          h.ruleFor(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, view)
}

// ruleFor returns the trigger rule in force for the request.
func (h *Handler) ruleFor(r *http.Request) *model.TriggerRule {
	if cfg := pagecfg.FromContext(r.Context()); cfg != nil {
		return cfg.Rule
	}
	return h.defaults
}

// handleGet returns the session's current view.
// GET /quick-view/{id}
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.View(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// handleSelect applies one option change.
// PUT /quick-view/{id}/options
func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		h.writeError(w, r, model.NewValidationError("name", "option name required"))
		return
	}

	view, err := h.svc.Select(id, req.Name, req.Value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// handleSubmit adds the resolved variant to the cart.
// POST /quick-view/{id}/submit
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	h.logger.InfoContext(ctx, "submitting quick view", slog.String("session_id", id))

	res, err := h.svc.Submit(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if res.Cart != nil && res.Cart.Token != "" {
		w.Header().Set(CartTokenHeader, res.Cart.Token)
	}
	h.writeJSON(w, http.StatusOK, res)
}

// handleClose discards the session.
// DELETE /quick-view/{id}
func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
