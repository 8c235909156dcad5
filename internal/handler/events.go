package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"quickview-proxy/internal/model"
)

// CartRefreshEvent is the event name listeners subscribe to.
const CartRefreshEvent = "cart:refresh"

// keepAliveInterval keeps idle event streams open through proxies.
const keepAliveInterval = 25 * time.Second

// handleCartEvents streams cart-changed signals for one cart session as
// Server-Sent Events. EventSource cannot set headers, so the token may also
// come as the cart_token query parameter.
// GET /cart/events
func (h *Handler) handleCartEvents(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(CartTokenHeader)
	if token == "" {
		token = r.URL.Query().Get("cart_token")
	}
	if token == "" {
		h.writeError(w, r, model.NewValidationError("cart_token", "required"))
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	rc.SetWriteDeadline(time.Time{})

	signals, cancel := h.events.Subscribe(token)
	defer cancel()
	h.logger.Debug("cart event stream opened",
		slog.Int("listeners", h.events.Listeners(token)))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("event stream not flushable", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-signals:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: {}\n\n", CartRefreshEvent); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
