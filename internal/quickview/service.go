// Package quickview owns the quick-view session lifecycle: open a product, apply
// option changes, submit to the cart, close.
//
// Each session is an explicit object holding one selection.State; the Service keeps
// at most one live session per shopper. Opening a new quick-view tears the previous
// one down, and a submission already sent to the storefront is allowed to finish
// even if its session is closed underneath it.
package quickview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"quickview-proxy/internal/adapter"
	"quickview-proxy/internal/cart"
	"quickview-proxy/internal/catalog"
	"quickview-proxy/internal/model"
	"quickview-proxy/internal/selection"
)

// OpenRequest describes a quick-view to open.
// Product, when set, is the page's embedded product document and Handle is not
// fetched. UpsellProduct likewise embeds the upsell product for the rule.
type OpenRequest struct {
	Shopper       string
	Handle        string
	Product       json.RawMessage
	UpsellProduct json.RawMessage
	Rule          *model.TriggerRule
}

// View is the client-facing snapshot of a session.
type View struct {
	ID            string          `json:"id"`
	CartToken     string          `json:"cart_token"`
	Product       *model.Product  `json:"product"`
	Image         string          `json:"image,omitempty"` // lead media reference
	Selection     model.Selection `json:"selection"`
	Resolved      *model.Variant  `json:"resolved_variant"`
	DisplayPrice  int64           `json:"display_price"`
	CanSubmit     bool            `json:"can_submit"`
	Configurable  bool            `json:"configurable"`
	UpsellEnabled bool            `json:"upsell_enabled"`
}

// SubmitResult is a successful submission. Close is always true: the quick-view
// is done and the widget should dismiss it.
type SubmitResult struct {
	*cart.Result
	Close bool `json:"close"`
}

// Service coordinates sessions, the storefront and the cart sequencer.
type Service struct {
	store    adapter.Storefront
	seq      *cart.Sequencer
	registry *Registry
	logger   *slog.Logger
	newID    func() string
}

// NewService creates a Service.
func NewService(store adapter.Storefront, seq *cart.Sequencer, registry *Registry, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		seq:      seq,
		registry: registry,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// NewShopperID mints an identity for a shopper that arrived without a cart token.
func NewShopperID() string {
	return uuid.NewString()
}

// Open loads the product, initializes a fresh selection and registers the session.
// A product whose schema cannot drive option controls opens in implicit
// single-variant mode. If the product cannot be loaded no session is created.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*View, error) {
	if req.Shopper == "" {
		return nil, model.NewValidationError("cart_token", "required")
	}

	product, err := s.loadProduct(ctx, req)
	if err != nil {
		return nil, err
	}

	state := selection.New()
	if err := state.Init(product); err != nil {
		return nil, model.NewInternalError(err)
	}

	rule := s.captureRule(req)
	sess := newSession(s.newID(), req.Shopper, state, rule)

	if prev := s.registry.put(sess); prev != nil {
		s.logger.Debug("replaced open quick view",
			slog.String("previous_id", prev.id),
			slog.String("session_id", sess.id))
	}

	s.logger.Info("quick view opened",
		slog.String("session_id", sess.id),
		slog.String("product_id", product.ID),
		slog.Bool("configurable", product.Configurable()),
		slog.Bool("upsell_enabled", rule.Enabled()))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.viewLocked(), nil
}

// loadProduct prefers the embedded document over a storefront fetch.
func (s *Service) loadProduct(ctx context.Context, req OpenRequest) (*model.Product, error) {
	var (
		product *model.Product
		err     error
		ref     = req.Handle
	)

	switch {
	case len(req.Product) > 0:
		product, err = catalog.Parse(req.Product)
		if product == nil {
			return nil, model.NewValidationError("product", err.Error())
		}
		ref = product.ID
	case req.Handle != "":
		product, err = s.store.FetchProduct(ctx, req.Handle)
		if product == nil {
			if err == nil {
				err = model.NewNotFoundError("product")
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				err = model.NewProductFetchError(req.Handle, err)
			}
			s.logger.Warn("product fetch failed",
				slog.String("handle", req.Handle),
				slog.String("error", err.Error()))
			return nil, err
		}
	default:
		return nil, model.NewValidationError("product", "handle or product document required")
	}

	if err != nil {
		if !errors.Is(err, model.ErrStructural) {
			return nil, model.NewProductFetchError(ref, err)
		}
		s.logger.Warn("product schema unusable, falling back to single variant",
			slog.String("product", ref),
			slog.String("error", err.Error()))
	}
	return product, nil
}

// captureRule fixes the trigger rule in force for the session's lifetime.
// A malformed embedded upsell document is dropped in favor of the handle.
func (s *Service) captureRule(req OpenRequest) *model.TriggerRule {
	if req.Rule == nil {
		return nil
	}
	rule := *req.Rule
	rule.SizeAliases = append([]string(nil), req.Rule.SizeAliases...)

	if len(req.UpsellProduct) > 0 {
		p, err := catalog.Parse(req.UpsellProduct)
		if p == nil {
			s.logger.Warn("embedded upsell product ignored", slog.String("error", err.Error()))
		} else {
			rule.Upsell.Product = p
		}
	}
	return &rule
}

// View returns the current snapshot of a session.
func (s *Service) View(id string) (*View, error) {
	sess, ok := s.registry.get(id)
	if !ok {
		return nil, model.NewNotFoundError("quick view")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, model.NewNotFoundError("quick view")
	}
	return sess.viewLocked(), nil
}

// Select applies one option change event.
func (s *Service) Select(id, option, value string) (*View, error) {
	sess, ok := s.registry.get(id)
	if !ok {
		return nil, model.NewNotFoundError("quick view")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, model.NewNotFoundError("quick view")
	}

	if err := sess.state.Change(option, value); err != nil {
		if errors.Is(err, selection.ErrUnknownOption) {
			return nil, model.NewValidationError("option", err.Error())
		}
		return nil, model.NewInternalError(err)
	}
	return sess.viewLocked(), nil
}

// Submit adds the resolved variant (and possibly the upsell) to the shopper's cart.
// On success the session is closed. On failure it is left as it was so the shopper
// can retry.
func (s *Service) Submit(ctx context.Context, id string) (*SubmitResult, error) {
	sess, ok := s.registry.get(id)
	if !ok {
		return nil, model.NewNotFoundError("quick view")
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, model.NewNotFoundError("quick view")
	}
	resolved := sess.state.Resolved()
	if resolved != nil {
		v := *resolved
		resolved = &v
	}
	rule := sess.rule
	sess.mu.Unlock()

	res, err := s.seq.Submit(ctx, sess.shopper, resolved, rule)
	if err != nil {
		return nil, err
	}

	// A newer quick-view may have replaced this one while the adds were in flight.
	if s.registry.removeIf(id, sess) {
		s.logger.Debug("quick view closed after submit", slog.String("session_id", id))
	}
	return &SubmitResult{Result: res, Close: true}, nil
}

// Close discards the session.
func (s *Service) Close(id string) error {
	if _, ok := s.registry.remove(id); !ok {
		return model.NewNotFoundError("quick view")
	}
	s.logger.Debug("quick view closed", slog.String("session_id", id))
	return nil
}
