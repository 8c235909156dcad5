// Package cart sequences the quick-view add-to-cart mutations and broadcasts the
// resulting cart-changed signal.
//
// Submission order is fixed:
//
//	primary add ──ok──> trigger? ──yes──> load upsell ──> upsell add ──> notify
//	     │                  └──no───────────────────────────────────────> notify
//	     └──fail──> CART_ADD_FAILED (no upsell, no notify)
//
// Upsell failures are logged and swallowed; the requested item is the contract.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quickview-proxy/internal/adapter"
	"quickview-proxy/internal/model"
	"quickview-proxy/internal/trigger"
	"quickview-proxy/internal/variant"
)

// Notifier receives the cart-changed signal after a successful submission.
// It must not assume the quick-view that caused the change is still open.
type Notifier interface {
	CartChanged(cartToken string)
}

// Result describes a successful submission.
type Result struct {
	Cart            *model.CartState `json:"cart"`
	VariantID       string           `json:"variant_id"`
	UpsellAttempted bool             `json:"upsell_attempted"`
	UpsellAdded     bool             `json:"upsell_added"`
	UpsellVariantID string           `json:"upsell_variant_id,omitempty"`
}

// Sequencer performs the primary add and the conditional upsell add.
type Sequencer struct {
	store    adapter.Storefront
	notifier Notifier
	logger   *slog.Logger
}

// NewSequencer creates a Sequencer. notifier may be nil.
func NewSequencer(store adapter.Storefront, notifier Notifier, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit adds resolved (quantity 1) to the shopper's cart, then the upsell product
// when rule fires for resolved.
//
// Mutations run detached from ctx cancellation: once sent, an add is allowed to land
// even if the caller has gone away.
func (s *Sequencer) Submit(ctx context.Context, cartToken string, resolved *model.Variant, rule *model.TriggerRule) (*Result, error) {
	if resolved == nil || resolved.ID == "" {
		return nil, model.NewNoVariantSelectedError()
	}

	ctx = context.WithoutCancel(ctx)

	cart, err := s.store.AddToCart(ctx, cartToken, resolved.ID, 1)
	if err != nil {
		s.logger.Error("primary add to cart failed",
			slog.String("variant_id", resolved.ID),
			slog.String("error", err.Error()),
		)
		return nil, asCartAddError(resolved.ID, err)
	}

	result := &Result{Cart: cart, VariantID: resolved.ID}

	// Keep later calls on the cart session the platform just confirmed.
	token := cartToken
	if cart != nil && cart.Token != "" {
		token = cart.Token
	}

	if rule.Enabled() && trigger.Evaluate(resolved, rule) {
		result.UpsellAttempted = true

		upCart, upVariant, err := s.addUpsell(ctx, token, rule.Upsell)
		if err != nil {
			s.logger.Warn("upsell add skipped",
				slog.String("variant_id", resolved.ID),
				slog.String("upsell", upsellLabel(rule.Upsell)),
				slog.String("error", err.Error()),
			)
		} else {
			result.UpsellAdded = true
			result.UpsellVariantID = upVariant
			if upCart != nil {
				result.Cart = upCart
			}
		}
	}

	if s.notifier != nil {
		s.notifier.CartChanged(token)
		// Listeners that subscribed before the platform issued its own token
		// are still keyed by the shopper's token.
		if cartToken != "" && cartToken != token {
			s.notifier.CartChanged(cartToken)
		}
	}

	s.logger.Info("quick view submitted",
		slog.String("variant_id", resolved.ID),
		slog.Bool("upsell_attempted", result.UpsellAttempted),
		slog.Bool("upsell_added", result.UpsellAdded),
	)

	return result, nil
}

// addUpsell resolves the upsell product and adds its first available variant.
func (s *Sequencer) addUpsell(ctx context.Context, cartToken string, ref model.UpsellRef) (*model.CartState, string, error) {
	product := ref.Product
	if product == nil {
		p, err := s.store.FetchProduct(ctx, ref.Handle)
		// A structural error still leaves a usable variant list.
		if err != nil && !errors.Is(err, model.ErrStructural) {
			return nil, "", fmt.Errorf("loading upsell product: %w", err)
		}
		if p == nil {
			return nil, "", fmt.Errorf("loading upsell product: %w", err)
		}
		product = p
	}

	v, ok := variant.Initial(product.Variants)
	if !ok || v.ID == "" {
		return nil, "", fmt.Errorf("upsell product %q has no variants", product.ID)
	}

	cart, err := s.store.AddToCart(ctx, cartToken, v.ID, 1)
	if err != nil {
		return nil, "", fmt.Errorf("adding upsell variant %s: %w", v.ID, err)
	}
	return cart, v.ID, nil
}

// asCartAddError keeps an existing CART_ADD_FAILED error and wraps anything else.
func asCartAddError(variantID string, err error) error {
	if errors.Is(err, model.ErrCartAdd) {
		return err
	}
	return model.NewCartAddError(variantID, err)
}

func upsellLabel(ref model.UpsellRef) string {
	if ref.Product != nil {
		return "embedded:" + ref.Product.ID
	}
	return ref.Handle
}
