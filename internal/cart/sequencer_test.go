package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"quickview-proxy/internal/adapter"
	"quickview-proxy/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	tokens []string
}

func (n *recordingNotifier) CartChanged(cartToken string) {
	n.tokens = append(n.tokens, cartToken)
}

func giftWrap() *model.Product {
	return &model.Product{
		ID:    "gw",
		Title: "Gift Wrap",
		Variants: []model.Variant{
			{ID: "gw-sold-out", Options: []string{"Default"}, Available: false},
			{ID: "gw-1", Options: []string{"Default"}, Available: true},
		},
	}
}

func blackMediumRule() *model.TriggerRule {
	return &model.TriggerRule{Color: "black", Size: "medium", Upsell: model.UpsellRef{Handle: "gift-wrap"}}
}

func TestSubmit_NoVariantSelected(t *testing.T) {
	store := &adapter.Mock{}
	notifier := &recordingNotifier{}
	seq := NewSequencer(store, notifier, testLogger())

	_, err := seq.Submit(context.Background(), "tok", nil, blackMediumRule())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "NO_VARIANT_SELECTED" {
		t.Fatalf("err = %v, want NO_VARIANT_SELECTED", err)
	}
	if apiErr.Message != model.MsgSelectOptions {
		t.Errorf("Message = %q, want %q", apiErr.Message, model.MsgSelectOptions)
	}
	if len(store.Calls()) != 0 {
		t.Errorf("calls = %v, want none", store.Calls())
	}
	if len(notifier.tokens) != 0 {
		t.Error("notifier should not fire")
	}
}

func TestSubmit_TriggerFires(t *testing.T) {
	store := &adapter.Mock{
		FetchProductFunc: func(_ context.Context, ref string) (*model.Product, error) {
			if ref != "gift-wrap" {
				t.Errorf("ref = %q, want gift-wrap", ref)
			}
			return giftWrap(), nil
		},
	}
	notifier := &recordingNotifier{}
	seq := NewSequencer(store, notifier, testLogger())

	resolved := &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}, Available: true}
	res, err := seq.Submit(context.Background(), "tok", resolved, blackMediumRule())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	calls := store.Calls()
	if len(calls) != 3 {
		t.Fatalf("calls = %+v, want 3", calls)
	}
	if calls[0].Method != "AddToCart" || calls[0].VariantID != "v2" || calls[0].Quantity != 1 {
		t.Errorf("first call = %+v, want primary add of v2", calls[0])
	}
	if calls[1].Method != "FetchProduct" {
		t.Errorf("second call = %+v, want FetchProduct", calls[1])
	}
	if calls[2].Method != "AddToCart" || calls[2].VariantID != "gw-1" || calls[2].Quantity != 1 {
		t.Errorf("third call = %+v, want upsell add of gw-1", calls[2])
	}

	if !res.UpsellAttempted || !res.UpsellAdded {
		t.Errorf("upsell attempted=%v added=%v, want both true", res.UpsellAttempted, res.UpsellAdded)
	}
	if res.UpsellVariantID != "gw-1" {
		t.Errorf("UpsellVariantID = %q, want gw-1", res.UpsellVariantID)
	}
	if len(notifier.tokens) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.tokens))
	}
}

func TestSubmit_CaseInsensitiveTrigger(t *testing.T) {
	store := &adapter.Mock{
		FetchProductFunc: func(context.Context, string) (*model.Product, error) { return giftWrap(), nil },
	}
	seq := NewSequencer(store, nil, testLogger())

	resolved := &model.Variant{ID: "v", Options: []string{"MEDIUM", "BLACK"}}
	res, err := seq.Submit(context.Background(), "", resolved, blackMediumRule())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.UpsellAdded {
		t.Error("upsell should be added for mixed-case values")
	}
}

func TestSubmit_TriggerNotSatisfied(t *testing.T) {
	tests := []struct {
		name     string
		resolved *model.Variant
		rule     *model.TriggerRule
	}{
		{"other size", &model.Variant{ID: "v3", Options: []string{"Black", "Large"}}, blackMediumRule()},
		{"other color", &model.Variant{ID: "v1", Options: []string{"Red", "Medium"}}, blackMediumRule()},
		{"no rule", &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}}, nil},
		{"rule without upsell", &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}},
			&model.TriggerRule{Color: "black", Size: "medium"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &adapter.Mock{}
			notifier := &recordingNotifier{}
			seq := NewSequencer(store, notifier, testLogger())

			res, err := seq.Submit(context.Background(), "tok", tt.resolved, tt.rule)
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if res.UpsellAttempted {
				t.Error("upsell should not be attempted")
			}
			if n := len(store.Calls()); n != 1 {
				t.Errorf("calls = %d, want 1", n)
			}
			if len(notifier.tokens) != 1 {
				t.Errorf("notifications = %d, want 1", len(notifier.tokens))
			}
		})
	}
}

func TestSubmit_PrimaryFailure(t *testing.T) {
	store := &adapter.Mock{
		AddToCartFunc: func(context.Context, string, string, int) (*model.CartState, error) {
			return nil, errors.New("HTTP 422")
		},
	}
	notifier := &recordingNotifier{}
	seq := NewSequencer(store, notifier, testLogger())

	resolved := &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}}
	_, err := seq.Submit(context.Background(), "tok", resolved, blackMediumRule())

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "CART_ADD_FAILED" {
		t.Fatalf("err = %v, want CART_ADD_FAILED", err)
	}
	if apiErr.Message != model.MsgCartAdd {
		t.Errorf("Message = %q, want %q", apiErr.Message, model.MsgCartAdd)
	}
	if n := len(store.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1 (no upsell after primary failure)", n)
	}
	if len(notifier.tokens) != 0 {
		t.Error("notifier should not fire after primary failure")
	}
}

func TestSubmit_PrimaryFailureKeepsAdapterError(t *testing.T) {
	orig := model.NewCartAddError("v2", errors.New("sold out"))
	store := &adapter.Mock{
		AddToCartFunc: func(context.Context, string, string, int) (*model.CartState, error) {
			return nil, orig
		},
	}
	seq := NewSequencer(store, nil, testLogger())

	_, err := seq.Submit(context.Background(), "", &model.Variant{ID: "v2"}, nil)
	if err != orig {
		t.Errorf("err = %v, want adapter error passed through", err)
	}
}

func TestSubmit_UpsellFailureSwallowed(t *testing.T) {
	tests := []struct {
		name  string
		store *adapter.Mock
	}{
		{
			name:  "fetch fails",
			store: &adapter.Mock{},
		},
		{
			name: "upsell add fails",
			store: &adapter.Mock{
				FetchProductFunc: func(context.Context, string) (*model.Product, error) { return giftWrap(), nil },
				AddToCartFunc: func(_ context.Context, token, variantID string, qty int) (*model.CartState, error) {
					if variantID == "gw-1" {
						return nil, errors.New("HTTP 500")
					}
					return &model.CartState{Token: token, ItemCount: qty}, nil
				},
			},
		},
		{
			name: "upsell has no variants",
			store: &adapter.Mock{
				FetchProductFunc: func(context.Context, string) (*model.Product, error) {
					return &model.Product{ID: "empty"}, nil
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			seq := NewSequencer(tt.store, notifier, testLogger())

			resolved := &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}}
			res, err := seq.Submit(context.Background(), "tok", resolved, blackMediumRule())
			if err != nil {
				t.Fatalf("Submit() error = %v, want success", err)
			}
			if !res.UpsellAttempted || res.UpsellAdded {
				t.Errorf("attempted=%v added=%v, want true/false", res.UpsellAttempted, res.UpsellAdded)
			}
			if len(notifier.tokens) != 1 {
				t.Errorf("notifications = %d, want 1", len(notifier.tokens))
			}
		})
	}
}

func TestSubmit_EmbeddedUpsellSkipsFetch(t *testing.T) {
	store := &adapter.Mock{}
	seq := NewSequencer(store, nil, testLogger())

	rule := &model.TriggerRule{Color: "black", Size: "medium", Upsell: model.UpsellRef{Product: giftWrap()}}
	res, err := seq.Submit(context.Background(), "tok", &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}}, rule)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if store.CallCount("FetchProduct") != 0 {
		t.Error("embedded upsell should not be fetched")
	}
	if !res.UpsellAdded || res.UpsellVariantID != "gw-1" {
		t.Errorf("result = %+v, want gw-1 added", res)
	}
}

func TestSubmit_UpsellOnStructuralProduct(t *testing.T) {
	store := &adapter.Mock{
		FetchProductFunc: func(context.Context, string) (*model.Product, error) {
			p := &model.Product{ID: "gw", Variants: []model.Variant{{ID: "only", Available: true}}}
			return p, &model.StructuralError{ProductID: "gw", Reason: "no options"}
		},
	}
	seq := NewSequencer(store, nil, testLogger())

	res, err := seq.Submit(context.Background(), "tok", &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}}, blackMediumRule())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.UpsellAdded || res.UpsellVariantID != "only" {
		t.Errorf("result = %+v, want implicit variant added", res)
	}
}

func TestSubmit_UsesConfirmedCartToken(t *testing.T) {
	store := &adapter.Mock{
		FetchProductFunc: func(context.Context, string) (*model.Product, error) { return giftWrap(), nil },
		AddToCartFunc: func(_ context.Context, token, variantID string, qty int) (*model.CartState, error) {
			if token == "" {
				token = "new-cart"
			}
			return &model.CartState{Token: token, ItemCount: qty}, nil
		},
	}
	notifier := &recordingNotifier{}
	seq := NewSequencer(store, notifier, testLogger())

	_, err := seq.Submit(context.Background(), "", &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}}, blackMediumRule())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	calls := store.Calls()
	if last := calls[len(calls)-1]; last.CartToken != "new-cart" {
		t.Errorf("upsell cart token = %q, want new-cart", last.CartToken)
	}
	if len(notifier.tokens) != 1 || notifier.tokens[0] != "new-cart" {
		t.Errorf("notified tokens = %v, want [new-cart]", notifier.tokens)
	}
}

func TestSubmit_DetachedFromCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &adapter.Mock{
		AddToCartFunc: func(ctx context.Context, token, variantID string, qty int) (*model.CartState, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &model.CartState{Token: token, ItemCount: qty}, nil
		},
	}
	seq := NewSequencer(store, nil, testLogger())

	if _, err := seq.Submit(ctx, "tok", &model.Variant{ID: "v2"}, nil); err != nil {
		t.Errorf("Submit() error = %v, want mutation to proceed", err)
	}
}

func TestSubmit_NotifiesShopperTokenListeners(t *testing.T) {
	store := &adapter.Mock{
		FetchProductFunc: func(context.Context, string) (*model.Product, error) { return giftWrap(), nil },
		AddToCartFunc: func(_ context.Context, token, variantID string, qty int) (*model.CartState, error) {
			return &model.CartState{Token: "storefront-cart-1", ItemCount: qty}, nil
		},
	}
	events := NewBroadcaster(testLogger())
	shopperCh, cancelShopper := events.Subscribe("shopper-1")
	defer cancelShopper()
	cartCh, cancelCart := events.Subscribe("storefront-cart-1")
	defer cancelCart()

	seq := NewSequencer(store, events, testLogger())
	if _, err := seq.Submit(context.Background(), "shopper-1", &model.Variant{ID: "v2", Options: []string{"Black", "Medium"}}, blackMediumRule()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	for name, ch := range map[string]<-chan struct{}{"shopper-1": shopperCh, "storefront-cart-1": cartCh} {
		select {
		case <-ch:
		default:
			t.Errorf("listener on %s got no cart-changed signal", name)
		}
	}

	calls := store.Calls()
	if last := calls[len(calls)-1]; last.CartToken != "storefront-cart-1" {
		t.Errorf("upsell cart token = %q, want storefront-cart-1", last.CartToken)
	}
}
