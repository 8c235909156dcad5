package quickview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"quickview-proxy/internal/adapter"
	"quickview-proxy/internal/cart"
	"quickview-proxy/internal/model"
	"quickview-proxy/internal/selection"
)

// Scenario product: Color {Red, Black} x Size {S, M, L}.
func teeProduct() *model.Product {
	return &model.Product{
		ID:    "tee",
		Title: "Tee",
		Price: 2000,
		Options: []model.Option{
			{Name: "Color", Values: []string{"Red", "Black"}},
			{Name: "Size", Values: []string{"S", "M", "L"}},
		},
		Variants: []model.Variant{
			{ID: "v1", Options: []string{"Red", "S"}, Price: 2000, Available: true},
			{ID: "v2", Options: []string{"Black", "M"}, Price: 2100, Available: true},
			{ID: "v3", Options: []string{"Black", "L"}, Price: 2200, Available: false},
		},
	}
}

func giftWrap() *model.Product {
	return &model.Product{ID: "gw", Variants: []model.Variant{{ID: "gw-1", Available: true}}}
}

func blackMRule() *model.TriggerRule {
	return &model.TriggerRule{Color: "black", Size: "m", Upsell: model.UpsellRef{Handle: "gift-wrap"}}
}

type testEnv struct {
	svc      *Service
	store    *adapter.Mock
	registry *Registry
	events   *cart.Broadcaster
}

func newTestEnv(t *testing.T, store *adapter.Mock) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if store == nil {
		store = &adapter.Mock{}
	}
	if store.FetchProductFunc == nil {
		store.FetchProductFunc = func(_ context.Context, ref string) (*model.Product, error) {
			switch ref {
			case "tee":
				return teeProduct(), nil
			case "gift-wrap":
				return giftWrap(), nil
			}
			return nil, model.NewProductFetchError(ref, model.NewNotFoundError("product"))
		}
	}
	events := cart.NewBroadcaster(logger)
	registry := NewRegistry(RegistryConfig{})
	seq := cart.NewSequencer(store, events, logger)
	return &testEnv{
		svc:      NewService(store, seq, registry, logger),
		store:    store,
		registry: registry,
		events:   events,
	}
}

func TestOpen_InitialSelection(t *testing.T) {
	env := newTestEnv(t, nil)

	view, err := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Handle: "tee", Rule: blackMRule()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if view.Resolved == nil || view.Resolved.ID != "v1" {
		t.Errorf("Resolved = %+v, want first available v1", view.Resolved)
	}
	if view.Selection["Color"] != "Red" || view.Selection["Size"] != "S" {
		t.Errorf("Selection = %v", view.Selection)
	}
	if !view.CanSubmit || !view.Configurable || !view.UpsellEnabled {
		t.Errorf("view flags = %+v", view)
	}
	if view.DisplayPrice != 2000 {
		t.Errorf("DisplayPrice = %d, want 2000", view.DisplayPrice)
	}
}

func TestOpen_EmbeddedDocumentSkipsFetch(t *testing.T) {
	env := newTestEnv(t, nil)
	doc := json.RawMessage(`{"id": 5, "title": "Cap", "options": ["Color"], "featured_image": "//cdn.shop/cap.jpg",
		"variants": [{"id": 51, "options": ["Blue"], "price": 900, "available": true}]}`)

	view, err := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Product: doc})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if env.store.CallCount("FetchProduct") != 0 {
		t.Error("embedded document should not be fetched")
	}
	if view.Resolved == nil || view.Resolved.ID != "51" {
		t.Errorf("Resolved = %+v", view.Resolved)
	}
	if view.UpsellEnabled {
		t.Error("no rule: upsell should be disabled")
	}
	if view.Image != "//cdn.shop/cap.jpg" {
		t.Errorf("Image = %q, want featured image", view.Image)
	}
}

func TestOpen_StructuralFallsBackToSingleVariant(t *testing.T) {
	env := newTestEnv(t, nil)
	doc := json.RawMessage(`{"id": 6, "title": "Card", "price": 500, "variants": [{"id": 61, "price": 500, "available": true}]}`)

	view, err := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Product: doc})
	if err != nil {
		t.Fatalf("Open() error = %v, want recovery", err)
	}
	if view.Configurable {
		t.Error("structural product should not be configurable")
	}
	if !view.CanSubmit || view.Resolved.ID != "61" {
		t.Errorf("view = %+v, want implicit variant 61", view)
	}
}

func TestOpen_NoVariantsCannotSubmit(t *testing.T) {
	env := newTestEnv(t, nil)
	doc := json.RawMessage(`{"id": 7, "title": "Broken", "price": 1500, "options": ["Color"], "variants": []}`)

	view, err := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Product: doc})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if view.Configurable || view.CanSubmit {
		t.Errorf("view = %+v, want non-configurable and not submittable", view)
	}
	if view.DisplayPrice != 1500 {
		t.Errorf("DisplayPrice = %d, want base price", view.DisplayPrice)
	}
}

func TestOpen_FetchFailure(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Handle: "gone"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "PRODUCT_FETCH_FAILED" || apiErr.StatusCode != 404 {
		t.Fatalf("err = %v, want 404 PRODUCT_FETCH_FAILED", err)
	}
	if env.registry.Len() != 0 {
		t.Error("no session should be registered")
	}
}

func TestOpen_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		req  OpenRequest
	}{
		{"no shopper", OpenRequest{Handle: "tee"}},
		{"no product", OpenRequest{Shopper: "s1"}},
		{"bad document", OpenRequest{Shopper: "s1", Product: json.RawMessage(`{"variants": 3}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Open(context.Background(), tt.req)
			if !errors.Is(err, model.ErrInvalidRequest) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestOpen_ReplacesShoppersPreviousSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, _ := env.svc.Open(ctx, OpenRequest{Shopper: "s1", Handle: "tee"})
	second, _ := env.svc.Open(ctx, OpenRequest{Shopper: "s1", Handle: "tee"})
	other, _ := env.svc.Open(ctx, OpenRequest{Shopper: "s2", Handle: "tee"})

	if _, err := env.svc.View(first.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("first session err = %v, want not found", err)
	}
	if _, err := env.svc.View(second.ID); err != nil {
		t.Errorf("second session err = %v", err)
	}
	if _, err := env.svc.View(other.ID); err != nil {
		t.Errorf("other shopper's session err = %v", err)
	}
	if env.registry.Len() != 2 {
		t.Errorf("Len() = %d, want 2", env.registry.Len())
	}
}

func TestSelect(t *testing.T) {
	env := newTestEnv(t, nil)
	view, _ := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Handle: "tee"})

	// Scenario 2: unavailable variant still resolves.
	view, err := env.svc.Select(view.ID, "Color", "Black")
	if err != nil {
		t.Fatal(err)
	}
	if view.Resolved != nil {
		t.Errorf("(Black,S) should resolve to none, got %+v", view.Resolved)
	}
	if view.CanSubmit || view.DisplayPrice != 2000 {
		t.Errorf("none: CanSubmit=%v DisplayPrice=%d, want false/base", view.CanSubmit, view.DisplayPrice)
	}

	view, _ = env.svc.Select(view.ID, "Size", "L")
	if view.Resolved == nil || view.Resolved.ID != "v3" {
		t.Errorf("Resolved = %+v, want v3", view.Resolved)
	}
	if view.Selection["Color"] != "Black" {
		t.Error("changing Size must not alter Color")
	}

	if _, err := env.svc.Select(view.ID, "Fit", "Slim"); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("unknown option err = %v, want validation error", err)
	}
	if _, err := env.svc.Select("nope", "Color", "Red"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown session err = %v, want not found", err)
	}
}

func TestSubmit_TriggerScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	events, cancel := env.events.Subscribe("s1")
	defer cancel()

	view, _ := env.svc.Open(ctx, OpenRequest{Shopper: "s1", Handle: "tee", Rule: blackMRule()})
	env.svc.Select(view.ID, "Color", "Black")
	env.svc.Select(view.ID, "Size", "M")

	res, err := env.svc.Submit(ctx, view.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Close || res.VariantID != "v2" || !res.UpsellAdded {
		t.Errorf("result = %+v", res)
	}

	select {
	case <-events:
	default:
		t.Error("cart-changed signal not broadcast")
	}

	if _, err := env.svc.View(view.ID); !errors.Is(err, model.ErrNotFound) {
		t.Error("session should be closed after a successful submit")
	}
}

func TestSubmit_NoVariantLeavesSessionOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	view, _ := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Handle: "tee"})
	env.svc.Select(view.ID, "Color", "Black") // (Black,S) -> none

	_, err := env.svc.Submit(context.Background(), view.ID)
	if !errors.Is(err, model.ErrNoVariantSelected) {
		t.Fatalf("err = %v, want no variant selected", err)
	}
	if env.store.CallCount("AddToCart") != 0 {
		t.Error("no cart call expected")
	}
	if _, err := env.svc.View(view.ID); err != nil {
		t.Errorf("session should stay open: %v", err)
	}
}

func TestSubmit_PrimaryFailureKeepsSelection(t *testing.T) {
	store := &adapter.Mock{
		AddToCartFunc: func(context.Context, string, string, int) (*model.CartState, error) {
			return nil, errors.New("HTTP 500")
		},
	}
	env := newTestEnv(t, store)
	view, _ := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Handle: "tee", Rule: blackMRule()})

	_, err := env.svc.Submit(context.Background(), view.ID)
	if !errors.Is(err, model.ErrCartAdd) {
		t.Fatalf("err = %v, want cart add failure", err)
	}

	after, err := env.svc.View(view.ID)
	if err != nil {
		t.Fatalf("session should stay open: %v", err)
	}
	if after.Resolved == nil || after.Resolved.ID != view.Resolved.ID {
		t.Errorf("Resolved changed: %+v", after.Resolved)
	}
	if store.CallCount("FetchProduct") != 1 {
		t.Error("only the quick-view product load expected; no upsell fetch")
	}
}

func TestSubmit_ReplacedWhileInFlight(t *testing.T) {
	var env *testEnv
	var replacement *View
	store := &adapter.Mock{
		AddToCartFunc: func(_ context.Context, token, variantID string, qty int) (*model.CartState, error) {
			if replacement == nil {
				replacement, _ = env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Handle: "tee"})
			}
			return &model.CartState{Token: token, ItemCount: qty}, nil
		},
	}
	env = newTestEnv(t, store)
	view, _ := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Handle: "tee"})

	if _, err := env.svc.Submit(context.Background(), view.ID); err != nil {
		t.Fatalf("Submit() error = %v, in-flight add should still land", err)
	}
	if _, err := env.svc.View(replacement.ID); err != nil {
		t.Errorf("replacement session must survive the old submit: %v", err)
	}
}

func TestClose(t *testing.T) {
	env := newTestEnv(t, nil)
	view, _ := env.svc.Open(context.Background(), OpenRequest{Shopper: "s1", Handle: "tee"})

	if err := env.svc.Close(view.ID); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := env.svc.Close(view.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second Close() err = %v, want not found", err)
	}
	if _, err := env.svc.Submit(context.Background(), view.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Submit after close err = %v, want not found", err)
	}
}

func TestRegistry_TTLAndLRU(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(RegistryConfig{TTL: time.Minute, MaxEntries: 2})
	r.now = func() time.Time { return now }

	mk := func(id, shopper string) *session {
		return newSession(id, shopper, selection.New(), nil)
	}

	a, b, c := mk("a", "s-a"), mk("b", "s-b"), mk("c", "s-c")
	r.put(a)
	r.put(b)
	r.get("a") // b is now least recently used
	r.put(c)

	if _, ok := r.get("b"); ok {
		t.Error("b should be evicted as least recently used")
	}
	if _, ok := r.get("a"); !ok {
		t.Error("a should survive")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := r.get("a"); ok {
		t.Error("a should expire after the idle TTL")
	}

	// c expired too; the next put sweeps it.
	r.put(mk("d", "s-d"))
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after sweep", r.Len())
	}
	if !c.closed {
		t.Error("swept session should be closed")
	}
}
