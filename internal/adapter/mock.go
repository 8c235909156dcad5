package adapter

import (
	"context"
	"sync"

	"quickview-proxy/internal/model"
)

// Call records one invocation on the Mock, in order.
type Call struct {
	Method    string
	Ref       string // product ref for FetchProduct
	VariantID string // for AddToCart
	CartToken string
	Quantity  int
}

// Mock implements Storefront for testing.
// Each method can be configured via function fields; every call is recorded.
type Mock struct {
	FetchProductFunc func(ctx context.Context, ref string) (*model.Product, error)
	AddToCartFunc    func(ctx context.Context, cartToken, variantID string, quantity int) (*model.CartState, error)

	mu    sync.Mutex
	calls []Call
}

// FetchProduct calls the configured FetchProductFunc or returns a not-found fetch error.
func (m *Mock) FetchProduct(ctx context.Context, ref string) (*model.Product, error) {
	m.record(Call{Method: "FetchProduct", Ref: ref})
	if m.FetchProductFunc != nil {
		return m.FetchProductFunc(ctx, ref)
	}
	return nil, model.NewProductFetchError(ref, model.NewNotFoundError("product"))
}

// AddToCart calls the configured AddToCartFunc or returns a cart with the single line.
func (m *Mock) AddToCart(ctx context.Context, cartToken, variantID string, quantity int) (*model.CartState, error) {
	m.record(Call{Method: "AddToCart", CartToken: cartToken, VariantID: variantID, Quantity: quantity})
	if m.AddToCartFunc != nil {
		return m.AddToCartFunc(ctx, cartToken, variantID, quantity)
	}
	return &model.CartState{
		Token:     cartToken,
		ItemCount: quantity,
		Items:     []model.CartLine{{VariantID: variantID, Quantity: quantity}},
	}, nil
}

// Calls returns a snapshot of recorded calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was invoked.
func (m *Mock) CallCount(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *Mock) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Verify Mock implements Storefront interface at compile time.
var _ Storefront = (*Mock)(nil)
