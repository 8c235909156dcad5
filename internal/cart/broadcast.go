package cart

import (
	"log/slog"
	"sync"
)

// Broadcaster fans the cart-changed signal out to listeners of a cart session
// (mini-cart, badge). The signal carries no payload, so pending signals coalesce:
// a slow listener sees at most one queued notification.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[chan struct{}]struct{}
	logger *slog.Logger
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]map[chan struct{}]struct{}),
		logger: logger,
	}
}

// Subscribe registers a listener for cartToken.
// The returned cancel func must be called to release the subscription.
func (b *Broadcaster) Subscribe(cartToken string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.subs[cartToken] == nil {
		b.subs[cartToken] = make(map[chan struct{}]struct{})
	}
	b.subs[cartToken][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[cartToken], ch)
			if len(b.subs[cartToken]) == 0 {
				delete(b.subs, cartToken)
			}
		})
	}
	return ch, cancel
}

// CartChanged implements Notifier. Never blocks.
func (b *Broadcaster) CartChanged(cartToken string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.subs[cartToken] {
		select {
		case ch <- struct{}{}:
			delivered++
		default:
			// A signal is already pending for this listener.
		}
	}

	b.logger.Debug("cart changed",
		slog.Int("listeners", len(b.subs[cartToken])),
		slog.Int("delivered", delivered),
	)
}

// Listeners returns the number of active subscriptions for cartToken.
func (b *Broadcaster) Listeners(cartToken string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[cartToken])
}

// Verify Broadcaster implements Notifier at compile time.
var _ Notifier = (*Broadcaster)(nil)
