package quickview

import (
	"sync"
	"time"

	"quickview-proxy/internal/model"
	"quickview-proxy/internal/selection"
)

// session is one open quick-view: the explicit object that owns the selection
// state for a shopper between open and close.
type session struct {
	id      string
	shopper string
	rule    *model.TriggerRule // captured at open

	mu         sync.Mutex
	state      *selection.State
	closed     bool
	lastAccess time.Time
}

func newSession(id, shopper string, state *selection.State, rule *model.TriggerRule) *session {
	return &session{id: id, shopper: shopper, state: state, rule: rule}
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess) > ttl
}

// close tears the selection down to uninitialized.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.state.Reset()
}

// viewLocked snapshots the session. Callers hold s.mu.
func (s *session) viewLocked() *View {
	p := s.state.Product()
	v := &View{
		ID:            s.id,
		CartToken:     s.shopper,
		Product:       p,
		Selection:     s.state.Selection(),
		Resolved:      s.state.Resolved(),
		DisplayPrice:  s.state.DisplayPrice(),
		CanSubmit:     s.state.CanSubmit(),
		Configurable:  p != nil && p.Configurable(),
		UpsellEnabled: s.rule.Enabled(),
	}
	if p != nil {
		v.Image = p.FirstMedia()
	}
	return v
}
