package quickview

import (
	"sync"
	"time"
)

// DefaultSessionTTL is how long an untouched quick-view stays open.
const DefaultSessionTTL = 30 * time.Minute

// MaxSessions limits the number of live sessions (LRU eviction).
const MaxSessions = 10000

// RegistryConfig contains configuration for the session registry.
type RegistryConfig struct {
	TTL        time.Duration // Idle time before a session expires
	MaxEntries int           // Max live sessions (0 = default)
}

// Registry holds live quick-view sessions in memory.
// At most one session is live per shopper; sessions are never persisted.
type Registry struct {
	mu         sync.Mutex
	sessions   map[string]*session
	byShopper  map[string]string // shopper -> session id
	accessList []string          // LRU tracking: most recent at end
	config     RegistryConfig
	now        func() time.Time
}

// NewRegistry creates a registry, filling zero config values with defaults.
func NewRegistry(config RegistryConfig) *Registry {
	if config.TTL == 0 {
		config.TTL = DefaultSessionTTL
	}
	if config.MaxEntries == 0 {
		config.MaxEntries = MaxSessions
	}
	return &Registry{
		sessions:   make(map[string]*session),
		byShopper:  make(map[string]string),
		accessList: make([]string, 0, 64),
		config:     config,
		now:        time.Now,
	}
}

// put registers s as its shopper's live session.
// Returns the shopper's previous session, which the caller tears down.
func (r *Registry) put(s *session) (replaced *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevID, ok := r.byShopper[s.shopper]; ok {
		replaced = r.sessions[prevID]
		r.removeLocked(prevID)
	}

	r.sweepLocked()
	if len(r.sessions) >= r.config.MaxEntries {
		r.evictOldest()
	}

	s.touch(r.now())
	r.sessions[s.id] = s
	r.byShopper[s.shopper] = s.id
	r.recordAccessLocked(s.id)
	return replaced
}

// get returns a live session and refreshes its idle timer.
func (r *Registry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if s.expired(now, r.config.TTL) {
		r.removeLocked(id)
		return nil, false
	}
	s.touch(now)
	r.recordAccessLocked(id)
	return s, true
}

// remove drops the session and returns it, if it was live.
func (r *Registry) remove(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	r.removeLocked(id)
	return s, true
}

// removeIf drops the session only if id still maps to s.
func (r *Registry) removeIf(id string, s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[id] != s {
		return false
	}
	r.removeLocked(id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) removeLocked(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if r.byShopper[s.shopper] == id {
		delete(r.byShopper, s.shopper)
	}
	for i, u := range r.accessList {
		if u == id {
			r.accessList = append(r.accessList[:i], r.accessList[i+1:]...)
			break
		}
	}
	s.close()
}

// sweepLocked drops expired sessions from the cold end of the LRU list.
func (r *Registry) sweepLocked() {
	now := r.now()
	for len(r.accessList) > 0 {
		id := r.accessList[0]
		s, ok := r.sessions[id]
		if !ok {
			r.accessList = r.accessList[1:]
			continue
		}
		if !s.expired(now, r.config.TTL) {
			return
		}
		r.removeLocked(id)
	}
}

func (r *Registry) recordAccessLocked(id string) {
	// Remove existing occurrence
	for i, u := range r.accessList {
		if u == id {
			r.accessList = append(r.accessList[:i], r.accessList[i+1:]...)
			break
		}
	}
	// Add to end (most recent)
	r.accessList = append(r.accessList, id)
}

func (r *Registry) evictOldest() {
	if len(r.accessList) == 0 {
		return
	}
	oldest := r.accessList[0]
	r.accessList = r.accessList[1:]
	r.removeLocked(oldest)
}
