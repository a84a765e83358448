package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

const defaultIdleTTL = 30 * time.Minute

// SessionStore keeps open checkout sessions in process memory. Sessions idle for longer
// than the TTL are abandoned and dropped; running submissions are never evicted.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*appcheckout.Orchestrator
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
	onEvict   func(id string)
}

type StoreOption func(*SessionStore)

// WithIdleTTL sets how long a session may go unchanged before it is evicted.
func WithIdleTTL(ttl time.Duration) StoreOption {
	return func(r *SessionStore) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// OnEvict registers fn to be told about every evicted session.
func OnEvict(fn func(id string)) StoreOption {
	return func(r *SessionStore) { r.onEvict = fn }
}

func NewSessionStore(opts ...StoreOption) *SessionStore {
	r := &SessionStore{
		sessions: make(map[string]*appcheckout.Orchestrator),
		ttl:      defaultIdleTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SessionStore) Insert(ctx context.Context, o *appcheckout.Orchestrator) error {
	_ = ctx
	if o == nil || o.ID() == "" {
		return fmt.Errorf("session store: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	if _, exists := r.sessions[o.ID()]; exists {
		return fmt.Errorf("session store: %s already exists", o.ID())
	}
	r.sessions[o.ID()] = o
	return nil
}

func (r *SessionStore) Get(ctx context.Context, id string) (*appcheckout.Orchestrator, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	o, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.expired(o, r.now()) {
		r.evictLocked(id, o)
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (r *SessionStore) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len reports the number of open sessions.
func (r *SessionStore) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// sweepLocked evicts idle sessions, at most once per half TTL.
func (r *SessionStore) sweepLocked() {
	now := r.now()
	if now.Sub(r.lastSweep) < r.ttl/2 {
		return
	}
	r.lastSweep = now
	for id, o := range r.sessions {
		if r.expired(o, now) {
			r.evictLocked(id, o)
		}
	}
}

func (r *SessionStore) expired(o *appcheckout.Orchestrator, now time.Time) bool {
	at, inFlight := o.LastActivity()
	return !inFlight && now.Sub(at) > r.ttl
}

func (r *SessionStore) evictLocked(id string, o *appcheckout.Orchestrator) {
	delete(r.sessions, id)
	o.Abandon()
	if r.onEvict != nil {
		r.onEvict(id)
	}
}
