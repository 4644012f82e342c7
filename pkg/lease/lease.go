// Package lease provides in-process exclusive leases keyed by owner-defined
// identifiers. A worker that fails to acquire a lease skips the keyed work
// for this cycle rather than blocking on it.
package lease

import (
	"sync"
	"time"
)

// Lease is a held exclusive claim on a key. Release returns the claim;
// releasing twice is a no-op.
type Lease struct {
	registry *Registry
	key      string
	acquired time.Time
	once     sync.Once
}

// Key returns the identifier this lease guards.
func (l *Lease) Key() string {
	return l.key
}

// Held returns how long the lease has been held.
func (l *Lease) Held() time.Duration {
	return time.Since(l.acquired)
}

// Release returns the lease to the registry.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.registry.mu.Lock()
		delete(l.registry.held, l.key)
		l.registry.mu.Unlock()
	})
}

// Registry tracks held leases. The zero value is not usable; construct with New.
type Registry struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// New creates an empty lease registry.
func New() *Registry {
	return &Registry{
		held: make(map[string]time.Time),
	}
}

// TryAcquire claims the key if no lease is currently held for it.
// Returns the lease and true on success, or nil and false if held elsewhere.
func (r *Registry) TryAcquire(key string) (*Lease, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.held[key]; taken {
		return nil, false
	}

	now := time.Now()
	r.held[key] = now
	return &Lease{registry: r, key: key, acquired: now}, true
}

// Holding reports whether a lease is currently held for the key.
func (r *Registry) Holding(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.held[key]
	return taken
}
