package digest

import "sync"

// LockSet tracks tenants with a flush in progress. A tenant that is already
// held is skipped by the caller, never blocked on.
type LockSet struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLockSet builds an empty lock set.
func NewLockSet() *LockSet {
	return &LockSet{held: make(map[string]bool)}
}

// TryAcquire claims the tenant. Returns false when another flush holds it.
func (l *LockSet) TryAcquire(tenantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[tenantID] {
		return false
	}
	l.held[tenantID] = true
	return true
}

// Release frees the tenant. Releasing an unheld tenant is a no-op.
func (l *LockSet) Release(tenantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, tenantID)
}

// Held reports whether the tenant is currently claimed.
func (l *LockSet) Held(tenantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[tenantID]
}
