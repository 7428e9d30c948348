package session

import (
	"context"
	"sync"
	"time"
)

// Denylist records revoked token IDs until their natural expiry.
type Denylist interface {
	// Revoke marks tokenID as revoked for ttl.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsRevoked reports whether tokenID has been revoked and not yet expired.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenylist is an in-process Denylist for single-instance deployments
// and tests. Entries are pruned lazily on access.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time // token ID -> expiry
	now     func() time.Time
}

// NewMemoryDenylist creates an empty in-memory denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke records tokenID until ttl elapses. Non-positive ttls are dropped,
// the token is already expired.
func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[tokenID] = d.now().Add(ttl)
	return nil
}

// IsRevoked reports whether tokenID is currently revoked, pruning it once
// expired.
func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	expiry, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if d.now().After(expiry) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}
