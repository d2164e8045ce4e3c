package workflow

import (
	"context"
	"sync"
	"time"
)

// DisclosureCache holds the plaintext field value between approval and the
// verifier's one-time retrieval. Entries expire exactly at the reveal-window
// bound; Take consumes the entry so a value can only be read once.
type DisclosureCache interface {
	Put(ctx context.Context, requestID, value string, ttl time.Duration) error
	Take(ctx context.Context, requestID string) (string, bool, error)
	Delete(ctx context.Context, requestID string) error
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// InMemoryCache implements DisclosureCache without external infrastructure.
// Expiry is checked lazily on Take; there is no background janitor because
// entries are small and bounded by open requests.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// WithClock overrides the clock for tests.
func (c *InMemoryCache) WithClock(now func() time.Time) *InMemoryCache {
	c.now = now
	return c
}

func (c *InMemoryCache) Put(_ context.Context, requestID, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[requestID] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *InMemoryCache) Take(_ context.Context, requestID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[requestID]
	if !ok {
		return "", false, nil
	}
	delete(c.entries, requestID)
	if c.now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *InMemoryCache) Delete(_ context.Context, requestID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, requestID)
	return nil
}
