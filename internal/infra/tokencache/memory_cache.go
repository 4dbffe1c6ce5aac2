package tokencache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evigrid/assess-console/internal/domain/assessment"
)

type cacheEntry struct {
	token     assessment.ValidationToken
	expiresAt time.Time
}

// MemoryCache is the in-process fallback when Valkey is disabled.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry)}
}

var _ assessment.TokenCache = (*MemoryCache)(nil)

// Put stores the token with the given TTL.
func (c *MemoryCache) Put(ctx context.Context, draftID uuid.UUID, slot assessment.Slot, token assessment.ValidationToken, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[memoryKey(draftID, slot)] = cacheEntry{token: token, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Drop removes a token. Dropping an absent key is not an error.
func (c *MemoryCache) Drop(ctx context.Context, draftID uuid.UUID, slot assessment.Slot) error {
	c.mu.Lock()
	delete(c.entries, memoryKey(draftID, slot))
	c.mu.Unlock()
	return nil
}

// Get returns the cached token, if present and unexpired.
func (c *MemoryCache) Get(ctx context.Context, draftID uuid.UUID, slot assessment.Slot) (assessment.ValidationToken, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[memoryKey(draftID, slot)]
	c.mu.RUnlock()
	if !ok {
		return assessment.ValidationToken{}, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, memoryKey(draftID, slot))
		c.mu.Unlock()
		return assessment.ValidationToken{}, false, nil
	}
	return entry.token, true, nil
}

func memoryKey(draftID uuid.UUID, slot assessment.Slot) string {
	return draftID.String() + ":" + string(slot)
}
