package selection

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/model"
)

type memoryEntry struct {
	expiry    time.Time
	selection model.PendingSelection
}

// MemoryCache is a process-local Cache for single-instance deployments.
type MemoryCache struct {
	entries map[string]memoryEntry
	now     func() time.Time
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.Mutex
	once    sync.Once
}

// NewMemoryCache creates a cache and starts its sweeper. A zero ttl uses
// DefaultTTL. Call Close to stop the sweeper.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cache := &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
		ttl:     ttl,
	}

	go cache.cleanup()

	return cache
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, sel model.PendingSelection) (string, error) {
	key, err := NewKey()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		selection: sel,
		expiry:    c.now().Add(c.ttl),
	}
	return key, nil
}

// TakeOnce implements Cache.
func (c *MemoryCache) TakeOnce(_ context.Context, key string) (*model.PendingSelection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, common.ErrSelectionExpired
	}
	delete(c.entries, key)

	if !c.now().Before(entry.expiry) {
		return nil, common.ErrSelectionExpired
	}

	sel := entry.selection
	return &sel, nil
}

// cleanup periodically removes expired entries.
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiry) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of entries held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the sweeper.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}

var _ Cache = (*MemoryCache)(nil)
