// Package cache provides a small in-process TTL map. It backs agent presence
// and the per-chatbot experiment lookup; nothing in here survives a restart.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time

	sweepInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewTTL builds a cache whose entries live for ttl after each Set. Expired
// entries are invisible immediately; the janitor only reclaims their memory.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		entries:       make(map[K]entry[V]),
		ttl:           ttl,
		now:           time.Now,
		sweepInterval: ttl,
		stopCh:        make(chan struct{}),
	}
}

// SetNow overrides the clock. Only tests call this.
func (c *TTL[K, V]) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *TTL[K, V]) SetSweepInterval(d time.Duration) {
	c.sweepInterval = d
}

func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Items returns a snapshot of every unexpired entry.
func (c *TTL[K, V]) Items() map[K]V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	out := make(map[K]V, len(c.entries))
	for k, e := range c.entries {
		if now.Before(e.expiresAt) {
			out[k] = e.value
		}
	}
	return out
}

func (c *TTL[K, V]) Len() int {
	return len(c.Items())
}

// Start runs the janitor that evicts expired entries in the background.
func (c *TTL[K, V]) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop gracefully stops the janitor.
func (c *TTL[K, V]) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *TTL[K, V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
