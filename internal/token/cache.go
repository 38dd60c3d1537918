package token

import "sync"

// Cache holds the single recognition bearer token for the process.
// It never expires on its own; the provider clears it when the API rejects it.
type Cache struct {
	mu      sync.RWMutex
	value   string
	present bool
}

func NewCache() *Cache {
	return &Cache{}
}

// Get returns the cached token and whether one is present.
func (c *Cache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.present
}

func (c *Cache) Set(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.present = true
}

// Clear drops the token only if it still equals stale, so a token written by a
// concurrent refresh is kept. It reports whether the cache was cleared.
func (c *Cache) Clear(stale string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.present || c.value != stale {
		return false
	}
	c.value = ""
	c.present = false
	return true
}
