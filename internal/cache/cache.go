// Package cache implements the Response Cache (spec §4.2): an LRU-by-
// insertion-order cache with a TTL, keyed by a hash over the first 500
// characters of the input that produced the cached value.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultMaxSize and DefaultTTL are the spec's §4.2 defaults.
	DefaultMaxSize = 500
	DefaultTTL     = 3600 * time.Second

	hashPrefixLen = 500
)

// Cache is a size-bounded, TTL-expiring cache of tier-orchestrator results.
// TTL expiry is delegated to patrickmn/go-cache; eviction by size uses a
// stdlib container/list to track strict insertion order, since go-cache has
// no native LRU/insertion-order eviction primitive.
type Cache struct {
	mu      sync.Mutex
	ttl     *gocache.Cache
	order   *list.List
	entries map[string]*list.Element
	maxSize int
}

// New returns a Response Cache with the given max size and TTL.
func New(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     gocache.New(ttl, ttl/2),
		order:   list.New(),
		entries: make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

// Key hashes the first hashPrefixLen characters of text into a cache key.
func Key(text string) string {
	if len(text) > hashPrefixLen {
		text = text[:hashPrefixLen]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for key, if present and unexpired, promoting
// it to most-recently-used so it survives the next size-based eviction
// (spec §4.2: "on hit, the entry is re-inserted to mark recency").
func (c *Cache) Get(key string) (string, bool) {
	value, found := c.ttl.Get(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !found {
		if el, ok := c.entries[key]; ok {
			c.order.Remove(el)
			delete(c.entries, key)
		}
		return "", false
	}
	if el, ok := c.entries[key]; ok {
		c.order.MoveToBack(el)
	}
	s, ok := value.(string)
	return s, ok
}

// Set stores value under key, evicting the least-recently-inserted entry if
// the cache is at capacity.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	if el, exists := c.entries[key]; exists {
		c.order.MoveToBack(el)
	} else {
		if c.order.Len() >= c.maxSize {
			c.evictOldestLocked()
		}
		c.entries[key] = c.order.PushBack(key)
	}
	c.mu.Unlock()

	c.ttl.SetDefault(key, value)
}

// evictOldestLocked removes the least-recently-inserted entry. Caller must
// hold c.mu.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
	c.ttl.Delete(key)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
