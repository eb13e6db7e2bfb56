package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"mixdeck/pkg/models"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Value      any
	Expiration time.Time
}

// IsExpired checks if the cache entry has expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expiration)
}

// MemoryCache implements a simple in-memory TTL cache
type MemoryCache struct {
	items map[string]*CacheEntry
	mutex sync.RWMutex
	ttl   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a new memory cache whose janitor sweeps expired
// entries every interval. Call Stop to end the janitor.
func NewMemoryCache(ttl, interval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheEntry),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}

	if interval > 0 {
		go cache.cleanupExpired(interval)
	}

	return cache
}

// Set stores a value in the cache
func (c *MemoryCache) Set(key string, value any) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry{
		Value:      value,
		Expiration: time.Now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.IsExpired() {
		return nil, false
	}

	return entry.Value, true
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// DeletePrefix removes every key starting with prefix
func (c *MemoryCache) DeletePrefix(prefix string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*CacheEntry)
}

// Size returns the number of items in the cache
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// Stop ends the janitor goroutine. It is safe to call more than once.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupExpired removes expired entries periodically
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mutex.Lock()
			for key, entry := range c.items {
				if entry.IsExpired() {
					delete(c.items, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}

// TrackPage is one page of query results. Orders is set for mix-scoped
// pages and holds the orderInMix of each row.
type TrackPage struct {
	Tracks []models.TrackInfo
	Orders []int
}

// PageCache caches query pages per navigation node
type PageCache struct {
	*MemoryCache
}

// NewPageCache creates a page cache; pages expire after ttl
func NewPageCache(ttl time.Duration) *PageCache {
	return &PageCache{
		MemoryCache: NewMemoryCache(ttl, ttl),
	}
}

func pageKey(owner string, page int) string {
	return owner + "/" + strconv.Itoa(page)
}

// SetPage caches one page for owner
func (pc *PageCache) SetPage(owner string, page int, data TrackPage) {
	pc.Set(pageKey(owner, page), data)
}

// GetPage retrieves a cached page
func (pc *PageCache) GetPage(owner string, page int) (TrackPage, bool) {
	value, exists := pc.Get(pageKey(owner, page))
	if !exists {
		return TrackPage{}, false
	}

	data, ok := value.(TrackPage)
	return data, ok
}

// Invalidate drops every page cached for owner
func (pc *PageCache) Invalidate(owner string) {
	pc.DeletePrefix(owner + "/")
}
