package embedding

import (
	"container/list"
	"sync"
)

// Cache is an LRU cache mapping text to its embedding. Safe for concurrent
// use. A capacity of zero or less disables caching entirely.
type Cache struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key string
	vec []float32
}

// NewCache creates an LRU cache holding up to capacity embeddings.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached embedding for key and marks it most recently used.
func (c *Cache) Get(key string) ([]float32, bool) {
	if c.capacity <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vec, true
}

// Set stores the embedding for key, evicting the least recently used entry
// when the cache is full.
func (c *Cache) Set(key string, vec []float32) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).vec = vec
		return
	}

	elem := c.order.PushFront(&cacheEntry{key: key, vec: vec})
	c.entries[key] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
