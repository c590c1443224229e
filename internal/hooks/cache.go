package hooks

import (
	"runtime"
	"sync"
	"weak"
)

// Cache associates host mutation handles with their wrappers. A key is
// held weakly: once the host drops a handle its entry is removed.
//
// Wrappers must not reference their key strongly, or the key never
// becomes unreachable.
type Cache[K any, W any] struct {
	mu      sync.Mutex
	entries map[weak.Pointer[K]]W
}

// NewCache creates an empty cache.
func NewCache[K any, W any]() *Cache[K, W] {
	return &Cache[K, W]{entries: make(map[weak.Pointer[K]]W)}
}

// GetOrCreate returns the wrapper for key, building it on first sight.
// Repeated calls with the same key return the same wrapper.
func (c *Cache[K, W]) GetOrCreate(key *K, build func(weak.Pointer[K]) W) W {
	wp := weak.Make(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.entries[wp]; ok {
		return w
	}
	w := build(wp)
	c.entries[wp] = w
	runtime.AddCleanup(key, c.evict, wp)
	return w
}

// Len returns the number of live entries.
func (c *Cache[K, W]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[K, W]) evict(wp weak.Pointer[K]) {
	c.mu.Lock()
	delete(c.entries, wp)
	c.mu.Unlock()
}
