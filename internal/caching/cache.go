package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes expensive evidence resolutions for the lifetime of the
// process. Entries never expire: a repository's resolved vulnerability set
// is an immutable snapshot for the session.
type Cache struct {
	data  sync.Map
	group singleflight.Group
}

// GetOrCreate returns the cached value for key, or runs createFn exactly
// once across concurrent callers and caches its result.
func (c *Cache) GetOrCreate(key string, createFn func() (interface{}, error)) (interface{}, error) {
	if value, ok := c.data.Load(key); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		if value, ok := c.data.Load(key); ok {
			return value, nil
		}

		created, err := createFn()
		if err != nil {
			return nil, err
		}

		c.data.Store(key, created)
		return created, nil
	})

	return value, err
}

// Get returns the cached value for key without populating it.
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.data.Load(key)
}

// Forget drops a single entry, forcing the next GetOrCreate to resolve
// again.
func (c *Cache) Forget(key string) {
	c.data.Delete(key)
}
