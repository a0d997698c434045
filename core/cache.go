package core

import (
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

// Cached resources
const (
	CacheTodos           = "todos"
	CacheGroups          = "groups"
	CacheRecommendations = "recommendations"
)

// Cache is a per user read cache keyed `user:<id>:<resource>`.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	store *gocache.Cache
}

func NewCache(conf *Config) *Cache {
	return &Cache{store: gocache.New(conf.Cache.TTL, conf.Cache.CleanupInterval)}
}

func cacheKey(userID, resource string) string {
	return "user:" + userID + ":" + resource
}

func (c *Cache) Get(userID, resource string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	return c.store.Get(cacheKey(userID, resource))
}

func (c *Cache) Set(userID, resource string, val interface{}) {
	if c == nil {
		return
	}
	c.store.Set(cacheKey(userID, resource), val, gocache.DefaultExpiration)
}

// Invalidate drops the given resources cached for each user.
func (c *Cache) Invalidate(userIDs []string, resources ...string) {
	if c == nil {
		return
	}
	for _, id := range userIDs {
		for _, res := range resources {
			c.store.Delete(cacheKey(id, res))
		}
	}
}

// InvalidateResource drops the resource for every user.
func (c *Cache) InvalidateResource(resource string) {
	if c == nil {
		return
	}
	suffix := ":" + resource
	for key := range c.store.Items() {
		if strings.HasPrefix(key, "user:") && strings.HasSuffix(key, suffix) {
			c.store.Delete(key)
		}
	}
}

// Flush empties the cache.
func (c *Cache) Flush() {
	if c == nil {
		return
	}
	c.store.Flush()
}
