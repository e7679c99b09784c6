package dataset

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	gocache "github.com/patrickmn/go-cache"
)

// Cache holds resolved value combinations with a TTL, grouped rows in a
// bounded LRU, and an in-flight registry that deduplicates concurrent
// resolver calls for the same key. It is injected into the resolver so
// tests can substitute short TTLs and observe dedupe behavior.
type Cache struct {
	combos *gocache.Cache
	rows   *lru.Cache

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done chan struct{}
	res  Resolution
}

type cachedResolution struct {
	combinations []string
	truncated    bool
}

// NewCache creates a cache with the given combination TTL and grouped-row
// LRU capacity.
func NewCache(ttl time.Duration, rowCacheSize int) *Cache {
	if rowCacheSize <= 0 {
		rowCacheSize = 64
	}
	rows, _ := lru.New(rowCacheSize)
	return &Cache{
		combos:   gocache.New(ttl, 2*ttl),
		rows:     rows,
		inflight: make(map[string]*inflightCall),
	}
}

// Get returns a cached resolution for key. Rows may be absent when they
// were evicted from the LRU while the combination list is still fresh.
func (c *Cache) Get(key string) (Resolution, bool) {
	v, ok := c.combos.Get(key)
	if !ok {
		return Resolution{}, false
	}
	cached := v.(cachedResolution)
	res := Resolution{
		Combinations: cached.combinations,
		Truncated:    cached.truncated,
	}
	if rowsVal, ok := c.rows.Get(key); ok {
		res.Rows = rowsVal.([]GroupedRow)
	}
	return res, true
}

func (c *Cache) put(key string, res Resolution) {
	c.combos.Set(key, cachedResolution{
		combinations: res.Combinations,
		truncated:    res.Truncated,
	}, gocache.DefaultExpiration)
	c.rows.Add(key, res.Rows)
}

// Invalidate drops the cached entry for key, forcing re-resolution.
func (c *Cache) Invalidate(key string) {
	c.combos.Delete(key)
	c.rows.Remove(key)
}

// Do runs fn for key unless an identical call is already in flight, in
// which case the caller waits for and shares that call's result. fn reports
// whether its result should be cached; failed resolutions are not, so the
// next interaction retries.
func (c *Cache) Do(key string, fn func() (Resolution, bool)) Resolution {
	c.mu.Lock()
	if existing, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-existing.done
		return existing.res
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	res, cacheable := fn()
	call.res = res
	if cacheable {
		c.put(key, res)
	}

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(call.done)

	return res
}
