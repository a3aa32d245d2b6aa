package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Key identifies one query result list.
type Key struct {
	Text    string
	Filters string
	TopK    int
	Version uint64
}

// NewKey builds a key from a normalized query. The text is kept as is since
// embedding models are case-sensitive.
func NewKey(text string, filters models.Filters, topK int, version uint64) Key {
	return Key{Text: text, Filters: filters.Key(), TopK: topK, Version: version}
}

func (k Key) String() string {
	return strconv.FormatUint(k.Version, 10) + "|" + strconv.Itoa(k.TopK) + "|" + k.Filters + "|" + k.Text
}

// Cache holds ranked hits per query. A nil *Cache or one created with
// enabled=false never stores anything.
type Cache struct {
	lru     *expirable.LRU[Key, []models.Hit]
	metrics *metrics.Metrics

	mu      sync.Mutex
	version uint64
}

func New(size int, ttl time.Duration, m *metrics.Metrics) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{
		lru:     expirable.NewLRU[Key, []models.Hit](size, nil, ttl),
		metrics: m,
	}
}

func (c *Cache) Get(key Key) ([]models.Hit, bool) {
	if c == nil {
		return nil, false
	}
	hits, ok := c.lru.Get(key)
	c.metrics.CacheLookup(ok)
	if !ok {
		return nil, false
	}
	return clone(hits), true
}

func (c *Cache) Put(key Key, hits []models.Hit) {
	if c == nil {
		return
	}
	c.lru.Add(key, clone(hits))
}

// InvalidateOnVersionChange drops every entry of an older index version the
// first time a newer version is seen.
func (c *Cache) InvalidateOnVersionChange(version uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if version <= c.version {
		return
	}
	c.version = version
	for _, k := range c.lru.Keys() {
		if k.Version < version {
			c.lru.Remove(k)
		}
	}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func clone(hits []models.Hit) []models.Hit {
	if hits == nil {
		return nil
	}
	return append(make([]models.Hit, 0, len(hits)), hits...)
}
