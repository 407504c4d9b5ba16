package providers

import (
	"sync"
	"time"
	"unsafe"

	"github.com/coocood/freecache"

	"listentier/internal/structures"
)

const defaultCacheTTL = time.Minute

// CacheProviderInterface caches rendered GET responses. Clear drops everything after a write and
// starts a new generation; SetIfGeneration discards values computed before the latest Clear.
type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Generation() uint64
	SetIfGeneration(key string, value []byte, generation uint64) bool
	Clear()
}

type CacheProvider struct {
	cache *freecache.Cache
	ttl   int

	mu         sync.Mutex
	generation uint64
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeApp, "Cache disabled")
		return &noopCache{}
	}

	sizeBytes := conf.Cache.Size * 1024 * 1024
	ttl := conf.Cache.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ttlSeconds := max(int(ttl.Seconds()), 1)

	logger.Infof(TypeApp, "Cache initialized: %dMB, TTL=%ds", conf.Cache.Size, ttlSeconds)

	return &CacheProvider{
		cache: freecache.NewCache(sizeBytes),
		ttl:   ttlSeconds,
	}
}

// unsafeStringToBytes converts string to []byte without allocation.
// Safe when the result is only read (not modified), which is the case
// for freecache, it copies keys internally.
func unsafeStringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(unsafeStringToBytes(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *CacheProvider) Set(key string, value []byte) {
	_ = c.cache.Set(unsafeStringToBytes(key), value, c.ttl)
}

func (c *CacheProvider) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *CacheProvider) SetIfGeneration(key string, value []byte, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	return c.cache.Set(unsafeStringToBytes(key), value, c.ttl) == nil
}

func (c *CacheProvider) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.cache.Clear()
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool)                       { return nil, false }
func (n *noopCache) Set(_ string, _ []byte)                            {}
func (n *noopCache) Generation() uint64                                { return 0 }
func (n *noopCache) SetIfGeneration(_ string, _ []byte, _ uint64) bool { return false }
func (n *noopCache) Clear()                                            {}
