package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"passage/internal/domain"
	"passage/internal/port"
)

// Defaults used when a QueryCache is created with non-positive limits.
const (
	DefaultMaxSize = 256
	DefaultTTL     = 5 * time.Minute
)

// QueryCache holds recent ranking results keyed by query text and k.
// Entries expire after a TTL and the least recently used entry is
// evicted at capacity. Invalidate drops everything at once; callers do
// that whenever the index contents change.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	ranked  []domain.ScoredDocument
	addedAt time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, k int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", k, query)))
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached ranking for (query, k) when present and fresh.
func (c *QueryCache) Get(query string, k int) ([]domain.ScoredDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := cacheKey(query, k)
	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if time.Since(entry.addedAt) > c.ttl {
		delete(c.entries, id)
		c.dropFromOrder(id)
		return nil, false
	}
	c.touch(id)
	return entry.ranked, true
}

// Put stores the ranking for (query, k), evicting the least recently
// used entry at capacity.
func (c *QueryCache) Put(query string, k int, ranked []domain.ScoredDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := cacheKey(query, k)
	if _, ok := c.entries[id]; !ok && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[id] = &cacheEntry{ranked: ranked, addedAt: time.Now()}
	c.touch(id)
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) touch(id string) {
	c.dropFromOrder(id)
	c.order = append(c.order, id)
}

func (c *QueryCache) dropFromOrder(id string) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedRetriever wraps a ranking strategy with a QueryCache. Bulk
// ranking bypasses the cache since dataset runs ask each question once.
type CachedRetriever struct {
	next  port.Retriever
	cache *QueryCache
}

var _ port.Retriever = (*CachedRetriever)(nil)

func NewCachedRetriever(next port.Retriever, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{next: next, cache: cache}
}

func (r *CachedRetriever) Rank(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if ranked, ok := r.cache.Get(query, k); ok {
		return ranked, nil
	}
	ranked, err := r.next.Rank(ctx, query, k)
	if err != nil {
		return nil, err
	}
	r.cache.Put(query, k, ranked)
	return ranked, nil
}

func (r *CachedRetriever) BulkRank(ctx context.Context, queries []string, k int) ([][]domain.ScoredDocument, error) {
	return r.next.BulkRank(ctx, queries, k)
}
