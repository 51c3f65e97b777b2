package store

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// queryCacheSize bounds the number of cached query results.
const queryCacheSize = 256

// QueryCache memoizes search results. Any mutation bumps the generation,
// which orphans every cached entry without walking the cache; stale
// entries age out through LRU eviction.
type QueryCache struct {
	cache      *lru.Cache[string, []SearchResult]
	generation atomic.Uint64
}

// NewQueryCache creates a query cache.
func NewQueryCache() (*QueryCache, error) {
	cache, err := lru.New[string, []SearchResult](queryCacheSize)
	if err != nil {
		return nil, err
	}
	return &QueryCache{cache: cache}, nil
}

func (q *QueryCache) key(query string, limit int) string {
	return fmt.Sprintf("%d|%d|%s", q.generation.Load(), limit, query)
}

// Get returns the cached results for the query, if current.
func (q *QueryCache) Get(query string, limit int) ([]SearchResult, bool) {
	return q.cache.Get(q.key(query, limit))
}

// Add caches results for the query.
func (q *QueryCache) Add(query string, limit int, results []SearchResult) {
	q.cache.Add(q.key(query, limit), results)
}

// Invalidate discards all cached results.
func (q *QueryCache) Invalidate() {
	q.generation.Add(1)
}
