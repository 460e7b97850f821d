// Package querycache provides an in-memory TTL+LRU cache for answered queries.
//
// Keys are derived from a normalized form of the query text so that trivial
// variations ("Tin tức mới nhất?", "tin tức  mới nhất") share one entry.
// Expiration is lazy: entries are checked on read and evicted when stale.
// When the cache is full, the least recently used entry is evicted.
//
// The cache must never hold date-sensitive answers; the caller is responsible
// for bypassing it for schedule queries.
package querycache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache is a thread-safe TTL+LRU query cache.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxSize  int
	now      func() time.Time
	entries  map[string]*list.Element
	eviction *list.List // front = most recently used
	hits     uint64
	misses   uint64
}

// entry is the value stored in the eviction list.
type entry struct {
	key      string
	query    string // original query, for Invalidate substring matching
	response any
	storedAt time.Time
}

// Stats is a point-in-time snapshot of cache state.
type Stats struct {
	Size    int           `json:"size"`
	MaxSize int           `json:"max_size"`
	Hits    uint64        `json:"hits"`
	Misses  uint64        `json:"misses"`
	HitRate float64       `json:"hit_rate"`
	TTL     time.Duration `json:"ttl"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a Cache. maxSize must be positive.
func New(ttl time.Duration, maxSize int, opts ...Option) *Cache {
	c := &Cache{
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		entries:  make(map[string]*list.Element),
		eviction: list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// normalize canonicalizes a query for key derivation: lowercase, trimmed,
// trailing punctuation stripped, internal whitespace collapsed.
func normalize(query string) string {
	s := strings.ToLower(strings.TrimSpace(query))
	s = strings.TrimRight(s, "?!.,;:")
	return strings.Join(strings.Fields(s), " ")
}

// key derives the cache key. An empty sourceType scopes the entry to "all".
func key(query, sourceType string) string {
	if sourceType == "" {
		sourceType = "all"
	}
	sum := sha256.Sum256([]byte(normalize(query) + "|" + sourceType))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for query, or false on miss or expiry.
// A hit refreshes the entry's recency; an expired entry is removed.
func (c *Cache) Get(query, sourceType string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key(query, sourceType)]
	if !ok {
		c.misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	c.hits++
	return e.response, true
}

// Set stores a response, evicting least recently used entries as needed.
// Setting an existing key overwrites it and resets its TTL.
func (c *Cache) Set(query, sourceType string, response any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(query, sourceType)
	if elem, ok := c.entries[k]; ok {
		e := elem.Value.(*entry)
		e.response = response
		e.storedAt = c.now()
		c.eviction.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.eviction.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	elem := c.eviction.PushFront(&entry{
		key:      k,
		query:    query,
		response: response,
		storedAt: c.now(),
	})
	c.entries[k] = elem
}

// Invalidate removes entries whose original query contains pattern
// (case-insensitive) and returns the number removed.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	lower := strings.ToLower(pattern)
	removed := 0
	for elem := c.eviction.Front(); elem != nil; {
		next := elem.Next()
		if strings.Contains(strings.ToLower(elem.Value.(*entry).query), lower) {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// InvalidateAll clears the cache. Hit and miss counters are preserved.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.eviction.Init()
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
		TTL:     c.ttl,
	}
}

// removeLocked unlinks an element. Caller holds c.mu.
func (c *Cache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.entries, e.key)
	c.eviction.Remove(elem)
}

// String describes the cache for logs.
func (c *Cache) String() string {
	s := c.Stats()
	return fmt.Sprintf("querycache{size=%d/%d hits=%d misses=%d ttl=%s}",
		s.Size, s.MaxSize, s.Hits, s.Misses, s.TTL)
}
