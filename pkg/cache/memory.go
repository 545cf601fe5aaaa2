package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache is a bounded in-memory key-value store with per-entry TTL.
//
// A Cache starts a sweep goroutine when created. Call Close when the cache is no
// longer needed, otherwise the goroutine runs for the life of the process:
//
//	c, err := cache.New[string](cache.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
type Cache[V any] struct {
	mu      sync.Mutex
	data    map[string]*Entry[V]
	config  Config
	seq     uint64
	stats   Stats
	now     func() time.Time
	logger  *zap.Logger
	onEvict func(key string, value V, reason RemovalReason)

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
	closeOnce     sync.Once
}

// Option configures optional collaborators of a Cache
type Option[V any] func(*Cache[V])

// WithClock replaces time.Now, mainly for tests
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// WithLogger sets the logger used for eviction and sweep diagnostics
func WithLogger[V any](logger *zap.Logger) Option[V] {
	return func(c *Cache[V]) {
		c.logger = logger
	}
}

// WithEvictionCallback sets a function called when an entry is evicted or expires.
// It runs with the cache locked and must not call back into the cache.
func WithEvictionCallback[V any](fn func(key string, value V, reason RemovalReason)) Option[V] {
	return func(c *Cache[V]) {
		c.onEvict = fn
	}
}

// withSweepInterval shortens the sweep period so tests can observe the loop
func withSweepInterval[V any](d time.Duration) Option[V] {
	return func(c *Cache[V]) {
		c.sweepInterval = d
	}
}

// New creates a cache and starts its background sweep.
// It fails fast on an unknown policy or a non-positive size or TTL.
func New[V any](config Config, opts ...Option[V]) (*Cache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Cache[V]{
		data:          make(map[string]*Entry[V]),
		config:        config,
		now:           time.Now,
		logger:        zap.NewNop(),
		sweepInterval: DefaultSweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	c.stats.MaxSize = config.MaxSize

	for _, opt := range opts {
		opt(c)
	}

	go c.startSweep()

	return c, nil
}

// Config returns the configuration the cache was created with
func (c *Cache[V]) Config() Config {
	return c.config
}

// Set stores value under key with the configured TTL
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value under key with its own TTL. A non-positive ttl uses the
// configured TTL. Overwriting a key resets its creation time and access count.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.TTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	_, exists := c.data[key]
	if !exists && len(c.data) >= c.config.MaxSize {
		c.evict(now)
	}

	c.seq++
	c.data[key] = &Entry[V]{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		TTL:            ttl,
		LastAccessedAt: now,
		insertSeq:      c.seq,
		accessSeq:      c.seq,
	}
	c.stats.Sets++
}

// Get returns the value stored under key. Missing and expired keys report false;
// an expired entry is removed on the way out.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.live(key, now)
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	c.seq++
	entry.AccessCount++
	entry.LastAccessedAt = now
	entry.accessSeq = c.seq
	c.stats.Hits++

	return entry.Value, true
}

// Has reports whether Get would find key. It applies the same expiry check but
// does not count as an access.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.live(key, c.now())
	return ok
}

// Delete removes key and reports whether it was present
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists {
		return false
	}
	delete(c.data, key)
	c.stats.Deletes++
	return true
}

// Clear removes every entry
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*Entry[V])
}

// Len returns the number of stored entries, including expired ones the sweep
// has not removed yet
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}

// Keys returns every stored key in insertion order, including expired ones the
// sweep has not removed yet
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]*Entry[V], 0, len(c.data))
	for _, entry := range c.data {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].insertSeq < entries[j].insertSeq
	})

	keys := make([]string, len(entries))
	for i, entry := range entries {
		keys[i] = entry.Key
	}
	return keys
}

// Stats returns a snapshot of the cache statistics
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = len(c.data)

	if reads := s.Hits + s.Misses; reads > 0 {
		s.HitRate = float64(s.Hits) / float64(reads)
	}

	var accesses uint64
	for _, entry := range c.data {
		accesses += entry.AccessCount
		if s.OldestEntry.IsZero() || entry.CreatedAt.Before(s.OldestEntry) {
			s.OldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(s.NewestEntry) {
			s.NewestEntry = entry.CreatedAt
		}
	}
	if s.Size > 0 {
		s.AverageAccesses = float64(accesses) / float64(s.Size)
	}

	return s
}

// Close stops the sweep goroutine. It is safe to call more than once, and the
// cache stays usable afterwards without background expiry.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopSweep)
	})
}

// live returns the entry for key if it exists and has not expired.
// Must be called with c.mu held.
func (c *Cache[V]) live(key string, now time.Time) (*Entry[V], bool) {
	entry, exists := c.data[key]
	if !exists {
		return nil, false
	}
	if entry.ExpiredAt(now) {
		c.remove(entry, Expired)
		return nil, false
	}
	return entry, true
}

// remove drops entry from the map, counts it and notifies the callback.
// Must be called with c.mu held.
func (c *Cache[V]) remove(entry *Entry[V], reason RemovalReason) {
	delete(c.data, entry.Key)

	switch reason {
	case Evicted:
		c.stats.Evictions++
	case Expired:
		c.stats.Expirations++
	}

	if c.onEvict != nil {
		c.onEvict(entry.Key, entry.Value, reason)
	}
}

// startSweep runs the background expiry loop until Close
func (c *Cache[V]) startSweep() {
	defer close(c.sweepDone)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopSweep:
			return
		}
	}
}

// sweep removes every expired entry and returns how many it removed
func (c *Cache[V]) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, entry := range c.data {
		if entry.ExpiredAt(now) {
			c.remove(entry, Expired)
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debug("cache sweep removed expired entries",
			zap.Int("removed", removed),
			zap.Int("remaining", len(c.data)),
		)
	}

	return removed
}
