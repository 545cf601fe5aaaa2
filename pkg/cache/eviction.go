package cache

import (
	"time"

	"go.uber.org/zap"
)

// evict removes at most one entry according to the configured policy.
// Must be called with c.mu held.
func (c *Cache[V]) evict(now time.Time) {
	var victim *Entry[V]

	switch c.config.Policy {
	case PolicyLRU:
		victim = c.leastRecentlyUsed()
	case PolicyFIFO:
		victim = c.firstInserted()
	case PolicyTTL:
		victim = c.firstExpired(now)
	}

	if victim == nil {
		// Only PolicyTTL gets here with a non-empty cache; the insert goes ahead over capacity.
		c.logger.Debug("cache full with no expired entry to evict",
			zap.Int("size", len(c.data)),
			zap.Int("max_size", c.config.MaxSize),
		)
		return
	}

	c.remove(victim, Evicted)

	c.logger.Debug("cache evicted entry",
		zap.String("key", victim.Key),
		zap.String("policy", c.config.Policy.String()),
	)
}

// leastRecentlyUsed returns the entry whose last access is oldest
func (c *Cache[V]) leastRecentlyUsed() *Entry[V] {
	var oldest *Entry[V]
	for _, entry := range c.data {
		if oldest == nil || entry.accessSeq < oldest.accessSeq {
			oldest = entry
		}
	}
	return oldest
}

// firstInserted returns the entry created earliest
func (c *Cache[V]) firstInserted() *Entry[V] {
	var first *Entry[V]
	for _, entry := range c.data {
		if first == nil || entry.insertSeq < first.insertSeq {
			first = entry
		}
	}
	return first
}

// firstExpired returns the earliest inserted entry that is past its TTL, or nil
func (c *Cache[V]) firstExpired(now time.Time) *Entry[V] {
	var first *Entry[V]
	for _, entry := range c.data {
		if !entry.ExpiredAt(now) {
			continue
		}
		if first == nil || entry.insertSeq < first.insertSeq {
			first = entry
		}
	}
	return first
}
