// Package cache provides bounded in-memory caches with TTL expiry and pluggable eviction
package cache

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultSweepInterval is how often a cache removes expired entries in the background
const DefaultSweepInterval = 60 * time.Second

var (
	// ErrUnknownPolicy is returned when a cache is configured with an unrecognized eviction policy
	ErrUnknownPolicy = errors.New("unknown eviction policy")

	// ErrInvalidConfig is returned when a cache configuration fails validation
	ErrInvalidConfig = errors.New("invalid cache config")
)

// Policy selects the victim when a full cache receives a new key
type Policy string

const (
	// PolicyLRU evicts the entry with the oldest last access
	PolicyLRU Policy = "lru"

	// PolicyFIFO evicts the entry inserted first, regardless of access
	PolicyFIFO Policy = "fifo"

	// PolicyTTL evicts the first already-expired entry it finds. When nothing has
	// expired nothing is evicted and the insert still happens, so the cache may
	// hold more than MaxSize entries until the next sweep.
	PolicyTTL Policy = "ttl"
)

// ParsePolicy converts a case-insensitive policy name into a Policy
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
	return p, nil
}

// Valid reports whether p is one of the recognized policies
func (p Policy) Valid() bool {
	switch p {
	case PolicyLRU, PolicyFIFO, PolicyTTL:
		return true
	default:
		return false
	}
}

func (p Policy) String() string {
	return string(p)
}

// Config holds the immutable configuration of a cache instance
type Config struct {
	TTL     time.Duration `mapstructure:"ttl" validate:"gt=0"`      // Default time-to-live for entries
	MaxSize int           `mapstructure:"max_size" validate:"gt=0"` // Capacity in entries
	Policy  Policy        `mapstructure:"policy" validate:"required"`
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		TTL:     5 * time.Minute,
		MaxSize: 100,
		Policy:  PolicyLRU,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks the configuration. Policy problems are reported as ErrUnknownPolicy
// so callers can tell a misspelled policy apart from a bad size or TTL.
func (c Config) Validate() error {
	if !c.Policy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, c.Policy)
	}

	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Entry is a stored value together with its bookkeeping
type Entry[V any] struct {
	Key            string
	Value          V
	CreatedAt      time.Time     // Insertion time, reset on overwrite
	TTL            time.Duration // Time-to-live measured from CreatedAt
	AccessCount    uint64        // Successful reads since insertion
	LastAccessedAt time.Time     // Last successful read, or insertion time

	insertSeq uint64
	accessSeq uint64
}

// ExpiredAt reports whether the entry is past its TTL at the given time
func (e *Entry[V]) ExpiredAt(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// RemovalReason describes why an entry left the cache without an explicit Delete
type RemovalReason int

const (
	// Evicted means the entry was chosen as a victim to make room for a new key
	Evicted RemovalReason = iota
	// Expired means the entry outlived its TTL and was removed by a read or the sweep
	Expired
)

func (r RemovalReason) String() string {
	switch r {
	case Evicted:
		return "evicted"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Stats holds cache statistics
type Stats struct {
	Size        int    // Stored entries, including expired ones not yet swept
	MaxSize     int    // Configured capacity
	Hits        uint64 // Reads that found a live entry
	Misses      uint64 // Reads that found nothing or an expired entry
	Sets        uint64 // Inserts and overwrites
	Deletes     uint64 // Explicit deletes that removed an entry
	Evictions   uint64 // Entries removed to make room
	Expirations uint64 // Entries removed because their TTL elapsed

	// HitRate is Hits / (Hits + Misses), 0 when there were no reads
	HitRate float64

	// AverageAccesses is the summed AccessCount of stored entries divided by Size.
	// It describes how often the current entries were read, not how often reads hit.
	AverageAccesses float64

	OldestEntry time.Time // Earliest CreatedAt among stored entries, zero when empty
	NewestEntry time.Time // Latest CreatedAt among stored entries, zero when empty
}
