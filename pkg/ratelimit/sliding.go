// Package ratelimit provides a per-key sliding-window rate limiter
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Limit is the budget for one key: at most MaxRequests events within any
// trailing Window
type Limit struct {
	MaxRequests int           `mapstructure:"max_requests" validate:"gt=0"`
	Window      time.Duration `mapstructure:"window" validate:"gt=0"`
}

// Limiter gates named actions with an exact sliding window.
//
// Events older than the window are pruned on every check, so each call costs
// O(n) in the events still inside the window. That suits dashboard-scale
// traffic, not high-throughput gateways.
//
// Keys without a registered limit are always allowed. The first query for such
// a key logs a warning, since a forgotten SetLimit otherwise goes unnoticed.
//
// AllowWithin checks keys that have no registered limit against a budget the
// caller supplies, e.g. one slot per client. Such keys leave no state behind
// once their events age out and Purge runs.
type Limiter struct {
	mu         sync.Mutex
	limits     map[string]Limit
	buckets    map[string]*bucket
	warned     map[string]struct{}
	now        func() time.Time
	logger     *zap.Logger
	onRejected func(key string, limit Limit)
}

// bucket holds the events of one key in arrival order, with the window they
// were last judged against
type bucket struct {
	events []time.Time
	window time.Duration
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger used for unregistered-key warnings
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithOnRejected sets a callback invoked, outside the lock, for every rejected event
func WithOnRejected(fn func(key string, limit Limit)) Option {
	return func(l *Limiter) {
		l.onRejected = fn
	}
}

// New creates a limiter with no registered limits
func New(opts ...Option) *Limiter {
	l := &Limiter{
		limits:  make(map[string]Limit),
		buckets: make(map[string]*bucket),
		warned:  make(map[string]struct{}),
		now:     time.Now,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// SetLimit registers or replaces the budget for key. Events already recorded
// for key are kept and judged against the new budget.
func (l *Limiter) SetLimit(key string, maxRequests int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limits[key] = Limit{MaxRequests: maxRequests, Window: window}
	delete(l.warned, key)
}

// Limit returns the budget registered for key
func (l *Limiter) Limit(key string) (Limit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[key]
	return limit, ok
}

// Allow reports whether one more event for key fits in its window and, if so,
// records it. A rejected event does not consume a slot.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()

	limit, ok := l.limits[key]
	if !ok {
		l.warnUnregistered(key)
		l.mu.Unlock()
		return true
	}

	allowed := l.allow(key, limit)
	l.mu.Unlock()

	if !allowed && l.onRejected != nil {
		l.onRejected(key, limit)
	}
	return allowed
}

// AllowWithin is Allow for a key judged against limit instead of a registered
// budget. Nothing is registered for key, so unbounded key sets such as client
// addresses only cost memory while they have events inside the window.
func (l *Limiter) AllowWithin(key string, limit Limit) bool {
	l.mu.Lock()
	allowed := l.allow(key, limit)
	l.mu.Unlock()

	if !allowed && l.onRejected != nil {
		l.onRejected(key, limit)
	}
	return allowed
}

// Remaining returns how many more events key may record right now. The second
// result is false when key has no limit, meaning it is unbounded. Remaining
// does not modify any state.
func (l *Limiter) Remaining(key string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[key]
	if !ok {
		l.warnUnregistered(key)
		return 0, false
	}

	return l.remaining(key, limit), true
}

// RemainingWithin is Remaining for a key judged against limit
func (l *Limiter) RemainingWithin(key string, limit Limit) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.remaining(key, limit)
}

// Reset forgets every event recorded for key. The limit stays registered.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
}

// Purge drops the state of every key whose events have all left their window
// and returns how many keys it dropped. Keys that are never queried again are
// otherwise kept until Reset.
func (l *Limiter) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	purged := 0
	for key, b := range l.buckets {
		b.events = prune(b.events, now, b.window)
		if len(b.events) == 0 {
			delete(l.buckets, key)
			purged++
		}
	}

	if purged > 0 {
		l.logger.Debug("rate limiter purged idle keys",
			zap.Int("purged", purged),
			zap.Int("tracked", len(l.buckets)),
		)
	}
	return purged
}

// Registered returns the number of keys with a registered limit
func (l *Limiter) Registered() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.limits)
}

// Tracked returns the number of keys currently holding events
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.buckets)
}

// allow prunes, checks and records one event for key. Must be called with l.mu held.
func (l *Limiter) allow(key string, limit Limit) bool {
	now := l.now()

	var events []time.Time
	if b, ok := l.buckets[key]; ok {
		events = prune(b.events, now, limit.Window)
	}

	allowed := len(events) < limit.MaxRequests
	if allowed {
		events = append(events, now)
	}
	l.store(key, events, limit.Window)
	return allowed
}

// remaining counts free slots for key without pruning. Must be called with l.mu held.
func (l *Limiter) remaining(key string, limit Limit) int {
	now := l.now()
	inWindow := 0
	if b, ok := l.buckets[key]; ok {
		for _, t := range b.events {
			if now.Sub(t) < limit.Window {
				inWindow++
			}
		}
	}

	if remaining := limit.MaxRequests - inWindow; remaining > 0 {
		return remaining
	}
	return 0
}

// store saves events for key, dropping the slot entirely once it is empty.
// Must be called with l.mu held.
func (l *Limiter) store(key string, events []time.Time, window time.Duration) {
	if len(events) == 0 {
		delete(l.buckets, key)
		return
	}
	l.buckets[key] = &bucket{events: events, window: window}
}

// warnUnregistered logs once per key. Must be called with l.mu held.
func (l *Limiter) warnUnregistered(key string) {
	if _, done := l.warned[key]; done {
		return
	}
	l.warned[key] = struct{}{}
	l.logger.Warn("rate limit queried for key without a registered limit; allowing",
		zap.String("key", key),
	)
}

// prune drops events outside the window ending at now. Events are kept in
// arrival order, so the survivors are a suffix of the slice.
func prune(events []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(events) && now.Sub(events[i]) >= window {
		i++
	}
	if i == 0 {
		return events
	}
	return append(events[:0], events[i:]...)
}
