package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateCache is returned when a name is registered twice
var ErrDuplicateCache = errors.New("cache already registered")

// Managed is the type-independent view of a cache held by a Registry
type Managed interface {
	Config() Config
	Stats() Stats
	Len() int
	Clear()
	Close()
}

// Registry holds named caches, one per data category, so categories never
// compete for the same capacity. Create one per application and pass it to
// whatever needs it; Close it on shutdown.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]Managed
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		caches: make(map[string]Managed),
	}
}

// Register adds a cache under name
func (r *Registry) Register(name string, c Managed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.caches[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCache, name)
	}
	r.caches[name] = c
	return nil
}

// Create builds a cache and registers it under name. The cache is closed again
// if registration fails.
func Create[V any](r *Registry, name string, config Config, opts ...Option[V]) (*Cache[V], error) {
	c, err := New[V](config, opts...)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}

	if err := r.Register(name, c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Named returns the cache registered under name if it holds values of type V
func Named[V any](r *Registry, name string) (*Cache[V], bool) {
	m, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	c, ok := m.(*Cache[V])
	return c, ok
}

// Lookup returns the cache registered under name
func (r *Registry) Lookup(name string) (Managed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caches[name]
	return c, ok
}

// Remove closes and unregisters the cache under name
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	c, ok := r.caches[name]
	delete(r.caches, name)
	r.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the statistics of every registered cache keyed by name
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.caches))
	for name, c := range r.caches {
		out[name] = c.Stats()
	}
	return out
}

// ClearAll empties every registered cache
func (r *Registry) ClearAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.caches {
		c.Clear()
	}
}

// Close stops the sweep of every registered cache and empties the registry
func (r *Registry) Close() {
	r.mu.Lock()
	caches := r.caches
	r.caches = make(map[string]Managed)
	r.mu.Unlock()

	for _, c := range caches {
		c.Close()
	}
}
