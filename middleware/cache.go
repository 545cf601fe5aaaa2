package middleware

import (
	"context"
	"time"

	guardian "github.com/navy-pdm/pdm-guardian"
	"github.com/navy-pdm/pdm-guardian/pkg/cache"
	"github.com/navy-pdm/pdm-guardian/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// CachedResponse is what the response cache stores for one request
type CachedResponse struct {
	Response interface{}
	Code     codes.Code // codes.OK for successful responses
	Message  string
}

// ResponseCache is the cache type the caching middleware works on
type ResponseCache = cache.Cache[CachedResponse]

// CacheConfig holds configuration for caching middleware
type CacheConfig struct {
	KeyGenerator cache.KeyGenerator       // Key generation strategy
	TTL          time.Duration            // Default TTL; 0 uses the cache's own TTL
	MethodTTLs   map[string]time.Duration // Per-method TTL overrides
	SkipMethods  map[string]bool          // Methods to skip caching
	OnlyMethods  map[string]bool          // Only cache these methods (if set)
	CacheErrors  bool                     // Whether to cache error responses
	Collector    metrics.MetricsCollector // Records hits and misses when set
}

// CacheOption is a functional option for cache configuration
type CacheOption func(*CacheConfig)

// WithKeyGenerator sets the key generation strategy
func WithKeyGenerator(gen cache.KeyGenerator) CacheOption {
	return func(c *CacheConfig) {
		c.KeyGenerator = gen
	}
}

// WithTTL sets the default TTL for cached responses
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CacheConfig) {
		c.TTL = ttl
	}
}

// WithMethodTTL sets a custom TTL for a specific method
func WithMethodTTL(method string, ttl time.Duration) CacheOption {
	return func(c *CacheConfig) {
		if c.MethodTTLs == nil {
			c.MethodTTLs = make(map[string]time.Duration)
		}
		c.MethodTTLs[method] = ttl
	}
}

// WithSkipMethod skips caching for a specific method
func WithSkipMethod(method string) CacheOption {
	return func(c *CacheConfig) {
		if c.SkipMethods == nil {
			c.SkipMethods = make(map[string]bool)
		}
		c.SkipMethods[method] = true
	}
}

// WithOnlyMethod only caches specific methods
func WithOnlyMethod(method string) CacheOption {
	return func(c *CacheConfig) {
		if c.OnlyMethods == nil {
			c.OnlyMethods = make(map[string]bool)
		}
		c.OnlyMethods[method] = true
	}
}

// WithCacheErrors enables caching of error responses
func WithCacheErrors() CacheOption {
	return func(c *CacheConfig) {
		c.CacheErrors = true
	}
}

// WithCacheMetrics records hits and misses on the collector
func WithCacheMetrics(collector metrics.MetricsCollector) CacheOption {
	return func(c *CacheConfig) {
		c.Collector = collector
	}
}

// Cache creates a response caching middleware backed by store. The caller owns
// store and closes it on shutdown.
//
// Protobuf responses are cloned on every hit so handlers further out in the
// chain cannot modify the cached copy.
func Cache(store *ResponseCache, opts ...CacheOption) guardian.Middleware {
	config := &CacheConfig{
		KeyGenerator: cache.NewHashKeyGenerator(),
	}

	for _, opt := range opts {
		opt(config)
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		method := info.FullMethod

		if !shouldCache(method, config) {
			return handler(ctx, req)
		}

		key, err := config.KeyGenerator.GenerateKey(method, req)
		if err != nil {
			// Uncacheable request, serve it directly
			return handler(ctx, req)
		}

		span := trace.SpanFromContext(ctx)

		if cached, found := store.Get(key); found {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			if config.Collector != nil {
				config.Collector.RecordCacheLookup(method, true)
			}

			if cached.Code != codes.OK {
				return nil, status.Error(cached.Code, cached.Message)
			}
			if msg, ok := cached.Response.(proto.Message); ok {
				return proto.Clone(msg), nil
			}
			return cached.Response, nil
		}

		span.SetAttributes(attribute.Bool("cache.hit", false))
		if config.Collector != nil {
			config.Collector.RecordCacheLookup(method, false)
		}

		resp, err := handler(ctx, req)
		if err != nil && !config.CacheErrors {
			return resp, err
		}

		entry := CachedResponse{Response: resp, Code: codes.OK}
		if err != nil {
			st := status.Convert(err)
			entry = CachedResponse{Code: st.Code(), Message: st.Message()}
		} else if msg, ok := resp.(proto.Message); ok {
			entry.Response = proto.Clone(msg)
		}

		ttl := config.TTL
		if methodTTL, ok := config.MethodTTLs[method]; ok {
			ttl = methodTTL
		}
		store.SetWithTTL(key, entry, ttl)

		return resp, err
	}
}

// shouldCache determines if a method should be cached
func shouldCache(method string, config *CacheConfig) bool {
	if len(config.OnlyMethods) > 0 {
		return config.OnlyMethods[method]
	}

	return !config.SkipMethods[method]
}

// InvalidateCache removes the cached response for one request, for example after
// a work order update. It reports whether an entry was removed.
func InvalidateCache(store *ResponseCache, gen cache.KeyGenerator, method string, req interface{}) (bool, error) {
	if gen == nil {
		gen = cache.NewHashKeyGenerator()
	}

	key, err := gen.GenerateKey(method, req)
	if err != nil {
		return false, err
	}

	return store.Delete(key), nil
}

// ClearCache clears all cache entries
func ClearCache(store *ResponseCache) {
	store.Clear()
}

// CacheStats returns cache statistics
func CacheStats(store *ResponseCache) cache.Stats {
	return store.Stats()
}
