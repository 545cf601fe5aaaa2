package middleware

import (
	"context"
	"net"
	"strconv"

	guardian "github.com/navy-pdm/pdm-guardian"
	"github.com/navy-pdm/pdm-guardian/pkg/metrics"
	"github.com/navy-pdm/pdm-guardian/pkg/ratelimit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RemainingHeader is the response header carrying the remaining budget of a limited key
const RemainingHeader = "x-ratelimit-remaining"

// RateLimitConfig holds configuration for rate limiting middleware
type RateLimitConfig struct {
	ClientID  func(ctx context.Context) string // Splits budgets per client when set
	Collector metrics.MetricsCollector
	Logger    *zap.Logger
}

// RateLimitOption is a functional option for rate limit configuration
type RateLimitOption func(*RateLimitConfig)

// ByClient gives every client its own copy of the method's budget
func ByClient(clientID func(ctx context.Context) string) RateLimitOption {
	return func(c *RateLimitConfig) {
		c.ClientID = clientID
	}
}

// WithRateLimitMetrics records rejections on the collector
func WithRateLimitMetrics(collector metrics.MetricsCollector) RateLimitOption {
	return func(c *RateLimitConfig) {
		c.Collector = collector
	}
}

// WithRateLimitLogger sets the logger for rejected requests
func WithRateLimitLogger(logger *zap.Logger) RateLimitOption {
	return func(c *RateLimitConfig) {
		c.Logger = logger
	}
}

// RateLimit gates every RPC on the limiter. The gated action is the full
// method name, so budgets are registered with limiter.SetLimit(fullMethod, ...).
// Methods without a budget pass through.
//
// With ByClient every client gets its own copy of the method's budget under the
// limiter key "<method>@<client>". Those keys are checked with AllowWithin and
// never registered, so call limiter.Purge periodically to release clients that
// went quiet. Rejections are recorded per method, not per client.
func RateLimit(limiter *ratelimit.Limiter, opts ...RateLimitOption) guardian.Middleware {
	config := &RateLimitConfig{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(config)
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		key := info.FullMethod
		limit, limited := limiter.Limit(key)

		var allowed bool
		if limited && config.ClientID != nil {
			key = info.FullMethod + "@" + clientOrUnknown(config.ClientID(ctx))
			allowed = limiter.AllowWithin(key, limit)
		} else {
			allowed = limiter.Allow(key)
		}

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.String("ratelimit.key", key),
			attribute.Bool("ratelimit.allowed", allowed),
		)

		if !allowed {
			if config.Collector != nil {
				config.Collector.RecordRateLimited(info.FullMethod)
			}
			config.Logger.Warn("request rate limited",
				zap.String("method", info.FullMethod),
				zap.String("key", key),
				zap.Int("max_requests", limit.MaxRequests),
				zap.Duration("window", limit.Window),
			)
			return nil, status.Errorf(codes.ResourceExhausted,
				"rate limit exceeded for %s: %d requests per %s", info.FullMethod, limit.MaxRequests, limit.Window)
		}

		if limited {
			remaining := limiter.RemainingWithin(key, limit)
			// Fails outside a real server stream, e.g. in unit tests
			_ = grpc.SetHeader(ctx, metadata.Pairs(RemainingHeader, strconv.Itoa(remaining)))
		}

		return handler(ctx, req)
	}
}

// Throttle applies one global token bucket to all RPCs, in front of the
// per-action sliding windows
func Throttle(ratePerSec float64, burst int) guardian.Middleware {
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), burst)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limiter.Allow() {
			return nil, status.Errorf(codes.ResourceExhausted, "server busy, retry later")
		}

		return handler(ctx, req)
	}
}

// ExtractClientIP identifies the caller by forwarded headers, then by the
// transport peer address. Callers can set those headers freely, so use it only
// behind a proxy that overwrites them; otherwise use ExtractPeerIP.
func ExtractClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if xff := md.Get("x-forwarded-for"); len(xff) > 0 {
			return xff[0]
		}
		if xri := md.Get("x-real-ip"); len(xri) > 0 {
			return xri[0]
		}
	}

	return ExtractPeerIP(ctx)
}

// ExtractPeerIP identifies the caller by the transport peer address only
func ExtractPeerIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}

	return "unknown"
}

func clientOrUnknown(id string) string {
	if id == "" {
		return "unknown"
	}
	return id
}
