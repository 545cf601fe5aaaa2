// Package guardian composes the caching, rate limiting and observability
// interceptors that sit in front of the fleet maintenance services
package guardian

import (
	"context"

	"google.golang.org/grpc"
)

// Middleware is a unary interceptor that can be placed in a Chain
type Middleware func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error)

// Chain runs middleware in the order they were added, outermost first
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from the given middleware
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Append adds middleware to the inner end of the chain
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	c.middlewares = append(c.middlewares, middlewares...)
	return c
}

// Prepend adds middleware to the outer end of the chain
func (c *Chain) Prepend(middlewares ...Middleware) *Chain {
	c.middlewares = append(append([]Middleware(nil), middlewares...), c.middlewares...)
	return c
}

// Len returns the number of middleware in the chain
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// UnaryInterceptor returns a single interceptor running the chain. Later
// changes to the chain do not affect an interceptor already returned.
func (c *Chain) UnaryInterceptor() grpc.UnaryServerInterceptor {
	middlewares := append([]Middleware(nil), c.middlewares...)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		var step func(i int) grpc.UnaryHandler
		step = func(i int) grpc.UnaryHandler {
			if i == len(middlewares) {
				return handler
			}
			return func(ctx context.Context, req interface{}) (interface{}, error) {
				return middlewares[i](ctx, req, info, step(i+1))
			}
		}

		return step(0)(ctx, req)
	}
}

// ServerOptions returns the gRPC server options installing the chain
func (c *Chain) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(c.UnaryInterceptor()),
	}
}
