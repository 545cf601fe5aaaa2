package middleware

import (
	"context"
	"time"

	guardian "github.com/navy-pdm/pdm-guardian"
	"github.com/navy-pdm/pdm-guardian/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics records count and latency of every RPC on the collector
func Metrics(collector metrics.MetricsCollector) guardian.Middleware {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		collector.RecordRequest(info.FullMethod, status.Code(err).String(), time.Since(start))

		return resp, err
	}
}
