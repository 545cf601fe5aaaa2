package middleware

import (
	"context"
	"time"

	guardian "github.com/navy-pdm/pdm-guardian"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingConfig holds configuration for logging middleware
type LoggingConfig struct {
	Logger         *zap.Logger
	SlowThreshold  time.Duration // Requests slower than this log at Warn; 0 disables
	LogRequestBody bool
	ExtraFields    []zap.Field
}

// LoggingOption is a functional option for logging configuration
type LoggingOption func(*LoggingConfig)

// WithLogger sets a custom zap logger
func WithLogger(logger *zap.Logger) LoggingOption {
	return func(c *LoggingConfig) {
		c.Logger = logger
	}
}

// WithSlowThreshold logs requests slower than d at Warn level
func WithSlowThreshold(d time.Duration) LoggingOption {
	return func(c *LoggingConfig) {
		c.SlowThreshold = d
	}
}

// WithRequestBody enables request body logging
func WithRequestBody() LoggingOption {
	return func(c *LoggingConfig) {
		c.LogRequestBody = true
	}
}

// WithExtraFields adds fields to every log entry
func WithExtraFields(fields ...zap.Field) LoggingOption {
	return func(c *LoggingConfig) {
		c.ExtraFields = append(c.ExtraFields, fields...)
	}
}

// Logging writes one entry per completed RPC. The level follows the outcome:
// server faults at Error, rejections (including rate limiting) at Warn,
// everything else at Info.
func Logging(opts ...LoggingOption) guardian.Middleware {
	config := &LoggingConfig{
		Logger: zap.L(),
	}

	for _, opt := range opts {
		opt(config)
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		code := status.Code(err)

		fields := make([]zap.Field, 0, 5+len(config.ExtraFields))
		fields = append(fields,
			zap.String("method", info.FullMethod),
			zap.String("grpc_code", code.String()),
			zap.Duration("duration", duration),
		)
		fields = append(fields, config.ExtraFields...)
		if config.LogRequestBody {
			fields = append(fields, zap.Any("request", req))
		}
		if err != nil {
			fields = append(fields, zap.String("error", status.Convert(err).Message()))
		}

		switch code {
		case codes.OK:
			if config.SlowThreshold > 0 && duration > config.SlowThreshold {
				config.Logger.Warn("slow request", append(fields, zap.Duration("threshold", config.SlowThreshold))...)
				break
			}
			config.Logger.Info("request completed", fields...)
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			config.Logger.Error("request failed", fields...)
		case codes.ResourceExhausted, codes.InvalidArgument, codes.NotFound,
			codes.AlreadyExists, codes.PermissionDenied, codes.Unauthenticated:
			config.Logger.Warn("request rejected", fields...)
		default:
			config.Logger.Info("request completed with error", fields...)
		}

		return resp, err
	}
}
