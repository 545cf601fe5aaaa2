// Package tracing configures the OpenTelemetry tracer provider and the Jaeger
// exporter used by the gateway
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config represents the tracing configuration
type Config struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name" validate:"required_if=Enabled true"`
	ServiceVersion string  `mapstructure:"service_version"`
	Environment    string  `mapstructure:"environment"`
	Endpoint       string  `mapstructure:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	SamplingRate   float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
	MaxExportBatch int     `mapstructure:"max_export_batch" validate:"gte=0"`
	MaxQueueSize   int     `mapstructure:"max_queue_size" validate:"gte=0"`
}

// DefaultConfig returns the default tracing configuration. Tracing is off until
// enabled in configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "pdm-guardian",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "http://localhost:14268/api/traces",
		SamplingRate:   1.0,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}

// Setup installs a global tracer provider exporting to Jaeger. It returns nil
// when tracing is disabled; Shutdown accepts that.
func Setup(ctx context.Context, config Config) (*sdktrace.TracerProvider, error) {
	if !config.Enabled {
		return nil, nil
	}

	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(
			jaeger.WithEndpoint(config.Endpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var batchOpts []sdktrace.BatchSpanProcessorOption
	if config.MaxExportBatch > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(config.MaxExportBatch))
	}
	if config.MaxQueueSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxQueueSize(config.MaxQueueSize))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter, batchOpts...)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(config.SamplingRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return tp, nil
}

// Sampler maps a sampling rate to a parent-based sampler
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0.0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes and stops the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
