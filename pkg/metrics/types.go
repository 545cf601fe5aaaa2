// Package metrics provides Prometheus instrumentation for the guard middleware,
// the rate limiter and the cache registry
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for metrics collection
type MetricsCollector interface {
	// RecordRequest records a completed request with duration and status
	RecordRequest(method string, code string, duration time.Duration)

	// RecordCacheLookup records a response cache hit or miss for a method
	RecordCacheLookup(method string, hit bool)

	// RecordRateLimited records an event rejected by the rate limiter
	RecordRateLimited(key string)

	// GetRegistry returns the prometheus registry
	GetRegistry() *prometheus.Registry
}

// Config holds configuration for metrics collection
type Config struct {
	// Namespace for metrics (e.g., "pdm")
	Namespace string

	// Subsystem for metrics (e.g., "guardian")
	Subsystem string

	// Enable histogram buckets for latency distribution
	EnableHistogram bool

	// Custom histogram buckets (in seconds)
	HistogramBuckets []float64

	// Constant labels to add to all metrics
	ConstLabels map[string]string
}

// DefaultConfig returns the default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace:       "pdm",
		Subsystem:       "guardian",
		EnableHistogram: true,
		HistogramBuckets: []float64{
			0.001, // 1ms, cache hits
			0.005,
			0.025,
			0.1,
			0.25,
			0.5,
			1.0,
			2.5, // warehouse queries
			5.0,
			10.0,
		},
		ConstLabels: make(map[string]string),
	}
}

// ConfigOption is a function that configures a Config
type ConfigOption func(*Config)

// WithNamespace sets the namespace for metrics
func WithNamespace(namespace string) ConfigOption {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the subsystem for metrics
func WithSubsystem(subsystem string) ConfigOption {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithHistogramBuckets sets custom histogram buckets
func WithHistogramBuckets(buckets []float64) ConfigOption {
	return func(c *Config) {
		c.HistogramBuckets = buckets
	}
}

// WithConstLabels sets constant labels for all metrics
func WithConstLabels(labels map[string]string) ConfigOption {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithoutHistogram disables histogram metrics
func WithoutHistogram() ConfigOption {
	return func(c *Config) {
		c.EnableHistogram = false
	}
}
