package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector for Prometheus
type PrometheusCollector struct {
	config   *Config
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector with its own registry
func NewPrometheusCollector(opts ...ConfigOption) *PrometheusCollector {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	p := &PrometheusCollector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	p.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of gRPC requests handled",
			ConstLabels: config.ConstLabels,
		},
		[]string{"method", "code"},
	)

	p.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cache_lookups_total",
			Help:        "Response cache lookups by outcome",
			ConstLabels: config.ConstLabels,
		},
		[]string{"method", "result"},
	)

	p.rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "rate_limited_total",
			Help:        "Events rejected by the sliding-window rate limiter",
			ConstLabels: config.ConstLabels,
		},
		[]string{"key"},
	)

	p.registry.MustRegister(p.requestsTotal, p.cacheLookups, p.rateLimited)

	if config.EnableHistogram {
		p.requestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "request_duration_seconds",
				Help:        "Histogram of gRPC request duration in seconds",
				Buckets:     config.HistogramBuckets,
				ConstLabels: config.ConstLabels,
			},
			[]string{"method", "code"},
		)
		p.registry.MustRegister(p.requestDuration)
	}

	return p
}

// RecordRequest records a completed request
func (p *PrometheusCollector) RecordRequest(method string, code string, duration time.Duration) {
	p.requestsTotal.WithLabelValues(method, code).Inc()
	if p.requestDuration != nil {
		p.requestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
	}
}

// RecordCacheLookup records a response cache hit or miss
func (p *PrometheusCollector) RecordCacheLookup(method string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(method, result).Inc()
}

// RecordRateLimited records a rejected event
func (p *PrometheusCollector) RecordRateLimited(key string) {
	p.rateLimited.WithLabelValues(key).Inc()
}

// GetRegistry returns the Prometheus registry
func (p *PrometheusCollector) GetRegistry() *prometheus.Registry {
	return p.registry
}

// MustRegister registers a custom collector
func (p *PrometheusCollector) MustRegister(collectors ...prometheus.Collector) {
	p.registry.MustRegister(collectors...)
}
