// Package config loads the gateway configuration from YAML and PDM_ environment
// variables
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/navy-pdm/pdm-guardian/pkg/cache"
	"github.com/navy-pdm/pdm-guardian/pkg/ratelimit"
	"github.com/navy-pdm/pdm-guardian/pkg/tracing"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PDM_SERVER_PORT
const EnvPrefix = "PDM"

// Config is the complete gateway configuration
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Log      LogConfig               `mapstructure:"log"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
	Throttle ThrottleConfig          `mapstructure:"throttle"`
	Caches   map[string]cache.Config `mapstructure:"caches"`
	Limits   []ActionLimit           `mapstructure:"limits" validate:"dive"`
	Tracing  tracing.Config          `mapstructure:"tracing"`
}

// ServerConfig holds the gRPC listener settings
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gte=1024,lte=65535"`
	Mode            string        `mapstructure:"mode" validate:"required,oneof=development production"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig selects the zap log level
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// MetricsConfig is where the Prometheus endpoint listens
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

// ThrottleConfig is the global token bucket in front of the per-action limits.
// A zero rate disables it.
type ThrottleConfig struct {
	Rate  float64 `mapstructure:"rate" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

// ActionLimit is the sliding-window budget of one gated action. Actions are a
// list rather than a map because method names contain dots and mixed case.
type ActionLimit struct {
	Action          string `mapstructure:"action" validate:"required"`
	ratelimit.Limit `mapstructure:",squash"`
}

// DefaultCaches are the cache categories used when none are configured
func DefaultCaches() map[string]cache.Config {
	return map[string]cache.Config{
		"work-orders":     {TTL: 2 * time.Minute, MaxSize: 500, Policy: cache.PolicyLRU},
		"parts":           {TTL: 10 * time.Minute, MaxSize: 1000, Policy: cache.PolicyLRU},
		"notifications":   {TTL: 30 * time.Second, MaxSize: 200, Policy: cache.PolicyFIFO},
		"analytics":       {TTL: 5 * time.Minute, MaxSize: 50, Policy: cache.PolicyTTL},
		"sensor-readings": {TTL: 15 * time.Second, MaxSize: 2000, Policy: cache.PolicyFIFO},
	}
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", 50051)
	vip.SetDefault("server.mode", "development")
	vip.SetDefault("server.shutdown_timeout", "10s")
	vip.SetDefault("log.level", "info")
	vip.SetDefault("metrics.addr", ":9090")
	vip.SetDefault("throttle.rate", 0)
	vip.SetDefault("throttle.burst", 0)

	t := tracing.DefaultConfig()
	vip.SetDefault("tracing.enabled", t.Enabled)
	vip.SetDefault("tracing.service_name", t.ServiceName)
	vip.SetDefault("tracing.service_version", t.ServiceVersion)
	vip.SetDefault("tracing.environment", t.Environment)
	vip.SetDefault("tracing.endpoint", t.Endpoint)
	vip.SetDefault("tracing.sampling_rate", t.SamplingRate)
	vip.SetDefault("tracing.max_export_batch", t.MaxExportBatch)
	vip.SetDefault("tracing.max_queue_size", t.MaxQueueSize)
}

// Load reads path, or config.yaml from ./configs or the working directory when
// path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	setDefaults(vip)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Caches) == 0 {
		cfg.Caches = DefaultCaches()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and every cache category
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for name, cc := range c.Caches {
		if err := cc.Validate(); err != nil {
			return fmt.Errorf("config validation failed: cache %q: %w", name, err)
		}
	}

	return nil
}
