package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/navy-pdm/pdm-guardian/pkg/cache"
	"github.com/navy-pdm/pdm-guardian/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 50051, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Mode)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, DefaultCaches(), cfg.Caches)
	assert.Empty(t, cfg.Limits)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 6000
  mode: production
log:
  level: warn
throttle:
  rate: 200
  burst: 50
caches:
  parts:
    ttl: 90s
    max_size: 25
    policy: fifo
limits:
  - action: /pdm.WorkOrders/Create
    max_requests: 3
    window: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Mode)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ThrottleConfig{Rate: 200, Burst: 50}, cfg.Throttle)
	assert.Equal(t, map[string]cache.Config{
		"parts": {TTL: 90 * time.Second, MaxSize: 25, Policy: cache.PolicyFIFO},
	}, cfg.Caches)
	require.Len(t, cfg.Limits, 1)
	assert.Equal(t, "/pdm.WorkOrders/Create", cfg.Limits[0].Action)
	assert.Equal(t, ratelimit.Limit{MaxRequests: 3, Window: time.Minute}, cfg.Limits[0].Limit)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PDM_SERVER_PORT", "7070")
	t.Setenv("PDM_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "server:\n  port: 6000\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port out of range", "server:\n  port: 80\n"},
		{"unknown mode", "server:\n  mode: staging\n"},
		{"unknown log level", "log:\n  level: verbose\n"},
		{"unknown policy", "caches:\n  parts:\n    ttl: 1m\n    max_size: 10\n    policy: random\n"},
		{"zero capacity", "caches:\n  parts:\n    ttl: 1m\n    max_size: 0\n    policy: lru\n"},
		{"zero window", "limits:\n  - action: export\n    max_requests: 3\n    window: 0s\n"},
		{"limit without action", "limits:\n  - max_requests: 3\n    window: 1m\n"},
		{"tracing without endpoint", "tracing:\n  enabled: true\n  endpoint: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnknownPolicyIsWrapped(t *testing.T) {
	_, err := Load(writeConfig(t, "caches:\n  parts:\n    ttl: 1m\n    max_size: 10\n    policy: random\n"))
	assert.ErrorIs(t, err, cache.ErrUnknownPolicy)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
