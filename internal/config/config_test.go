package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
gateway:
  port: 9090
  jwtSecret: test-secret
  rateLimitWindow: 30s
  rateLimitMax: 50
services:
  - name: users
    url: http://localhost:3001
    timeout: 2s
    maxRetries: 2
  - name: orders
    url: http://localhost:3002
routes:
  - prefix: /api/users
    service: users
    stripPrefix: true
    authRequired: true
  - prefix: /api/orders
    service: orders
`

// ============================================================================
// Test Cases for Load
// ============================================================================

func TestLoad_ValidFile(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Gateway.Port)
	assert.Equal(t, "test-secret", cfg.Gateway.JWTSecret)
	assert.Equal(t, 30*time.Second, cfg.Gateway.RateLimitWindow.Duration())
	assert.Equal(t, 50, cfg.Gateway.RateLimitMax)

	require.Len(t, cfg.Services, 2)
	assert.Equal(t, "users", cfg.Services[0].Name)
	assert.Equal(t, 2*time.Second, cfg.Services[0].Timeout.Duration())
	assert.Equal(t, 2, cfg.Services[0].MaxRetries)

	require.Len(t, cfg.Routes, 2)
	assert.True(t, cfg.Routes[0].StripPrefix)
	assert.True(t, cfg.Routes[0].AuthRequired)
	assert.False(t, cfg.Routes[1].AuthRequired)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
services:
  - name: users
    url: http://localhost:3001
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Gateway.Port)
	assert.Equal(t, DefaultAPIPrefix, cfg.Gateway.APIPrefix)
	assert.Equal(t, DefaultRateLimitWindow, cfg.Gateway.RateLimitWindow.Duration())
	assert.Equal(t, DefaultRateLimitMax, cfg.Gateway.RateLimitMax)
	assert.Equal(t, DefaultHealthCheckInterval, cfg.Gateway.HealthCheckInterval.Duration())
	assert.Equal(t, DefaultShutdownGrace, cfg.Gateway.ShutdownGrace.Duration())
	assert.Equal(t, uint64(DefaultHeapLimitBytes), cfg.Gateway.HeapLimitBytes)
	assert.Equal(t, "info", cfg.Gateway.Log.Level)
	assert.Equal(t, "json", cfg.Gateway.Log.Format)

	require.Len(t, cfg.Services, 1)
	assert.Equal(t, DefaultHealthCheckPath, cfg.Services[0].HealthCheckPath)
	assert.Equal(t, DefaultServiceTimeout, cfg.Services[0].Timeout.Duration())
	assert.Equal(t, DefaultMaxRetries, cfg.Services[0].MaxRetries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfigFile(t, "gateway: [not: a: map"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Gateway.Port)
	assert.Empty(t, cfg.Services)
}

// ============================================================================
// Test Cases for environment overrides
// ============================================================================

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "7777")
	t.Setenv("GATEWAY_JWT_SECRET", "env-secret")
	t.Setenv("GATEWAY_RATE_LIMIT_WINDOW", "10s")
	t.Setenv("GATEWAY_RATE_LIMIT_MAX", "7")
	t.Setenv("GATEWAY_PRODUCTION", "true")

	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Gateway.Port)
	assert.Equal(t, "env-secret", cfg.Gateway.JWTSecret)
	assert.Equal(t, 10*time.Second, cfg.Gateway.RateLimitWindow.Duration())
	assert.Equal(t, 7, cfg.Gateway.RateLimitMax)
	assert.True(t, cfg.Gateway.Production)
}

func TestLoad_PerServiceEnvOverrides(t *testing.T) {
	t.Setenv("USERS_SERVICE_URL", "http://users.internal:8000")
	t.Setenv("USERS_SERVICE_TIMEOUT", "9s")
	t.Setenv("USERS_SERVICE_RETRIES", "5")
	t.Setenv("USERS_SERVICE_HEALTH_PATH", "/healthz")

	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "http://users.internal:8000", cfg.Services[0].URL)
	assert.Equal(t, 9*time.Second, cfg.Services[0].Timeout.Duration())
	assert.Equal(t, 5, cfg.Services[0].MaxRetries)
	assert.Equal(t, "/healthz", cfg.Services[0].HealthCheckPath)

	// The second service keeps its file values.
	assert.Equal(t, "http://localhost:3002", cfg.Services[1].URL)
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "USERS", envPrefix("users"))
	assert.Equal(t, "ORDER_HISTORY", envPrefix("order-history"))
}

// ============================================================================
// Test Cases for Validate
// ============================================================================

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Gateway: GatewayConfig{Port: 8080},
			Services: []ServiceConfig{
				{Name: "users", URL: "http://localhost:3001"},
			},
			Routes: []RouteConfig{
				{Prefix: "/api/users", Service: "users"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Gateway.Port = 0 },
			wantErr: "invalid port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Gateway.Port = 70000 },
			wantErr: "invalid port",
		},
		{
			name:    "empty service name",
			mutate:  func(c *Config) { c.Services[0].Name = "" },
			wantErr: "empty name",
		},
		{
			name: "duplicate service name",
			mutate: func(c *Config) {
				c.Services = append(c.Services, ServiceConfig{Name: "users", URL: "http://other"})
			},
			wantErr: "duplicate service name",
		},
		{
			name:    "missing URL",
			mutate:  func(c *Config) { c.Services[0].URL = "" },
			wantErr: "has no URL",
		},
		{
			name:    "route prefix without slash",
			mutate:  func(c *Config) { c.Routes[0].Prefix = "api/users" },
			wantErr: "must start with /",
		},
		{
			name:    "route unknown service",
			mutate:  func(c *Config) { c.Routes[0].Service = "ghost" },
			wantErr: "unknown service",
		},
		{
			name: "invalid rate limit override",
			mutate: func(c *Config) {
				c.Routes[0].RateLimit = &RouteRateLimit{Max: 0, Window: Duration(time.Minute)}
			},
			wantErr: "invalid rate limit override",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	_, err := Load(writeConfigFile(t, `
services:
  - name: users
    url: http://localhost:3001
routes:
  - prefix: /api/ghost
    service: ghost
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
}
