package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgebound/gateway/internal/config"
	"github.com/edgebound/gateway/internal/observability"
)

func wiringConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{
			Port:                8080,
			APIPrefix:           "/api",
			JWTSecret:           "wiring-test-secret",
			RateLimitWindow:     config.Duration(time.Minute),
			RateLimitMax:        100,
			HealthCheckInterval: config.Duration(30 * time.Second),
			HeapLimitBytes:      config.DefaultHeapLimitBytes,
		},
		Services: []config.ServiceConfig{
			{
				Name:            "users",
				URL:             "http://localhost:3001",
				HealthCheckPath: "/health",
				Timeout:         config.Duration(time.Second),
				MaxRetries:      3,
			},
		},
		Routes: []config.RouteConfig{
			{Prefix: "/api/users", Service: "users", StripPrefix: true, AuthRequired: true},
			{
				Prefix:    "/api/limited",
				Service:   "users",
				RateLimit: &config.RouteRateLimit{Window: config.Duration(time.Minute), Max: 5},
			},
		},
	}
}

func TestNewApplication(t *testing.T) {
	app, err := newApplication(wiringConfig(), observability.NopLogger())
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.NotNil(t, app.registry)
	assert.NotNil(t, app.limiter)
	assert.NotNil(t, app.server)
	assert.Len(t, app.routeLimiters, 1)
	assert.Equal(t, 5, app.routeLimiters[0].Limit())
}

func TestNewApplication_MissingJWTSecret(t *testing.T) {
	cfg := wiringConfig()
	cfg.Gateway.JWTSecret = ""

	_, err := newApplication(cfg, observability.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token verifier")
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("WIRING_TEST_KEY", "from-env")
	assert.Equal(t, "from-env", getEnvOrDefault("WIRING_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("WIRING_TEST_KEY_MISSING", "fallback"))
}
