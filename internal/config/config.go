// Package config provides configuration loading and validation for the gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultPort                = 8080
	DefaultAPIPrefix           = "/api"
	DefaultHealthCheckPath     = "/health"
	DefaultServiceTimeout      = 5 * time.Second
	DefaultMaxRetries          = 3
	DefaultRateLimitWindow     = time.Minute
	DefaultRateLimitMax        = 100
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultShutdownGrace       = 30 * time.Second
	DefaultHeapLimitBytes      = 512 << 20
)

// Config is the root gateway configuration.
type Config struct {
	Gateway  GatewayConfig   `yaml:"gateway"`
	Services []ServiceConfig `yaml:"services"`
	Routes   []RouteConfig   `yaml:"routes"`
}

// GatewayConfig holds settings for the gateway process itself.
type GatewayConfig struct {
	// Port is the listen port for the gateway HTTP server.
	Port int `yaml:"port"`

	// APIPrefix is the path prefix under which requests are routed
	// to backends. Status endpoints live outside this prefix.
	APIPrefix string `yaml:"apiPrefix"`

	// JWTSecret is the shared secret used to verify bearer tokens.
	JWTSecret string `yaml:"jwtSecret"`

	// CORSAllowOrigin is the allowed CORS origin. Empty disables CORS headers.
	CORSAllowOrigin string `yaml:"corsAllowOrigin"`

	// RateLimitWindow is the fixed rate limit window.
	RateLimitWindow Duration `yaml:"rateLimitWindow"`

	// RateLimitMax is the maximum number of requests per window.
	RateLimitMax int `yaml:"rateLimitMax"`

	// HealthCheckInterval is the interval between backend health sweeps.
	HealthCheckInterval Duration `yaml:"healthCheckInterval"`

	// ShutdownGrace is how long in-flight requests may run during shutdown.
	ShutdownGrace Duration `yaml:"shutdownGrace"`

	// HeapLimitBytes is the configured heap budget used by the /live
	// endpoint. Utilization above 90% of this reports unhealthy.
	HeapLimitBytes uint64 `yaml:"heapLimitBytes"`

	// Production suppresses stack traces in error bodies when true.
	Production bool `yaml:"production"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServiceConfig describes one backend service.
type ServiceConfig struct {
	// Name uniquely identifies the service.
	Name string `yaml:"name"`

	// URL is the base URL requests are forwarded to.
	URL string `yaml:"url"`

	// HealthCheckPath is the path probed for health, relative to URL.
	HealthCheckPath string `yaml:"healthCheckPath"`

	// Timeout is the per-call timeout for probes and forwarded requests.
	Timeout Duration `yaml:"timeout"`

	// MaxRetries is the forwarding retry budget.
	MaxRetries int `yaml:"maxRetries"`
}

// RouteConfig maps a path prefix to a backend service.
type RouteConfig struct {
	// Prefix is the path prefix matched against inbound requests.
	Prefix string `yaml:"prefix"`

	// Service is the name of the target backend service.
	Service string `yaml:"service"`

	// StripPrefix removes the matched prefix before forwarding.
	StripPrefix bool `yaml:"stripPrefix"`

	// AuthRequired rejects unauthenticated requests on this route.
	AuthRequired bool `yaml:"authRequired"`

	// RateLimit optionally overrides the global rate limit for this route.
	RateLimit *RouteRateLimit `yaml:"rateLimit"`
}

// RouteRateLimit is a per-route rate limit override.
type RouteRateLimit struct {
	Window Duration `yaml:"window"`
	Max    int      `yaml:"max"`
}

// Load reads configuration from a YAML file, applies environment
// overrides, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}
	if v := os.Getenv("GATEWAY_JWT_SECRET"); v != "" {
		c.Gateway.JWTSecret = v
	}
	if v := os.Getenv("GATEWAY_CORS_ORIGIN"); v != "" {
		c.Gateway.CORSAllowOrigin = v
	}
	if v := os.Getenv("GATEWAY_RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Gateway.RateLimitWindow = Duration(d)
		}
	}
	if v := os.Getenv("GATEWAY_RATE_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.RateLimitMax = n
		}
	}
	if v := os.Getenv("GATEWAY_HEALTH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Gateway.HealthCheckInterval = Duration(d)
		}
	}
	if v := os.Getenv("GATEWAY_PRODUCTION"); v != "" {
		c.Gateway.Production = v == "true" || v == "1"
	}

	// Per-service overrides: <NAME>_SERVICE_URL, <NAME>_SERVICE_TIMEOUT,
	// <NAME>_SERVICE_RETRIES, <NAME>_SERVICE_HEALTH_PATH where NAME is the
	// service name upper-cased with dashes replaced by underscores.
	for i := range c.Services {
		prefix := envPrefix(c.Services[i].Name)
		if v := os.Getenv(prefix + "_SERVICE_URL"); v != "" {
			c.Services[i].URL = v
		}
		if v := os.Getenv(prefix + "_SERVICE_TIMEOUT"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.Services[i].Timeout = Duration(d)
			}
		}
		if v := os.Getenv(prefix + "_SERVICE_RETRIES"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Services[i].MaxRetries = n
			}
		}
		if v := os.Getenv(prefix + "_SERVICE_HEALTH_PATH"); v != "" {
			c.Services[i].HealthCheckPath = v
		}
	}
}

// envPrefix derives the environment variable prefix for a service name.
func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// applyDefaults fills zero values with defaults.
func (c *Config) applyDefaults() {
	if c.Gateway.Port == 0 {
		c.Gateway.Port = DefaultPort
	}
	if c.Gateway.APIPrefix == "" {
		c.Gateway.APIPrefix = DefaultAPIPrefix
	}
	if c.Gateway.RateLimitWindow == 0 {
		c.Gateway.RateLimitWindow = Duration(DefaultRateLimitWindow)
	}
	if c.Gateway.RateLimitMax == 0 {
		c.Gateway.RateLimitMax = DefaultRateLimitMax
	}
	if c.Gateway.HealthCheckInterval == 0 {
		c.Gateway.HealthCheckInterval = Duration(DefaultHealthCheckInterval)
	}
	if c.Gateway.ShutdownGrace == 0 {
		c.Gateway.ShutdownGrace = Duration(DefaultShutdownGrace)
	}
	if c.Gateway.HeapLimitBytes == 0 {
		c.Gateway.HeapLimitBytes = DefaultHeapLimitBytes
	}
	if c.Gateway.Log.Level == "" {
		c.Gateway.Log.Level = "info"
	}
	if c.Gateway.Log.Format == "" {
		c.Gateway.Log.Format = "json"
	}

	for i := range c.Services {
		if c.Services[i].HealthCheckPath == "" {
			c.Services[i].HealthCheckPath = DefaultHealthCheckPath
		}
		if c.Services[i].Timeout == 0 {
			c.Services[i].Timeout = Duration(DefaultServiceTimeout)
		}
		if c.Services[i].MaxRetries == 0 {
			c.Services[i].MaxRetries = DefaultMaxRetries
		}
	}
}

// Validate checks the configuration for consistency. Every route must
// reference a registered service, service names must be unique, and
// URLs must be present.
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Gateway.Port)
	}

	names := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("service with empty name")
		}
		if names[svc.Name] {
			return fmt.Errorf("duplicate service name: %s", svc.Name)
		}
		if svc.URL == "" {
			return fmt.Errorf("service %s has no URL", svc.Name)
		}
		names[svc.Name] = true
	}

	for _, route := range c.Routes {
		if route.Prefix == "" || !strings.HasPrefix(route.Prefix, "/") {
			return fmt.Errorf("route prefix must start with /: %q", route.Prefix)
		}
		if !names[route.Service] {
			return fmt.Errorf("route %s references unknown service %s", route.Prefix, route.Service)
		}
		if route.RateLimit != nil && (route.RateLimit.Max <= 0 || route.RateLimit.Window <= 0) {
			return fmt.Errorf("route %s has invalid rate limit override", route.Prefix)
		}
	}

	return nil
}
