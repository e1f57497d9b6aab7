package main

import (
	"fmt"

	"github.com/edgebound/gateway/internal/auth"
	"github.com/edgebound/gateway/internal/config"
	"github.com/edgebound/gateway/internal/gwerror"
	"github.com/edgebound/gateway/internal/observability"
	"github.com/edgebound/gateway/internal/proxy"
	"github.com/edgebound/gateway/internal/ratelimit"
	"github.com/edgebound/gateway/internal/registry"
	"github.com/edgebound/gateway/internal/route"
	"github.com/edgebound/gateway/internal/server"
)

// application holds the wired gateway components. The registry is
// created once here and injected into every collaborator; there is no
// ambient module-level state, so tests can build isolated instances.
type application struct {
	cfg           *config.Config
	registry      *registry.Registry
	limiter       *ratelimit.FixedWindowLimiter
	routeLimiters []*ratelimit.FixedWindowLimiter
	server        *server.Server
}

// newApplication wires the gateway from configuration.
func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("gateway")

	reg := registry.New(cfg.Services,
		registry.WithLogger(logger),
		registry.WithCheckInterval(cfg.Gateway.HealthCheckInterval.Duration()),
		registry.WithHealthReporter(metrics),
	)

	table := route.NewTable(cfg.Routes, reg)

	verifier, err := auth.NewVerifier(cfg.Gateway.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	errWriter := gwerror.NewWriter(cfg.Gateway.Production)
	gate := auth.NewGate(verifier, errWriter, auth.WithGateLogger(logger))

	forwarder := proxy.NewForwarder(
		proxy.WithForwarderLogger(logger),
		proxy.WithHealthAdvisor(reg),
		proxy.WithAttemptReporter(metrics),
	)

	limiter := ratelimit.NewFixedWindowLimiter(
		cfg.Gateway.RateLimitMax,
		cfg.Gateway.RateLimitWindow.Duration(),
		ratelimit.WithLimiterLogger(logger),
	)

	app := &application{
		cfg:      cfg,
		registry: reg,
		limiter:  limiter,
	}

	overrides := make([]ratelimit.Override, 0)
	for _, rc := range cfg.Routes {
		if rc.RateLimit == nil {
			continue
		}
		rl := ratelimit.NewFixedWindowLimiter(
			rc.RateLimit.Max,
			rc.RateLimit.Window.Duration(),
			ratelimit.WithLimiterLogger(logger),
		)
		app.routeLimiters = append(app.routeLimiters, rl)
		overrides = append(overrides, ratelimit.Override{Prefix: rc.Prefix, Limiter: rl})
	}

	app.server = server.New(server.Options{
		Config:    cfg,
		Registry:  reg,
		Table:     table,
		Gate:      gate,
		Forwarder: forwarder,
		Limiter:   limiter,
		Overrides: overrides,
		Metrics:   metrics,
		Logger:    logger,
	})

	return app, nil
}
