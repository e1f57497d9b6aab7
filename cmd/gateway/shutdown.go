package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgebound/gateway/internal/observability"
	"github.com/edgebound/gateway/internal/ratelimit"
)

// run starts the background loops and the HTTP server, then waits for
// a termination signal and shuts everything down in order.
func run(app *application, logger observability.Logger) {
	app.registry.StartHealthChecks()
	app.limiter.StartSweep(ratelimit.DefaultSweepInterval)
	for _, rl := range app.routeLimiters {
		rl.StartSweep(ratelimit.DefaultSweepInterval)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
			shutdownBackground(app)
			_ = logger.Sync()
			os.Exit(1)
		}
		return
	}

	// The probing loop stops before the listener so no probe writes
	// race the final health reads of draining requests.
	shutdownBackground(app)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.Gateway.ShutdownGrace.Duration())
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	logger.Info("gateway stopped")
}

// shutdownBackground stops the periodic health checks and rate limit sweeps.
func shutdownBackground(app *application) {
	app.registry.StopHealthChecks()
	app.limiter.StopSweep()
	for _, rl := range app.routeLimiters {
		rl.StopSweep()
	}
}
