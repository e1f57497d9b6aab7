// Package server composes the gateway request pipeline and exposes the
// gateway-owned status endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgebound/gateway/internal/auth"
	"github.com/edgebound/gateway/internal/config"
	"github.com/edgebound/gateway/internal/gwerror"
	"github.com/edgebound/gateway/internal/observability"
	"github.com/edgebound/gateway/internal/proxy"
	"github.com/edgebound/gateway/internal/ratelimit"
	"github.com/edgebound/gateway/internal/registry"
	"github.com/edgebound/gateway/internal/route"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Server is the gateway HTTP server. It wires the middleware chain,
// the status endpoints, and the proxying pipeline.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	registry  *registry.Registry
	table     *route.Table
	gate      *auth.Gate
	forwarder *proxy.Forwarder
	errors    *gwerror.Writer
	metrics   *observability.Metrics
	logger    observability.Logger

	heapLimitBytes uint64
	startTime      time.Time

	mu      sync.Mutex
	running bool
}

// Options carries the collaborators composed into the server. All of
// them are injected so tests can construct isolated servers.
type Options struct {
	Config    *config.Config
	Registry  *registry.Registry
	Table     *route.Table
	Gate      *auth.Gate
	Forwarder *proxy.Forwarder
	Limiter   *ratelimit.FixedWindowLimiter
	Overrides []ratelimit.Override
	Metrics   *observability.Metrics
	Logger    observability.Logger
}

// New creates the gateway server.
func New(opts Options) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Server{
		engine:         gin.New(),
		registry:       opts.Registry,
		table:          opts.Table,
		gate:           opts.Gate,
		forwarder:      opts.Forwarder,
		errors:         gwerror.NewWriter(opts.Config.Gateway.Production),
		metrics:        opts.Metrics,
		logger:         logger,
		heapLimitBytes: opts.Config.Gateway.HeapLimitBytes,
		startTime:      time.Now(),
	}

	s.setupRoutes(opts)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Config.Gateway.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // forwarded responses may legitimately be slow
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes registers the middleware chain, status endpoints, and
// the proxying catch-all. Status endpoints bypass rate limiting and
// auth entirely and never consult the route table.
func (s *Server) setupRoutes(opts Options) {
	s.engine.Use(
		securityHeaders(),
		cors(opts.Config.Gateway.CORSAllowOrigin),
		requestID(),
		accessLog(s.logger),
		recovery(s.logger, s.errors),
	)

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/live", s.handleLive)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/services", s.handleServices)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	var reporter ratelimit.RejectionReporter
	if s.metrics != nil {
		reporter = s.metrics
	}

	api := s.engine.Group(opts.Config.Gateway.APIPrefix)
	api.Use(ratelimit.Middleware(opts.Limiter, opts.Overrides, s.errors, reporter))
	api.Any("/*path", s.handleProxy)
}

// handleProxy resolves the request path, dispatches the auth gate
// according to the matched route, and forwards the request.
func (s *Server) handleProxy(c *gin.Context) {
	start := time.Now()
	path := c.Request.URL.Path

	resolution, err := s.table.Resolve(path)
	if err != nil {
		if errors.Is(err, route.ErrServiceNotRegistered) {
			s.logger.WithContext(c.Request.Context()).Error("route references unregistered service",
				observability.String("path", path),
			)
			s.errors.Write(c, gwerror.CodeServiceNotRegistered, "gateway route misconfigured")
		} else {
			s.errors.Write(c, gwerror.CodeRouteNotFound, "no route for "+path)
		}
		s.recordRequest(c, "", start)
		return
	}

	if !s.gate.Dispatch(c, resolution.Rule.AuthRequired) {
		s.recordRequest(c, resolution.Service, start)
		return
	}

	svc, err := s.registry.GetService(resolution.Service)
	if err != nil {
		s.errors.Write(c, gwerror.CodeServiceNotRegistered, "gateway route misconfigured")
		s.recordRequest(c, resolution.Service, start)
		return
	}

	s.forwarder.Forward(c.Writer, c.Request, svc, resolution.TargetPath)
	s.recordRequest(c, resolution.Service, start)
}

// recordRequest records request metrics if metrics are configured.
func (s *Server) recordRequest(c *gin.Context, service string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRequest(c.Request.Method, service, c.Writer.Status(), time.Since(start))
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving. It returns once the listener stops, with
// http.ErrServerClosed mapped to nil on graceful shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("gateway listening", observability.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down: it stops accepting new
// connections and allows in-flight requests to finish until the
// context expires, then force-closes.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown expired, forcing close", observability.Error(err))
		return s.httpServer.Close()
	}
	return nil
}
