// Package proxy forwards client requests to backend services with
// retry, backoff, and failure classification.
package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgebound/gateway/internal/gwerror"
	"github.com/edgebound/gateway/internal/observability"
	"github.com/edgebound/gateway/internal/registry"
)

// initialBackoff is the base delay of the exponential retry backoff.
const initialBackoff = 100 * time.Millisecond

// Gateway diagnostic headers added to relayed responses.
const (
	HeaderGatewayService = "X-Gateway-Service"
	HeaderResponseTime   = "X-Response-Time"
	HeaderRequestID      = "X-Request-ID"
)

// hopHeaders are hop-by-hop headers stripped from forwarded requests
// and relayed responses.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// HealthAdvisor reports the advisory health of a backend. An unhealthy
// backend is still attempted, with a warning logged.
type HealthAdvisor interface {
	IsServiceHealthy(name string) bool
}

// AttemptReporter records forwarding attempts, typically for metrics.
type AttemptReporter interface {
	RecordUpstreamAttempt(service, outcome string)
}

// Forwarder executes outbound calls with retry and backoff and relays
// the backend response to the client.
type Forwarder struct {
	client   *http.Client
	logger   observability.Logger
	advisor  HealthAdvisor
	reporter AttemptReporter
	sleep    func(time.Duration)
}

// ForwarderOption is a functional option for configuring the forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger for the forwarder.
func WithForwarderLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithForwarderClient sets the HTTP client used for outbound calls.
// Per-call timeouts come from the service descriptor, not the client.
func WithForwarderClient(client *http.Client) ForwarderOption {
	return func(f *Forwarder) {
		f.client = client
	}
}

// WithHealthAdvisor sets the advisory health source.
func WithHealthAdvisor(advisor HealthAdvisor) ForwarderOption {
	return func(f *Forwarder) {
		f.advisor = advisor
	}
}

// WithAttemptReporter sets the attempt reporter.
func WithAttemptReporter(reporter AttemptReporter) ForwarderOption {
	return func(f *Forwarder) {
		f.reporter = reporter
	}
}

// withSleep overrides the backoff sleep, for tests.
func withSleep(sleep func(time.Duration)) ForwarderOption {
	return func(f *Forwarder) {
		f.sleep = sleep
	}
}

// NewForwarder creates a forwarder.
func NewForwarder(opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		client: &http.Client{},
		logger: observability.NopLogger(),
		sleep:  time.Sleep,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Forward proxies the request to the service at targetPath and writes
// the outcome to w. Upstream responses are relayed verbatim; transport
// failures are classified to 503, 504, or 500.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, svc *registry.ServiceDescriptor, targetPath string) {
	logger := f.logger.WithContext(r.Context())

	if f.advisor != nil && !f.advisor.IsServiceHealthy(svc.Name) {
		logger.Warn("forwarding to service with failing health checks",
			observability.String("service", svc.Name),
		)
	}

	// The body is buffered once so every retry attempt can replay it.
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			f.writeError(w, r, svc, gwerror.CodeInternal, "failed to read request body")
			return
		}
	}

	start := time.Now()
	resp, err := f.attempt(r, svc, targetPath, body)
	elapsed := time.Since(start)

	if err != nil {
		f.writeClassifiedError(w, r, svc, err)
		return
	}
	defer resp.Body.Close()

	f.relay(w, r, svc, resp, elapsed)
}

// attempt runs the retry loop and returns the last upstream response
// or the last classified error once the budget is exhausted.
func (f *Forwarder) attempt(r *http.Request, svc *registry.ServiceDescriptor, targetPath string, body []byte) (*http.Response, error) {
	maxAttempts := svc.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	logger := f.logger.WithContext(r.Context())

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * (1 << (attempt - 1))
			f.sleep(backoff)
		}

		resp, err := f.doAttempt(r, svc, targetPath, body)
		if err != nil {
			lastErr = classify(err)
			f.recordAttempt(svc.Name, "error")
			logger.Warn("forwarding attempt failed",
				observability.String("service", svc.Name),
				observability.Int("attempt", attempt+1),
				observability.Error(err),
			)
			if !isRetryable(err) {
				return nil, lastErr
			}
			continue
		}

		// 5xx responses are retried while budget remains; every other
		// status is relayed as-is. A 4xx is the caller's fault and
		// retrying cannot help.
		if resp.StatusCode >= http.StatusInternalServerError && attempt < maxAttempts-1 {
			f.recordAttempt(svc.Name, "upstream_error")
			logger.Warn("upstream returned server error, retrying",
				observability.String("service", svc.Name),
				observability.Int("status", resp.StatusCode),
				observability.Int("attempt", attempt+1),
			)
			resp.Body.Close()
			continue
		}

		f.recordAttempt(svc.Name, "success")
		return resp, nil
	}

	return nil, lastErr
}

// doAttempt executes a single outbound call with the service's
// per-call timeout. The attempt deliberately does not observe the
// caller's context: a client disconnecting mid-retry does not abort
// the backend call.
func (f *Forwarder) doAttempt(r *http.Request, svc *registry.ServiceDescriptor, targetPath string, body []byte) (*http.Response, error) {
	target := svc.BaseURL + targetPath
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	ctx, cancel := newAttemptContext(svc.Timeout)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, reader)
	if err != nil {
		return nil, err
	}

	copyForwardHeaders(req, r)

	return f.client.Do(req)
}

// copyForwardHeaders copies inbound headers onto the outbound request,
// dropping the host and hop-by-hop headers, and sets the forwarded-for
// and forwarded-proto headers from the inbound request.
func copyForwardHeaders(out *http.Request, in *http.Request) {
	for key, values := range in.Header {
		if strings.EqualFold(key, "Host") || isHopHeader(key) {
			continue
		}
		for _, v := range values {
			out.Header.Add(key, v)
		}
	}

	clientIP := in.RemoteAddr
	if idx := strings.LastIndex(clientIP, ":"); idx != -1 {
		clientIP = clientIP[:idx]
	}
	if prior := in.Header.Get("X-Forwarded-For"); prior != "" {
		clientIP = prior + ", " + clientIP
	}
	out.Header.Set("X-Forwarded-For", clientIP)

	proto := "http"
	if in.TLS != nil {
		proto = "https"
	}
	out.Header.Set("X-Forwarded-Proto", proto)
}

// isHopHeader reports whether the header is hop-by-hop.
func isHopHeader(key string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(key, h) {
			return true
		}
	}
	return false
}

// relay copies the upstream response to the client, stripping
// hop-by-hop headers and adding the gateway diagnostic headers.
func (f *Forwarder) relay(w http.ResponseWriter, r *http.Request, svc *registry.ServiceDescriptor, resp *http.Response, elapsed time.Duration) {
	header := w.Header()
	for key, values := range resp.Header {
		if isHopHeader(key) {
			continue
		}
		for _, v := range values {
			header.Add(key, v)
		}
	}

	f.setDiagnosticHeaders(header, r, svc, elapsed)

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.logger.WithContext(r.Context()).Warn("failed to relay response body",
			observability.String("service", svc.Name),
			observability.Error(err),
		)
	}
}

// setDiagnosticHeaders adds the gateway diagnostic headers. The
// request ID is reused from the inbound request when present and
// generated otherwise.
func (f *Forwarder) setDiagnosticHeaders(header http.Header, r *http.Request, svc *registry.ServiceDescriptor, elapsed time.Duration) {
	header.Set(HeaderGatewayService, svc.Name)
	header.Set(HeaderResponseTime, fmt.Sprintf("%dms", elapsed.Milliseconds()))

	requestID := observability.RequestIDFromContext(r.Context())
	if requestID == "" {
		requestID = r.Header.Get(HeaderRequestID)
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	header.Set(HeaderRequestID, requestID)
}

// writeClassifiedError maps a terminal forwarding failure to the
// client-facing taxonomy.
func (f *Forwarder) writeClassifiedError(w http.ResponseWriter, r *http.Request, svc *registry.ServiceDescriptor, err error) {
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		f.writeError(w, r, svc, gwerror.CodeServiceUnavailable,
			fmt.Sprintf("service %s is unavailable", svc.Name))
	case errors.Is(err, ErrUpstreamTimeout):
		f.writeError(w, r, svc, gwerror.CodeGatewayTimeout,
			fmt.Sprintf("service %s did not respond in time", svc.Name))
	default:
		f.logger.WithContext(r.Context()).Error("unclassified forwarding failure",
			observability.String("service", svc.Name),
			observability.Error(err),
		)
		f.writeError(w, r, svc, gwerror.CodeInternal, "internal gateway error")
	}
}

// writeError writes a structured error body with diagnostic headers.
func (f *Forwarder) writeError(w http.ResponseWriter, r *http.Request, svc *registry.ServiceDescriptor, code gwerror.Code, message string) {
	f.setDiagnosticHeaders(w.Header(), r, svc, 0)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gwerror.Status(code))
	fmt.Fprintf(w, `{"error":%q,"message":%q}`, code, message)
}

// recordAttempt records an attempt outcome if a reporter is configured.
func (f *Forwarder) recordAttempt(service, outcome string) {
	if f.reporter != nil {
		f.reporter.RecordUpstreamAttempt(service, outcome)
	}
}
