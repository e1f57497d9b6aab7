package registry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/edgebound/gateway/internal/observability"
)

// Prober issues bounded-timeout probes against backend health endpoints.
type Prober struct {
	client *http.Client
	logger observability.Logger
}

// ProberOption is a functional option for configuring the prober.
type ProberOption func(*Prober)

// WithProberClient sets the HTTP client used for probes. The client's
// own timeout is ignored; each probe uses the service's configured
// timeout.
func WithProberClient(client *http.Client) ProberOption {
	return func(p *Prober) {
		p.client = client
	}
}

// WithProberLogger sets the logger for the prober.
func WithProberLogger(logger observability.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger
	}
}

// NewProber creates a new health prober.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		client: &http.Client{},
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe performs one health check against the service. Success is
// strictly HTTP 200; any other status, connection failure, or timeout
// yields an unhealthy record with the error captured. The returned
// record never carries an error value; probe failures are data, not
// failures of the probe itself.
func (p *Prober) Probe(ctx context.Context, svc *ServiceDescriptor) HealthRecord {
	record := HealthRecord{
		Service:     svc.Name,
		LastChecked: time.Now(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, svc.Timeout)
	defer cancel()

	url := svc.BaseURL + svc.HealthCheckPath
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		record.Status = StatusUnhealthy
		record.LastError = err.Error()
		return record
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		record.Status = StatusUnhealthy
		record.LastError = err.Error()
		p.logger.Debug("health probe failed",
			observability.String("service", svc.Name),
			observability.Error(err),
		)
		return record
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		record.Status = StatusUnhealthy
		record.LastError = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return record
	}

	record.Status = StatusHealthy
	record.ResponseTime = elapsed
	record.HasResponseTime = true
	return record
}
