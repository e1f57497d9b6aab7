// Package registry holds the static set of backend service descriptors
// and their live health state, and owns the periodic probing loop.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/edgebound/gateway/internal/config"
	"github.com/edgebound/gateway/internal/observability"
)

// ErrServiceNotFound indicates that no service with the given name is registered.
var ErrServiceNotFound = errors.New("service not found")

// HealthStatus is the health state of a backend service.
type HealthStatus string

// Health states.
const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
)

// ServiceDescriptor describes one backend service. Descriptors are
// immutable after startup; adding a service requires a restart.
type ServiceDescriptor struct {
	Name            string
	BaseURL         string
	HealthCheckPath string
	Timeout         time.Duration
	MaxRetries      int
}

// HealthRecord is the last known health of one service. Records are
// written only from the completion of that service's own probe.
type HealthRecord struct {
	Service         string        `json:"service"`
	Status          HealthStatus  `json:"status"`
	LastChecked     time.Time     `json:"lastChecked"`
	ResponseTime    time.Duration `json:"responseTime,omitempty"`
	HasResponseTime bool          `json:"-"`
	LastError       string        `json:"lastError,omitempty"`
}

// HealthReporter receives health transitions, typically for metrics.
type HealthReporter interface {
	SetServiceHealth(service string, healthy bool)
}

// Registry is the in-memory directory of backend services and their
// health state.
type Registry struct {
	services []*ServiceDescriptor
	index    map[string]*ServiceDescriptor
	prober   *Prober
	interval time.Duration
	logger   observability.Logger
	reporter HealthReporter

	mu      sync.RWMutex
	records map[string]HealthRecord

	lifecycleMu sync.Mutex
	running     bool
	stopCh      chan struct{}
	stoppedCh   chan struct{}
}

// RegistryOption is a functional option for configuring the registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger for the registry.
func WithLogger(logger observability.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithProber sets the prober used for health checks.
func WithProber(prober *Prober) RegistryOption {
	return func(r *Registry) {
		r.prober = prober
	}
}

// WithCheckInterval sets the interval of the periodic probing loop.
func WithCheckInterval(interval time.Duration) RegistryOption {
	return func(r *Registry) {
		r.interval = interval
	}
}

// WithHealthReporter sets a reporter notified on every probe result.
func WithHealthReporter(reporter HealthReporter) RegistryOption {
	return func(r *Registry) {
		r.reporter = reporter
	}
}

// New creates a registry from service configuration. Every service
// starts with status unknown until its first probe completes.
func New(services []config.ServiceConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		index:    make(map[string]*ServiceDescriptor, len(services)),
		records:  make(map[string]HealthRecord, len(services)),
		interval: config.DefaultHealthCheckInterval,
		logger:   observability.NopLogger(),
	}

	for _, svc := range services {
		desc := &ServiceDescriptor{
			Name:            svc.Name,
			BaseURL:         svc.URL,
			HealthCheckPath: svc.HealthCheckPath,
			Timeout:         svc.Timeout.Duration(),
			MaxRetries:      svc.MaxRetries,
		}
		r.services = append(r.services, desc)
		r.index[desc.Name] = desc
		r.records[desc.Name] = HealthRecord{
			Service: desc.Name,
			Status:  StatusUnknown,
		}
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.prober == nil {
		r.prober = NewProber(WithProberLogger(r.logger))
	}

	return r
}

// GetService returns the descriptor for the named service.
func (r *Registry) GetService(name string) (*ServiceDescriptor, error) {
	if svc, ok := r.index[name]; ok {
		return svc, nil
	}
	return nil, ErrServiceNotFound
}

// Has reports whether the named service is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// ServiceNames returns the registered service names in registry order.
func (r *Registry) ServiceNames() []string {
	names := make([]string, 0, len(r.services))
	for _, svc := range r.services {
		names = append(names, svc.Name)
	}
	return names
}

// CheckServiceHealth performs one probe against the named service,
// stores the resulting record, and returns it. Probe failures are
// captured in the record, never returned as errors.
func (r *Registry) CheckServiceHealth(ctx context.Context, name string) (HealthRecord, error) {
	svc, err := r.GetService(name)
	if err != nil {
		return HealthRecord{}, err
	}

	record := r.prober.Probe(ctx, svc)

	r.mu.Lock()
	r.records[name] = record
	r.mu.Unlock()

	if r.reporter != nil {
		r.reporter.SetServiceHealth(name, record.Status == StatusHealthy)
	}

	return record, nil
}

// CheckAllServicesHealth probes every registered service concurrently
// and waits for all probes to complete. The result is in registry
// order, not completion order.
func (r *Registry) CheckAllServicesHealth(ctx context.Context) []HealthRecord {
	records := make([]HealthRecord, len(r.services))

	var wg sync.WaitGroup
	for i, svc := range r.services {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			record, err := r.CheckServiceHealth(ctx, name)
			if err != nil {
				// Unreachable for registered services; keep the record shape.
				record = HealthRecord{Service: name, Status: StatusUnknown}
			}
			records[i] = record
		}(i, svc.Name)
	}
	wg.Wait()

	return records
}

// StartHealthChecks starts the periodic probing loop. Calling it on a
// running registry is a no-op; only one loop ever exists.
func (r *Registry) StartHealthChecks() {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.stoppedCh = make(chan struct{})

	go r.run(r.stopCh, r.stoppedCh)
}

// StopHealthChecks stops the probing loop and waits for it to exit.
// Stopping a never-started or already-stopped registry is a no-op.
func (r *Registry) StopHealthChecks() {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if !r.running {
		return
	}
	r.running = false

	close(r.stopCh)
	<-r.stoppedCh
}

// run is the periodic probing loop. Probe errors are recorded in the
// health map and otherwise discarded.
func (r *Registry) run(stopCh, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	ctx := context.Background()
	r.CheckAllServicesHealth(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			r.CheckAllServicesHealth(ctx)
		}
	}
}

// IsServiceHealthy reports whether the last probe of the named service
// succeeded. Unknown services and services never probed report false.
func (r *Registry) IsServiceHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[name].Status == StatusHealthy
}

// GetHealthStatus returns the stored health record for the named service.
func (r *Registry) GetHealthStatus(name string) (HealthRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[name]
	if !ok {
		return HealthRecord{}, ErrServiceNotFound
	}
	return record, nil
}

// GetAllHealthStatuses returns the stored health records in registry order.
func (r *Registry) GetAllHealthStatuses() []HealthRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]HealthRecord, 0, len(r.services))
	for _, svc := range r.services {
		records = append(records, r.records[svc.Name])
	}
	return records
}
