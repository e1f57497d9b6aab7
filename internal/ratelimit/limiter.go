// Package ratelimit provides per-client fixed window rate limiting.
package ratelimit

import (
	"sync"
	"time"

	"github.com/edgebound/gateway/internal/observability"
)

// DefaultSweepInterval is the default interval of the expired-entry sweep.
const DefaultSweepInterval = time.Minute

// Result is the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Limit is the maximum number of requests per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the current window expires.
	ResetAt time.Time

	// RetryAfter is how long to wait before retrying. Zero when allowed.
	RetryAfter time.Duration
}

// entry is the counter for one client key's current window.
type entry struct {
	count   int
	resetAt time.Time
}

// FixedWindowLimiter counts requests per client key in fixed windows.
// Entries are created lazily, reset once their window elapses, and
// garbage-collected by a periodic sweep so memory stays bounded
// independent of traffic shape.
type FixedWindowLimiter struct {
	window time.Duration
	limit  int
	logger observability.Logger

	mu      sync.Mutex
	entries map[string]*entry

	lifecycleMu sync.Mutex
	running     bool
	stopCh      chan struct{}
	stoppedCh   chan struct{}
}

// LimiterOption is a functional option for configuring the limiter.
type LimiterOption func(*FixedWindowLimiter)

// WithLimiterLogger sets the logger for the limiter.
func WithLimiterLogger(logger observability.Logger) LimiterOption {
	return func(l *FixedWindowLimiter) {
		l.logger = logger
	}
}

// NewFixedWindowLimiter creates a fixed window limiter.
func NewFixedWindowLimiter(limit int, window time.Duration, opts ...LimiterOption) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		window:  window,
		limit:   limit,
		entries: make(map[string]*entry),
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Limit returns the configured maximum requests per window.
func (l *FixedWindowLimiter) Limit() int {
	return l.limit
}

// Allow records one request for the key and reports whether it is
// within the window budget. Headers are expected to be set from the
// Result on both allowed and rejected responses.
func (l *FixedWindowLimiter) Allow(key string) *Result {
	now := time.Now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &entry{resetAt: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	count := e.count
	resetAt := e.resetAt
	l.mu.Unlock()

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !result.Allowed {
		result.RetryAfter = resetAt.Sub(now)
	}

	return result
}

// Sweep deletes entries whose window has already expired.
func (l *FixedWindowLimiter) Sweep() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
		}
	}
}

// Len returns the number of tracked client keys.
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartSweep starts the periodic expired-entry sweep. Starting a
// running limiter is a no-op.
func (l *FixedWindowLimiter) StartSweep(interval time.Duration) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	if l.running {
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.stoppedCh = make(chan struct{})

	go l.sweepLoop(interval, l.stopCh, l.stoppedCh)
}

// StopSweep stops the periodic sweep. Stopping a never-started limiter
// is a no-op.
func (l *FixedWindowLimiter) StopSweep() {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	if !l.running {
		return
	}
	l.running = false

	close(l.stopCh)
	<-l.stoppedCh
}

// sweepLoop runs Sweep at the given interval until stopped.
func (l *FixedWindowLimiter) sweepLoop(interval time.Duration, stopCh, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
