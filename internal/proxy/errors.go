package proxy

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Sentinel errors for forwarding failures.
var (
	// ErrUpstreamUnavailable indicates that the backend refused the connection.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamTimeout indicates that the backend did not respond in time.
	ErrUpstreamTimeout = errors.New("upstream request timed out")
)

// classify maps a transport-level failure to the gateway's failure
// taxonomy: connection refused, timeout, or unclassified.
func classify(err error) error {
	if isTimeout(err) {
		return ErrUpstreamTimeout
	}
	if isConnectionFailure(err) {
		return ErrUpstreamUnavailable
	}
	return err
}

// isTimeout reports whether the error is a timeout or cancellation of
// the per-attempt deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectionFailure reports whether the error indicates the backend
// could not be reached at all.
func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isRetryable reports whether a failed attempt should be retried.
// Connection-level failures and timeouts are retryable; anything else
// is surfaced immediately.
func isRetryable(err error) bool {
	return isTimeout(err) || isConnectionFailure(err)
}
