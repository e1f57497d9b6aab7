package proxy

import (
	"context"
	"time"
)

// newAttemptContext returns the context for a single outbound attempt.
// It is rooted in context.Background rather than the inbound request:
// once the retry sequence has started there is no mechanism to cancel
// it from outside, matching the documented forwarding contract.
func newAttemptContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
