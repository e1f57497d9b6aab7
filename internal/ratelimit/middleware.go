package ratelimit

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edgebound/gateway/internal/gwerror"
)

// Rate limit response headers, set on allowed and rejected responses.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// RejectionReporter records rejected requests, typically for metrics.
type RejectionReporter interface {
	RecordRateLimitRejection(keyType string)
}

// Override binds a distinct limiter to a path prefix. Overrides are
// checked in declared order before the default limiter applies.
type Override struct {
	Prefix  string
	Limiter *FixedWindowLimiter
}

// Middleware returns a gin middleware enforcing the fixed window
// limits. Requests matching an override prefix are counted by that
// override's limiter; everything else by the default limiter.
func Middleware(def *FixedWindowLimiter, overrides []Override, errWriter *gwerror.Writer, reporter RejectionReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := def
		for _, o := range overrides {
			if strings.HasPrefix(c.Request.URL.Path, o.Prefix) {
				limiter = o.Limiter
				break
			}
		}

		key, keyType := KeyFor(c.Request)
		result := limiter.Allow(key)

		c.Header(HeaderLimit, strconv.Itoa(result.Limit))
		c.Header(HeaderRemaining, strconv.Itoa(result.Remaining))
		c.Header(HeaderReset, strconv.FormatInt(result.ResetAt.Unix(), 10))

		if result.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
		c.Header(HeaderRetryAfter, strconv.Itoa(retryAfter))

		if reporter != nil {
			reporter.RecordRateLimitRejection(keyType)
		}

		errWriter.Write(c, gwerror.CodeRateLimitExceeded,
			"rate limit exceeded, retry in "+strconv.Itoa(retryAfter)+"s")
	}
}
