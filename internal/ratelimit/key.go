package ratelimit

import (
	"net/http"
	"strings"

	"github.com/edgebound/gateway/internal/auth"
)

// Key prefixes identifying how a client key was derived.
const (
	KeyTypeUser = "user"
	KeyTypeIP   = "ip"
)

// KeyFor derives the rate limit key for a request. A verified user id
// takes precedence; otherwise the client IP is used.
func KeyFor(r *http.Request) (key, keyType string) {
	if id := auth.IdentityFromContext(r.Context()); id != nil && id.UserID != "" {
		return KeyTypeUser + ":" + id.UserID, KeyTypeUser
	}
	return KeyTypeIP + ":" + ClientIP(r), KeyTypeIP
}

// ClientIP extracts the client IP, preferring the first entry of
// X-Forwarded-For and falling back to the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	ip = strings.TrimPrefix(ip, "[")
	ip = strings.TrimSuffix(ip, "]")
	return ip
}
