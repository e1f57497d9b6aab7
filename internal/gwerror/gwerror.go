// Package gwerror defines the gateway's client-facing error taxonomy and
// the JSON error body written back to clients.
package gwerror

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Code is a short machine-readable error code.
type Code string

// Error codes returned to clients.
const (
	CodeAuthRequired         Code = "AUTH_REQUIRED"
	CodeAuthExpired          Code = "AUTH_EXPIRED"
	CodeAuthInvalid          Code = "AUTH_INVALID"
	CodeRouteNotFound        Code = "ROUTE_NOT_FOUND"
	CodeServiceNotRegistered Code = "SERVICE_NOT_REGISTERED"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeGatewayTimeout       Code = "GATEWAY_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal             Code = "INTERNAL_GATEWAY_ERROR"
)

// statusByCode maps error codes to HTTP status codes.
var statusByCode = map[Code]int{
	CodeAuthRequired:         http.StatusUnauthorized,
	CodeAuthExpired:          http.StatusUnauthorized,
	CodeAuthInvalid:          http.StatusUnauthorized,
	CodeRouteNotFound:        http.StatusNotFound,
	CodeServiceNotRegistered: http.StatusInternalServerError,
	CodeServiceUnavailable:   http.StatusServiceUnavailable,
	CodeGatewayTimeout:       http.StatusGatewayTimeout,
	CodeRateLimitExceeded:    http.StatusTooManyRequests,
	CodeInternal:             http.StatusInternalServerError,
}

// Status returns the HTTP status code associated with a Code.
func Status(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Body is the JSON error body returned to clients.
type Body struct {
	Error   Code   `json:"error"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Writer writes error responses. Stack traces are included only when
// the gateway runs in non-production mode.
type Writer struct {
	includeStack bool
}

// NewWriter creates an error writer. Pass production=true to suppress
// stack traces in error bodies.
func NewWriter(production bool) *Writer {
	return &Writer{includeStack: !production}
}

// Write writes a structured error response and aborts the gin chain.
func (w *Writer) Write(c *gin.Context, code Code, message string) {
	c.AbortWithStatusJSON(Status(code), Body{
		Error:   code,
		Message: message,
	})
}

// WriteWithStack writes an error response including a stack trace in
// non-production mode. Used for panics and unclassified failures.
func (w *Writer) WriteWithStack(c *gin.Context, code Code, message string) {
	body := Body{
		Error:   code,
		Message: message,
	}
	if w.includeStack {
		body.Stack = string(debug.Stack())
	}
	c.AbortWithStatusJSON(Status(code), body)
}
