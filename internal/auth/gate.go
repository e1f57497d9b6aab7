package auth

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/edgebound/gateway/internal/gwerror"
	"github.com/edgebound/gateway/internal/observability"
)

// Gate decides per route whether a verified identity is required or
// merely attached when available. It is the only component that
// verifies the original credential; backends trust the identity
// headers it injects.
type Gate struct {
	verifier Verifier
	errors   *gwerror.Writer
	logger   observability.Logger
}

// GateOption is a functional option for configuring the gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger for the gate.
func WithGateLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates an auth gate.
func NewGate(verifier Verifier, errWriter *gwerror.Writer, opts ...GateOption) *Gate {
	g := &Gate{
		verifier: verifier,
		errors:   errWriter,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Dispatch runs required or optional verification depending on the
// resolved route. It reports whether the request may proceed; on
// rejection the error response has already been written.
func (g *Gate) Dispatch(c *gin.Context, required bool) bool {
	if required {
		return g.require(c)
	}
	g.optional(c)
	return true
}

// require rejects the request unless it carries a valid bearer token.
func (g *Gate) require(c *gin.Context) bool {
	stripIdentityHeaders(c)

	token, err := BearerToken(c.Request)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			g.errors.Write(c, gwerror.CodeAuthRequired, "no token provided")
		} else {
			g.errors.Write(c, gwerror.CodeAuthRequired, "malformed authorization header")
		}
		return false
	}

	id, err := g.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			g.errors.Write(c, gwerror.CodeAuthExpired, "token has expired, please log in again")
		} else {
			g.errors.Write(c, gwerror.CodeAuthInvalid, "token is invalid")
		}
		return false
	}

	g.attach(c, id)
	return true
}

// optional attaches an identity when a valid token is present and
// otherwise lets the request proceed unauthenticated. An invalid token
// is logged but never fails the request.
func (g *Gate) optional(c *gin.Context) {
	stripIdentityHeaders(c)

	token, err := BearerToken(c.Request)
	if err != nil {
		return
	}

	id, err := g.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		g.logger.WithContext(c.Request.Context()).Warn("ignoring invalid token on optional route",
			observability.String("path", c.Request.URL.Path),
			observability.Error(err),
		)
		return
	}

	g.attach(c, id)
}

// attach stores the identity in the request context and mirrors it
// into the outbound identity headers.
func (g *Gate) attach(c *gin.Context, id *Identity) {
	ctx := ContextWithIdentity(c.Request.Context(), id)
	c.Request = c.Request.WithContext(ctx)

	c.Request.Header.Set(HeaderUserID, id.UserID)
	c.Request.Header.Set(HeaderUserEmail, id.Email)
}

// stripIdentityHeaders removes client-supplied identity headers so the
// only values a backend ever sees were set by a successful verification.
func stripIdentityHeaders(c *gin.Context) {
	c.Request.Header.Del(HeaderUserID)
	c.Request.Header.Del(HeaderUserEmail)
}
