package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier verifies a bearer token and returns the caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// hmacVerifier verifies HS256-signed tokens with a shared secret.
type hmacVerifier struct {
	secret []byte
}

// NewVerifier creates a Verifier using the shared HS256 secret.
func NewVerifier(secret string) (Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &hmacVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token. Expired tokens map to
// ErrTokenExpired; every other failure maps to ErrTokenInvalid so the
// caller can distinguish re-authentication from tampering.
func (v *hmacVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
		jwt.WithContext(ctx),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	id := &Identity{UserID: tok.Subject()}
	if email, ok := tok.Get("email"); ok {
		if s, ok := email.(string); ok {
			id.Email = s
		}
	}

	return id, nil
}

// bearerPrefix is the expected Authorization scheme.
const bearerPrefix = "Bearer "

// BearerToken extracts the bearer token from the Authorization header.
// A missing header returns ErrNoToken; a header with any other scheme
// or an empty credential returns ErrBadFormat.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}

	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrBadFormat
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrBadFormat
	}

	return token, nil
}
