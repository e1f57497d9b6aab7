package auth

import "errors"

// Sentinel errors for credential verification.
var (
	// ErrNoToken indicates that no Authorization header was provided.
	ErrNoToken = errors.New("no token provided")

	// ErrBadFormat indicates that the Authorization header is not a
	// well-formed bearer credential.
	ErrBadFormat = errors.New("authorization header is not a bearer credential")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid indicates that the token is malformed or its
	// signature does not verify.
	ErrTokenInvalid = errors.New("token is invalid")
)
