// ABOUTME: Error taxonomy for token verification and authorization failures
// ABOUTME: Distinguishes caller errors from key-set and configuration problems

package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates a missing client id or client secret.
	// This is a deployment problem, not a per-request failure.
	ErrNotConfigured = errors.New("auth: client id and client secret must be configured")

	// ErrKeyFetch indicates the provider's key set could not be fetched or parsed.
	ErrKeyFetch = errors.New("auth: fetching signing key set failed")

	// ErrKeyNotFound indicates the requested key id is absent even after a refresh.
	ErrKeyNotFound = errors.New("auth: signing key not found")

	// ErrForbidden indicates a verified principal lacks a required group.
	ErrForbidden = errors.New("auth: forbidden")
)

// TokenReason classifies why a token was rejected.
type TokenReason string

const (
	ReasonMalformed  TokenReason = "malformed"
	ReasonExpired    TokenReason = "expired"
	ReasonSignature  TokenReason = "signature-mismatch"
	ReasonIssuer     TokenReason = "wrong-issuer"
	ReasonAudience   TokenReason = "wrong-audience"
	ReasonClass      TokenReason = "wrong-class"
	ReasonUnknownKey TokenReason = "unknown-key"
	ReasonClaims     TokenReason = "missing-claims"
)

// InvalidTokenError is returned for any token the verifier rejects.
// The Reason field tells callers (and logs) why, without leaking the
// distinction to API clients.
type InvalidTokenError struct {
	Reason TokenReason
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: invalid token (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth: invalid token (%s)", e.Reason)
}

func (e *InvalidTokenError) Unwrap() error {
	return e.Err
}

func invalidToken(reason TokenReason, err error) *InvalidTokenError {
	return &InvalidTokenError{Reason: reason, Err: err}
}

// IsInvalidToken reports whether err is a token rejection, and if so why.
func IsInvalidToken(err error) (TokenReason, bool) {
	var ite *InvalidTokenError
	if errors.As(err, &ite) {
		return ite.Reason, true
	}
	return "", false
}
