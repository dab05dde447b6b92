// ABOUTME: HTTP middleware for token authentication on API endpoints
// ABOUTME: Extracts the bearer (or cookie-carried) token and attaches the Principal

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// TokenVerifier is the verification capability the middleware needs.
// Implemented by *Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string, class TokenClass) (*Principal, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// tokenFromRequest finds the presented token: the Authorization header wins,
// with an optional cookie fallback for browser-driven deployments.
func tokenFromRequest(r *http.Request, cookieName string) (string, string) {
	if r.Header.Get("Authorization") != "" {
		return extractBearerToken(r.Header.Get("Authorization"))
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, ""
		}
	}
	return "", "missing authorization header"
}

// RequireToken creates middleware that verifies the presented token against
// the expected class and attaches the resulting Principal to the request
// context. cookieName may be empty to accept header tokens only.
//
// Verification failures map to 401; key-set fetch failures map to 502 since
// they indicate provider-side trouble, not caller error.
func RequireToken(verifier TokenVerifier, class TokenClass, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, errMsg := tokenFromRequest(r, cookieName)
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(r.Context(), raw, class)
			if err != nil {
				if errors.Is(err, ErrKeyFetch) {
					http.Error(w, `{"error":"identity provider unavailable"}`, http.StatusBadGateway)
					return
				}
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireGroup creates middleware that requires membership of the named
// group. Must be used after RequireToken; denies by default.
func RequireGroup(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := FromContext(r.Context())
			if principal == nil {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			if !principal.InGroup(group) {
				http.Error(w, `{"error":"`+group+` role required"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
