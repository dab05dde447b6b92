// ABOUTME: JSON response helpers and the error-to-status mapping
// ABOUTME: Upstream failures surface as 502, denials as 401/403, never internals

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oakledger/oakledger/internal/auth"
	"github.com/oakledger/oakledger/internal/federate"
	"github.com/oakledger/oakledger/internal/idp"
	"github.com/oakledger/oakledger/internal/store"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain errors to HTTP statuses and client-safe messages.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, idp.ErrUsernameExists):
		return http.StatusConflict, "username already exists"
	case errors.Is(err, idp.ErrInvalidPassword):
		return http.StatusBadRequest, "password does not meet requirements"
	case errors.Is(err, idp.ErrInvalidParameter):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, idp.ErrCodeMismatch):
		return http.StatusBadRequest, "confirmation code is invalid or expired"
	case errors.Is(err, idp.ErrNotAuthorized):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, idp.ErrThrottled):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, federate.ErrWrongTokenClass):
		return http.StatusUnauthorized, "wrong token type"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrNotOwner):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, auth.ErrKeyFetch),
		errors.Is(err, federate.ErrFederation),
		errors.Is(err, idp.ErrProvider):
		return http.StatusBadGateway, "upstream provider unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError logs server-side failures and sends the mapped JSON error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	sendJSONError(w, status, message)
}
