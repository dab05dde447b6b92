// ABOUTME: Handlers for the account lifecycle: signup, confirm, signin, signout
// ABOUTME: Sign-in also sets the id token cookie used by the admin console

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/oakledger/oakledger/internal/audit"
	"github.com/oakledger/oakledger/internal/auth"
)

// SignUpRequest is the JSON request body for POST /auth/signup.
type SignUpRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// ConfirmRequest is the JSON request body for POST /auth/confirm.
type ConfirmRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// SignInRequest is the JSON request body for POST /auth/signin.
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// parseSignUpRequest parses and validates a SignUpRequest from the given reader.
func parseSignUpRequest(r io.Reader) (*SignUpRequest, error) {
	var req SignUpRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if req.Username == "" {
		return nil, errors.New("username is required")
	}
	if req.Password == "" {
		return nil, errors.New("password is required")
	}
	if req.Email == "" {
		return nil, errors.New("email is required")
	}
	return &req, nil
}

// handleSignUp handles POST /auth/signup.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	req, err := parseSignUpRequest(r.Body)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.accounts.SignUp(r.Context(), req.Username, req.Password, req.Email); err != nil {
		s.audit(r, req.Username, audit.ActionSignUp, "denied", nil)
		s.writeError(w, r, err)
		return
	}

	s.audit(r, req.Username, audit.ActionSignUp, "ok", nil)
	writeJSON(w, http.StatusCreated, map[string]string{
		"username": req.Username,
		"status":   "confirmation required",
	})
}

// handleConfirm handles POST /auth/confirm.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Code == "" {
		sendJSONError(w, http.StatusBadRequest, "username and code are required")
		return
	}

	if err := s.accounts.Confirm(r.Context(), req.Username, req.Code); err != nil {
		s.audit(r, req.Username, audit.ActionConfirm, "denied", nil)
		s.writeError(w, r, err)
		return
	}

	s.audit(r, req.Username, audit.ActionConfirm, "ok", nil)
	writeJSON(w, http.StatusOK, map[string]string{
		"username": req.Username,
		"status":   "confirmed",
	})
}

// handleSignIn handles POST /auth/signin.
// On success the token bundle is returned in the body and the id token is
// also set as an HTTP-only cookie for the admin console flow.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	tokens, err := s.accounts.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		s.audit(r, req.Username, audit.ActionSignIn, "denied", nil)
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    tokens.IDToken,
		Path:     "/",
		MaxAge:   int(tokens.ExpiresIn),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	s.audit(r, req.Username, audit.ActionSignIn, "ok", nil)
	writeJSON(w, http.StatusOK, tokens)
}

// handleSignOut handles POST /auth/signout. The bearer access token is
// revoked provider-side and the admin cookie is cleared.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())

	if err := s.accounts.SignOut(r.Context(), p.RawToken); err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	s.audit(r, p.Username, audit.ActionSignOut, "ok", nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// handleMe handles GET /me, returning the verified caller identity.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"username": p.Username,
		"sub":      p.Subject,
		"groups":   p.Groups,
		"scope":    p.Scope,
	})
}
