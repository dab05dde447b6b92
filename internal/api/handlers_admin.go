// ABOUTME: Admin console handlers: user directory listing, lookup and audit review
// ABOUTME: All routes sit behind the id-token cookie gate plus admin group membership

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/oakledger/oakledger/internal/audit"
	"github.com/oakledger/oakledger/internal/idp"
)

// UserResponse is the JSON shape for directory entries.
type UserResponse struct {
	Username   string            `json:"username"`
	Status     string            `json:"status"`
	Enabled    bool              `json:"enabled"`
	Created    time.Time         `json:"created"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func userResponses(users []idp.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserResponse{
			Username:   u.Username,
			Status:     u.Status,
			Enabled:    u.Enabled,
			Created:    u.Created,
			Attributes: u.Attributes,
		})
	}
	return out
}

// handleAdminListUsers handles GET /admin/users.
func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.adminSession(w, r)
	if !ok {
		return
	}

	users, err := s.directory(session).ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.audit(r, p.Username, audit.ActionListUsers, "ok", map[string]any{"count": len(users)})
	writeJSON(w, http.StatusOK, map[string]any{"users": userResponses(users)})
}

// handleAdminLookupUser handles GET /admin/users/lookup?email=X or ?username=Y.
func (s *Server) handleAdminLookupUser(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.adminSession(w, r)
	if !ok {
		return
	}

	email := r.URL.Query().Get("email")
	username := r.URL.Query().Get("username")
	if (email == "") == (username == "") {
		sendJSONError(w, http.StatusBadRequest, "exactly one of email or username is required")
		return
	}

	dir := s.directory(session)
	var (
		users []idp.User
		err   error
	)
	if email != "" {
		users, err = dir.FindByEmail(r.Context(), email)
	} else {
		users, err = dir.FindByUsername(r.Context(), username)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.audit(r, p.Username, audit.ActionListUsers, "ok", map[string]any{"lookup": true})
	writeJSON(w, http.StatusOK, map[string]any{"users": userResponses(users)})
}

// handleAdminAudit handles GET /admin/audit with optional username, action,
// since (RFC 3339) and limit query parameters.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	_, _, ok := s.adminSession(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Username: q.Get("username"),
		Action:   audit.Action(q.Get("action")),
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			sendJSONError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = &since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			sendJSONError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := s.auditLog.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
