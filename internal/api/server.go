// ABOUTME: HTTP server wiring for the oakledger API
// ABOUTME: Routes, middleware chains and the narrow service interfaces handlers consume

package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/oakledger/oakledger/internal/audit"
	"github.com/oakledger/oakledger/internal/auth"
	"github.com/oakledger/oakledger/internal/federate"
	"github.com/oakledger/oakledger/internal/idp"
	"github.com/oakledger/oakledger/internal/store"
)

// adminCookie carries the pool id token for the admin console flow.
const adminCookie = "id_token"

// Accounts is the account lifecycle surface of the identity provider.
type Accounts interface {
	SignUp(ctx context.Context, username, password, email string) error
	Confirm(ctx context.Context, username, code string) error
	SignIn(ctx context.Context, username, password string) (*idp.Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
}

// CredentialSource exchanges a verified principal for scoped credentials.
type CredentialSource interface {
	Federate(ctx context.Context, p *auth.Principal) (*federate.Session, error)
}

// Ledger is the per-session view of the table store.
type Ledger interface {
	PutProfile(ctx context.Context, p *store.Profile) error
	GetProfile(ctx context.Context, username string) (*store.Profile, error)
	PutAsset(ctx context.Context, a *store.Asset) error
	GetAsset(ctx context.Context, id, username string) (*store.Asset, error)
	ListAssets(ctx context.Context, username string) ([]store.Asset, error)
	DeleteAsset(ctx context.Context, id, username string) error
	PutLiability(ctx context.Context, l *store.Liability) error
	GetLiability(ctx context.Context, id, username string) (*store.Liability, error)
	ListLiabilities(ctx context.Context, username string) ([]store.Liability, error)
	DeleteLiability(ctx context.Context, id, username string) error
}

// MediaStore is the per-session view of the object store.
type MediaStore interface {
	UploadProfilePicture(ctx context.Context, identityID, ext, contentType string, body io.Reader) (string, error)
	ProfilePictureURL(ctx context.Context, identityID, ext string) (string, error)
}

// UserDirectory lists and looks up pool users; admin sessions only.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]idp.User, error)
	FindByEmail(ctx context.Context, email string) ([]idp.User, error)
	FindByUsername(ctx context.Context, username string) ([]idp.User, error)
}

// AuditLog records and queries auditable events.
type AuditLog interface {
	Append(ctx context.Context, e *audit.Entry) error
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Deps collects everything the server needs. The Ledger, Media and
// Directory fields are factories: adapters are built per request from the
// caller's own federated session.
type Deps struct {
	Accounts   Accounts
	Verifier   auth.TokenVerifier
	Users      CredentialSource
	Admins     CredentialSource
	Ledger     func(*federate.Session) Ledger
	Media      func(*federate.Session) MediaStore
	Directory  func(*federate.Session) UserDirectory
	AuditLog   AuditLog
	AdminGroup string
	Logger     *slog.Logger
}

// Server hosts the HTTP API.
type Server struct {
	accounts   Accounts
	verifier   auth.TokenVerifier
	users      CredentialSource
	admins     CredentialSource
	ledger     func(*federate.Session) Ledger
	media      func(*federate.Session) MediaStore
	directory  func(*federate.Session) UserDirectory
	auditLog   AuditLog
	adminGroup string
	logger     *slog.Logger
}

// New creates a Server from its dependencies.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default().With("component", "api")
	}
	adminGroup := d.AdminGroup
	if adminGroup == "" {
		adminGroup = "admin"
	}
	return &Server{
		accounts:   d.Accounts,
		verifier:   d.Verifier,
		users:      d.Users,
		admins:     d.Admins,
		ledger:     d.Ledger,
		media:      d.Media,
		directory:  d.Directory,
		auditLog:   d.AuditLog,
		adminGroup: adminGroup,
		logger:     logger,
	}
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// RegisterRoutes attaches all API routes to the mux.
//
// Three middleware chains are in play: account routes are open, user data
// routes require a bearer id token (federation needs the id class), the
// sign-out route requires the access token it revokes, and admin routes
// require an id token cookie plus admin group membership.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	idToken := auth.RequireToken(s.verifier, auth.TokenClassID, "")
	accessToken := auth.RequireToken(s.verifier, auth.TokenClassAccess, "")
	adminToken := auth.RequireToken(s.verifier, auth.TokenClassID, adminCookie)
	adminGroup := auth.RequireGroup(s.adminGroup)

	user := func(h http.HandlerFunc) http.Handler {
		return idToken(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return adminToken(adminGroup(h))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /auth/confirm", s.handleConfirm)
	mux.HandleFunc("POST /auth/signin", s.handleSignIn)
	mux.Handle("POST /auth/signout", accessToken(http.HandlerFunc(s.handleSignOut)))

	mux.Handle("GET /me", accessToken(http.HandlerFunc(s.handleMe)))

	mux.Handle("GET /profile", user(s.handleGetProfile))
	mux.Handle("PUT /profile", user(s.handlePutProfile))
	mux.Handle("POST /profile/picture", user(s.handleUploadPicture))
	mux.Handle("GET /profile/picture", user(s.handlePictureURL))

	mux.Handle("GET /assets", user(s.handleListAssets))
	mux.Handle("POST /assets", user(s.handleCreateAsset))
	mux.Handle("GET /assets/{id}", user(s.handleGetAsset))
	mux.Handle("PUT /assets/{id}", user(s.handleUpdateAsset))
	mux.Handle("DELETE /assets/{id}", user(s.handleDeleteAsset))

	mux.Handle("GET /liabilities", user(s.handleListLiabilities))
	mux.Handle("POST /liabilities", user(s.handleCreateLiability))
	mux.Handle("GET /liabilities/{id}", user(s.handleGetLiability))
	mux.Handle("PUT /liabilities/{id}", user(s.handleUpdateLiability))
	mux.Handle("DELETE /liabilities/{id}", user(s.handleDeleteLiability))

	mux.Handle("GET /portfolio", user(s.handlePortfolio))

	mux.Handle("GET /admin/users", admin(s.handleAdminListUsers))
	mux.Handle("GET /admin/users/lookup", admin(s.handleAdminLookupUser))
	mux.Handle("GET /admin/audit", admin(s.handleAdminAudit))
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userSession federates the caller's principal through the regular pool and
// returns the principal alongside the session.
func (s *Server) userSession(w http.ResponseWriter, r *http.Request) (*auth.Principal, *federate.Session, bool) {
	p := auth.MustFromContext(r.Context())
	session, err := s.users.Federate(r.Context(), p)
	if err != nil {
		s.logger.Error("credential federation failed", "username", p.Username, "error", err)
		s.writeError(w, r, err)
		return nil, nil, false
	}
	return p, session, true
}

// adminSession federates through the admin pool. A group-membership failure
// here means the token passed the HTTP gate but the pool mapping disagrees;
// it is audited either way.
func (s *Server) adminSession(w http.ResponseWriter, r *http.Request) (*auth.Principal, *federate.Session, bool) {
	p := auth.MustFromContext(r.Context())
	session, err := s.admins.Federate(r.Context(), p)
	if err != nil {
		s.audit(r, p.Username, audit.ActionFederationDenied, "denied", map[string]any{
			"required_group": s.adminGroup,
		})
		s.logger.Warn("admin federation failed", "username", p.Username, "error", err)
		s.writeError(w, r, err)
		return nil, nil, false
	}
	return p, session, true
}

// audit appends an audit entry, logging rather than failing the request when
// the append itself errors.
func (s *Server) audit(r *http.Request, username string, action audit.Action, outcome string, detail map[string]any) {
	if s.auditLog == nil {
		return
	}
	err := s.auditLog.Append(r.Context(), &audit.Entry{
		Username: username,
		Action:   action,
		Outcome:  outcome,
		Remote:   r.RemoteAddr,
		Detail:   detail,
	})
	if err != nil {
		s.logger.Error("audit append failed", "action", action, "error", err)
	}
}
