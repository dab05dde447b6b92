// ABOUTME: Test fakes and server fixture for the HTTP API tests
// ABOUTME: Scripted verifier, federators, ledger, media, directory and audit log

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oakledger/oakledger/internal/audit"
	"github.com/oakledger/oakledger/internal/auth"
	"github.com/oakledger/oakledger/internal/federate"
	"github.com/oakledger/oakledger/internal/idp"
	"github.com/oakledger/oakledger/internal/store"
)

type fakeVerifier struct {
	principals map[string]*auth.Principal
	err        error
}

func (f *fakeVerifier) Verify(_ context.Context, raw string, class auth.TokenClass) (*auth.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.principals[raw]
	if !ok {
		return nil, &auth.InvalidTokenError{Reason: auth.ReasonMalformed}
	}
	if p.Class != class {
		return nil, &auth.InvalidTokenError{Reason: auth.ReasonClass}
	}
	return p, nil
}

type fakeFederator struct {
	session *federate.Session
	err     error
	calls   int
}

func (f *fakeFederator) Federate(_ context.Context, _ *auth.Principal) (*federate.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeAccounts struct {
	signUpErr  error
	confirmErr error
	signInErr  error
	signOutErr error

	tokens      *idp.Tokens
	lastSignOut string
}

func (f *fakeAccounts) SignUp(_ context.Context, _, _, _ string) error    { return f.signUpErr }
func (f *fakeAccounts) Confirm(_ context.Context, _, _ string) error      { return f.confirmErr }
func (f *fakeAccounts) SignOut(_ context.Context, accessToken string) error {
	f.lastSignOut = accessToken
	return f.signOutErr
}

func (f *fakeAccounts) SignIn(_ context.Context, _, _ string) (*idp.Tokens, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.tokens, nil
}

type fakeLedger struct {
	profiles    map[string]*store.Profile
	assets      map[string]*store.Asset
	liabilities map[string]*store.Liability
	err         error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		profiles:    map[string]*store.Profile{},
		assets:      map[string]*store.Asset{},
		liabilities: map[string]*store.Liability{},
	}
}

func (f *fakeLedger) PutProfile(_ context.Context, p *store.Profile) error {
	if f.err != nil {
		return f.err
	}
	cp := *p
	f.profiles[p.UserName] = &cp
	return nil
}

func (f *fakeLedger) GetProfile(_ context.Context, username string) (*store.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLedger) PutAsset(_ context.Context, a *store.Asset) error {
	if f.err != nil {
		return f.err
	}
	cp := *a
	f.assets[a.AssetID] = &cp
	return nil
}

func (f *fakeLedger) GetAsset(_ context.Context, id, username string) (*store.Asset, error) {
	a, ok := f.assets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if a.Username != username {
		return nil, store.ErrNotOwner
	}
	cp := *a
	return &cp, nil
}

func (f *fakeLedger) ListAssets(_ context.Context, username string) ([]store.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Asset
	for _, a := range f.assets {
		if a.Username == username {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeLedger) DeleteAsset(ctx context.Context, id, username string) error {
	if _, err := f.GetAsset(ctx, id, username); err != nil {
		return err
	}
	delete(f.assets, id)
	return nil
}

func (f *fakeLedger) PutLiability(_ context.Context, l *store.Liability) error {
	cp := *l
	f.liabilities[l.LiabilityID] = &cp
	return nil
}

func (f *fakeLedger) GetLiability(_ context.Context, id, username string) (*store.Liability, error) {
	l, ok := f.liabilities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if l.Username != username {
		return nil, store.ErrNotOwner
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLedger) ListLiabilities(_ context.Context, username string) ([]store.Liability, error) {
	var out []store.Liability
	for _, l := range f.liabilities {
		if l.Username == username {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeLedger) DeleteLiability(ctx context.Context, id, username string) error {
	if _, err := f.GetLiability(ctx, id, username); err != nil {
		return err
	}
	delete(f.liabilities, id)
	return nil
}

type fakeMedia struct {
	uploadErr error
	lastKey   string
}

func (f *fakeMedia) UploadProfilePicture(_ context.Context, identityID, ext, contentType string, _ io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", errors.New("store: content type is not an image")
	}
	f.lastKey = "pictures/" + identityID + "/profile_pic." + ext
	return f.lastKey, nil
}

func (f *fakeMedia) ProfilePictureURL(_ context.Context, identityID, ext string) (string, error) {
	return "https://media.example.com/pictures/" + identityID + "/profile_pic." + ext + "?sig=abc", nil
}

type fakeDirectory struct {
	users      []idp.User
	err        error
	lastFilter string
}

func (f *fakeDirectory) ListUsers(_ context.Context) ([]idp.User, error) {
	f.lastFilter = ""
	return f.users, f.err
}

func (f *fakeDirectory) FindByEmail(_ context.Context, email string) ([]idp.User, error) {
	f.lastFilter = "email=" + email
	return f.users, f.err
}

func (f *fakeDirectory) FindByUsername(_ context.Context, username string) ([]idp.User, error) {
	f.lastFilter = "username=" + username
	return f.users, f.err
}

type fakeAuditLog struct {
	entries []audit.Entry
	listErr error
}

func (f *fakeAuditLog) Append(_ context.Context, e *audit.Entry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeAuditLog) List(_ context.Context, _ audit.Filter) ([]audit.Entry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries, nil
}

func (f *fakeAuditLog) byAction(action audit.Action) []audit.Entry {
	var out []audit.Entry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// fixture bundles the server with all its fakes.
type fixture struct {
	server    *httptest.Server
	accounts  *fakeAccounts
	users     *fakeFederator
	admins    *fakeFederator
	ledger    *fakeLedger
	media     *fakeMedia
	directory *fakeDirectory
	auditLog  *fakeAuditLog
}

const (
	userIDToken     = "id-token-marta"
	userAccessToken = "access-token-marta"
	adminIDToken    = "id-token-root"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	verifier := &fakeVerifier{principals: map[string]*auth.Principal{
		userIDToken: {
			Username: "marta", Subject: "sub-marta",
			Class: auth.TokenClassID, RawToken: userIDToken,
		},
		userAccessToken: {
			Username: "marta", Subject: "sub-marta",
			Class: auth.TokenClassAccess, RawToken: userAccessToken,
		},
		adminIDToken: {
			Username: "root", Subject: "sub-root", Groups: []string{"admin"},
			Class: auth.TokenClassID, RawToken: adminIDToken,
		},
	}}

	f := &fixture{
		accounts: &fakeAccounts{tokens: &idp.Tokens{
			AccessToken: "at", IDToken: "it", RefreshToken: "rt",
			TokenType: "Bearer", ExpiresIn: 3600,
		}},
		users: &fakeFederator{session: &federate.Session{
			AccessKeyID: "AKIA", SecretAccessKey: "secret", SessionToken: "tok",
			IdentityID: "pool:marta", Expires: time.Now().Add(time.Hour),
		}},
		admins: &fakeFederator{session: &federate.Session{
			AccessKeyID: "AKIA2", SecretAccessKey: "secret2", SessionToken: "tok2",
			IdentityID: "pool:root", Expires: time.Now().Add(time.Hour),
		}},
		ledger:    newFakeLedger(),
		media:     &fakeMedia{},
		directory: &fakeDirectory{},
		auditLog:  &fakeAuditLog{},
	}

	srv := New(Deps{
		Accounts:   f.accounts,
		Verifier:   verifier,
		Users:      f.users,
		Admins:     f.admins,
		Ledger:     func(*federate.Session) Ledger { return f.ledger },
		Media:      func(*federate.Session) MediaStore { return f.media },
		Directory:  func(*federate.Session) UserDirectory { return f.directory },
		AuditLog:   f.auditLog,
		AdminGroup: "admin",
	})
	f.server = httptest.NewServer(srv.Handler())
	t.Cleanup(f.server.Close)
	return f
}

// do sends a request with an optional bearer token and optional cookie.
func (f *fixture) do(t *testing.T, method, path, bearer, body string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
