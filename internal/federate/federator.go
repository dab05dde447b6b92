// ABOUTME: Exchanges verified identity tokens for scoped temporary credentials
// ABOUTME: Two identity-pool round-trips (GetId, GetCredentialsForIdentity) with session caching

package federate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"

	"github.com/oakledger/oakledger/internal/auth"
)

// ErrFederation is returned for any failure of the credential exchange.
// Callers must treat it as "not authenticated": there is no fallback to
// ambient credentials.
var ErrFederation = errors.New("federate: credential exchange failed")

// ErrWrongTokenClass is returned when the caller presents anything other
// than an identity-class principal. The federation exchange only accepts
// identity tokens.
var ErrWrongTokenClass = errors.New("federate: identity-class token required")

// sessionSkew is how long before the provider-reported expiry a cached
// session stops being served.
const sessionSkew = 30 * time.Second

// Pool names which identity pool a Federator exchanges against. Regular and
// administrative traffic use separate pools on purpose: the split is the
// privilege boundary, so the pool is fixed at construction rather than
// inferred per request.
type Pool string

const (
	PoolRegular Pool = "regular"
	PoolAdmin   Pool = "admin"
)

// Session is the ephemeral credential bundle a successful exchange returns.
// It is scoped by the pool's role mapping for the subject, lives for the
// provider-chosen duration, and must never be logged or persisted.
type Session struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time

	// IdentityID is the pool-assigned identifier for the subject. Stable
	// per subject but pool-specific.
	IdentityID string
}

// Expired reports whether the session should no longer be served, applying
// the skew margin.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Expires.Add(-sessionSkew))
}

// identityAPI is the subset of the identity-pool client the Federator uses.
// Implemented by *cognitoidentity.Client.
type identityAPI interface {
	GetId(ctx context.Context, params *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, params *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// NewIdentityAPI builds the identity-pool client. The exchange itself runs
// unauthenticated; trust rides entirely on the token in the Logins map.
func NewIdentityAPI(region string) *cognitoidentity.Client {
	return cognitoidentity.New(cognitoidentity.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
}

// Config holds the pool-specific parameters for a Federator.
type Config struct {
	// Pool labels which pool this federator serves (logging only).
	Pool Pool

	// PoolID is the identity pool identifier the exchange is scoped to.
	PoolID string

	// ProviderKey is the provider-URL key the raw token is presented
	// under in the Logins map, e.g. "cognito-idp.{region}.amazonaws.com/{userPoolID}".
	ProviderKey string

	// RequireGroup, when set, denies federation up front unless the
	// principal belongs to the group. The pool's own role mapping still
	// applies; this is defense in depth for the administrative pool.
	RequireGroup string

	// Now overrides the clock for tests.
	Now func() time.Time
}

// Federator exchanges a verified identity token for a Session. Sessions are
// cached per subject until near expiry to avoid repeating the two network
// round-trips on every request; expired sessions are never served.
type Federator struct {
	api    identityAPI
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a Federator for one identity pool.
func New(api identityAPI, cfg Config) *Federator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Federator{
		api:      api,
		cfg:      cfg,
		logger:   slog.Default().With("component", "federate", "pool", string(cfg.Pool)),
		sessions: make(map[string]*Session),
	}
}

// Federate exchanges the principal's identity token for a scoped Session.
// The principal must have been produced by verification with the identity
// class; the raw token is forwarded to the pool, which performs its own
// trust evaluation as well.
func (f *Federator) Federate(ctx context.Context, p *auth.Principal) (*Session, error) {
	if p == nil || p.Class != auth.TokenClassID {
		return nil, ErrWrongTokenClass
	}
	if f.cfg.RequireGroup != "" && !p.InGroup(f.cfg.RequireGroup) {
		return nil, fmt.Errorf("%w: group %q required for pool %s", auth.ErrForbidden, f.cfg.RequireGroup, f.cfg.Pool)
	}

	if s := f.cached(p.Subject); s != nil {
		return s, nil
	}

	logins := map[string]string{f.cfg.ProviderKey: p.RawToken}

	idOut, err := f.api.GetId(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(f.cfg.PoolID),
		Logins:         logins,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: resolving identity: %v", ErrFederation, err)
	}
	identityID := aws.ToString(idOut.IdentityId)
	if identityID == "" {
		return nil, fmt.Errorf("%w: empty identity id", ErrFederation)
	}

	credsOut, err := f.api.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: aws.String(identityID),
		Logins:     logins,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching credentials: %v", ErrFederation, err)
	}
	creds := credsOut.Credentials
	if creds == nil || creds.AccessKeyId == nil || creds.SecretKey == nil || creds.SessionToken == nil {
		return nil, fmt.Errorf("%w: incomplete credential response", ErrFederation)
	}

	session := &Session{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		IdentityID:      identityID,
	}
	if creds.Expiration != nil {
		session.Expires = *creds.Expiration
	} else {
		session.Expires = f.cfg.Now().Add(time.Hour)
	}

	f.mu.Lock()
	f.sessions[p.Subject] = session
	f.mu.Unlock()

	f.logger.Debug("federated session issued", "subject", p.Subject)
	return session, nil
}

// cached returns an unexpired session for the subject, if any.
func (f *Federator) cached(subject string) *Session {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[subject]
	if !ok {
		return nil
	}
	if s.Expired(f.cfg.Now()) {
		delete(f.sessions, subject)
		return nil
	}
	return s
}
