// ABOUTME: Token verification against the provider's rotating key set
// ABOUTME: Pins the signing algorithm and validates issuer, audience, expiry and class

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names used by the identity provider. The principal name lives under
// a different field depending on token class.
const (
	claimTokenUse   = "token_use"
	claimUsernameID = "cognito:username" // identity-class tokens
	claimUsername   = "username"         // access-class tokens
	claimGroups     = "cognito:groups"
	claimScope      = "scope"
)

// VerifierConfig holds the trusted parameters a token must match.
type VerifierConfig struct {
	// Issuer is the exact provider+pool identifier the token's iss claim
	// must equal.
	Issuer string

	// ClientID is the expected audience. Checked only for identity-class
	// tokens; access-class tokens from this provider carry no audience.
	ClientID string

	// Algorithm is the pinned signing algorithm. Tokens whose header names
	// any other algorithm are rejected regardless of signature validity.
	// Defaults to RS256.
	Algorithm string
}

// Verifier validates presented tokens and produces Principals. It holds no
// per-request state; the only shared state is the injected key set cache.
type Verifier struct {
	keys   *KeySetCache
	cfg    VerifierConfig
	logger *slog.Logger
}

// NewVerifier creates a Verifier backed by the given key set cache.
func NewVerifier(keys *KeySetCache, cfg VerifierConfig) *Verifier {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "RS256"
	}
	return &Verifier{
		keys:   keys,
		cfg:    cfg,
		logger: slog.Default().With("component", "verifier"),
	}
}

// Verify validates the token and returns the Principal it asserts.
// Verification fails with an InvalidTokenError carrying the rejection
// reason, or with ErrKeyFetch when the key set itself is unavailable.
func (v *Verifier) Verify(ctx context.Context, raw string, class TokenClass) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.cfg.Algorithm}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithExpirationRequired(),
	}
	if class == TokenClassID {
		opts = append(opts, jwt.WithAudience(v.cfg.ClientID))
	}

	token, err := jwt.Parse(raw, v.keyfunc(ctx), opts...)
	if err != nil {
		return nil, v.classify(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, invalidToken(ReasonMalformed, nil)
	}

	use, _ := claims[claimTokenUse].(string)
	if use != string(class) {
		return nil, invalidToken(ReasonClass, fmt.Errorf("token_use %q, expected %q", use, class))
	}

	return principalFromClaims(claims, class, raw)
}

// keyfunc resolves the verification key named by the token header's kid.
func (v *Verifier) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrKeyNotFound)
		}
		return v.keys.Key(ctx, kid)
	}
}

// classify maps parser failures onto the error taxonomy. Key-set fetch
// failures keep their own identity so the boundary can report upstream
// trouble instead of blaming the caller.
func (v *Verifier) classify(err error) error {
	switch {
	case errors.Is(err, ErrKeyFetch):
		return err
	case errors.Is(err, ErrKeyNotFound):
		return invalidToken(ReasonUnknownKey, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return invalidToken(ReasonExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return invalidToken(ReasonIssuer, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return invalidToken(ReasonAudience, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return invalidToken(ReasonSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return invalidToken(ReasonMalformed, err)
	default:
		return invalidToken(ReasonMalformed, err)
	}
}

// principalFromClaims builds the trusted Principal once all required claims
// have been validated. The raw claim map never leaves this package.
func principalFromClaims(claims jwt.MapClaims, class TokenClass, raw string) (*Principal, error) {
	nameClaim := claimUsername
	if class == TokenClassID {
		nameClaim = claimUsernameID
	}

	username, _ := claims[nameClaim].(string)
	if username == "" {
		return nil, invalidToken(ReasonClaims, fmt.Errorf("missing %s claim", nameClaim))
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, invalidToken(ReasonClaims, errors.New("missing sub claim"))
	}

	p := &Principal{
		Username: username,
		Subject:  sub,
		Class:    class,
		RawToken: raw,
	}

	if scope, ok := claims[claimScope].(string); ok {
		p.Scope = scope
	}
	if groups, ok := claims[claimGroups].([]any); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				p.Groups = append(p.Groups, s)
			}
		}
	}

	return p, nil
}
