// Package auth verifies identity-provider tokens and derives the caller
// identity used everywhere else in oakledger.
//
// # Token Verification
//
// The provider signs tokens with a rotating RSA key set published as a JWKS
// document. KeySetCache fetches and caches that document; Verifier checks a
// presented token's signature, issuer, expiry, audience and token class
// against the cached keys and produces a Principal:
//
//	keys := auth.NewKeySetCache(cfg.Provider.JWKSURL(), nil)
//	verifier := auth.NewVerifier(keys, auth.VerifierConfig{
//		Issuer:   cfg.Provider.Issuer(),
//		ClientID: cfg.Provider.ClientID,
//	})
//	principal, err := verifier.Verify(ctx, raw, auth.TokenClassAccess)
//
// The signing algorithm is pinned by configuration. The algorithm named in
// the token header is never trusted; a token claiming any other algorithm is
// rejected outright.
//
// # Token Classes
//
// The provider issues two classes of token with different claim sets:
//
//   - "access": authorizes API calls, carries no audience claim
//   - "id": asserts identity, required for credential federation
//
// Callers state which class they expect; a class mismatch is a verification
// failure, never a silent downgrade.
//
// # Secret Hash
//
// Every write operation against the provider (sign-up, confirmation,
// sign-in) must carry a keyed digest binding the username to the client.
// SecretHasher computes it from the client id and shared client secret.
//
// # Middleware
//
// RequireToken extracts a bearer token (or cookie-carried token) from a
// request, verifies it, and attaches the Principal to the request context.
// RequireGroup layers a deny-by-default group membership check on top.
package auth
