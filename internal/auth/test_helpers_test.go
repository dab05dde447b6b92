// ABOUTME: Shared test helpers for the auth package
// ABOUTME: Mints RS256 tokens and serves fake JWKS endpoints over httptest

package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://idp.example.com/pool-1"
	testClientID = "client-abc123"
)

// newTestKey generates an RSA signing key for token minting.
func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// jwksFor encodes public keys as a JWKS document, keyed by kid.
func jwksFor(keys map[string]*rsa.PublicKey) []byte {
	doc := jwksDocument{}
	for kid, pub := range keys {
		eBytes := big.NewInt(int64(pub.E)).Bytes()
		doc.Keys = append(doc.Keys, jsonWebKey{
			KeyID:     kid,
			KeyType:   "RSA",
			Algorithm: "RS256",
			Use:       "sig",
			N:         base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:         base64.RawURLEncoding.EncodeToString(eBytes),
		})
	}
	data, _ := json.Marshal(doc)
	return data
}

// jwksServer serves the given key set and counts fetches.
type jwksServer struct {
	*httptest.Server
	fetches atomic.Int64
}

func newJWKSServer(t *testing.T, keys map[string]*rsa.PublicKey) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	body := jwksFor(keys)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// tokenSpec describes a token to mint; zero values get sensible defaults.
type tokenSpec struct {
	kid      string
	class    TokenClass
	username string
	subject  string
	issuer   string
	audience string
	groups   []string
	scope    string
	expires  time.Time
	method   jwt.SigningMethod
	skipAud  bool
}

// mintToken signs a token with the given key following the provider's claim
// layout for the requested class.
func mintToken(t *testing.T, key *rsa.PrivateKey, spec tokenSpec) string {
	t.Helper()

	if spec.username == "" {
		spec.username = "casey"
	}
	if spec.subject == "" {
		spec.subject = "sub-0001"
	}
	if spec.issuer == "" {
		spec.issuer = testIssuer
	}
	if spec.expires.IsZero() {
		spec.expires = time.Now().Add(time.Hour)
	}
	if spec.method == nil {
		spec.method = jwt.SigningMethodRS256
	}

	claims := jwt.MapClaims{
		"sub":        spec.subject,
		"iss":        spec.issuer,
		"iat":        time.Now().Add(-time.Minute).Unix(),
		"exp":        spec.expires.Unix(),
		claimTokenUse: string(spec.class),
	}

	switch spec.class {
	case TokenClassID:
		claims[claimUsernameID] = spec.username
		if !spec.skipAud {
			aud := spec.audience
			if aud == "" {
				aud = testClientID
			}
			claims["aud"] = aud
		}
	case TokenClassAccess:
		claims[claimUsername] = spec.username
		if spec.scope != "" {
			claims[claimScope] = spec.scope
		}
	}

	if spec.groups != nil {
		claims[claimGroups] = spec.groups
	}

	token := jwt.NewWithClaims(spec.method, claims)
	token.Header["kid"] = spec.kid

	var signed string
	var err error
	if spec.method == jwt.SigningMethodHS256 {
		signed, err = token.SignedString([]byte("attacker-controlled-secret"))
	} else {
		signed, err = token.SignedString(key)
	}
	require.NoError(t, err)
	return signed
}

// newTestVerifier wires a Verifier against a JWKS server for the given keys.
func newTestVerifier(t *testing.T, keys map[string]*rsa.PublicKey) (*Verifier, *jwksServer) {
	t.Helper()
	server := newJWKSServer(t, keys)
	cache := NewKeySetCache(server.URL, nil)
	verifier := NewVerifier(cache, VerifierConfig{
		Issuer:   testIssuer,
		ClientID: testClientID,
	})
	return verifier, server
}
