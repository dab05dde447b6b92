// ABOUTME: Cache of the identity provider's published JWKS signing keys
// ABOUTME: Refreshes lazily on lookup miss with single-flight coalescing

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultFetchTimeout bounds a key-set fetch when the caller's context
// carries no earlier deadline.
const defaultFetchTimeout = 10 * time.Second

// jwksDocument mirrors the provider's published key set (RFC 7517).
type jwksDocument struct {
	Keys []jsonWebKey `json:"keys"`
}

type jsonWebKey struct {
	KeyID     string `json:"kid"`
	KeyType   string `json:"kty"`
	Algorithm string `json:"alg"`
	Use       string `json:"use"`
	N         string `json:"n"`
	E         string `json:"e"`
}

// KeySetCache holds the provider's current public signing keys, fetched from
// the well-known JWKS endpoint. The set is replaced wholesale on refresh;
// individual keys are never mutated. Concurrent misses coalesce into a
// single outbound fetch.
type KeySetCache struct {
	url    string
	client *http.Client
	logger *slog.Logger

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey

	group singleflight.Group
}

// NewKeySetCache creates a cache for the key set published at jwksURL.
// If client is nil, a client with a bounded timeout is used.
func NewKeySetCache(jwksURL string, client *http.Client) *KeySetCache {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &KeySetCache{
		url:    jwksURL,
		client: client,
		logger: slog.Default().With("component", "keyset"),
	}
}

// Key returns the public key with the given key id. On a miss it refreshes
// the whole set once; if the id is still absent afterwards the token that
// named it is simply untrusted (retired or foreign key), reported as
// ErrKeyNotFound. Fetch failures are reported as ErrKeyFetch and never leave
// an empty set behind.
func (c *KeySetCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key := c.lookup(kid); key != nil {
		return key, nil
	}

	// Miss: coalesce concurrent refreshes into one fetch. A fixed group key
	// is deliberate; the whole document is replaced regardless of which kid
	// triggered the refresh.
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		// Recheck under the flight: a refresh that completed while we
		// queued may already have the key.
		if c.lookup(kid) != nil {
			return nil, nil
		}
		return nil, c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}

	if key := c.lookup(kid); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

func (c *KeySetCache) lookup(kid string) *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys[kid]
}

// refresh fetches the JWKS document and atomically replaces the cached set.
func (c *KeySetCache) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d from %s", ErrKeyFetch, resp.StatusCode, c.url)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("%w: decoding key set: %v", ErrKeyFetch, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.KeyType != "RSA" || jwk.KeyID == "" {
			continue
		}
		pub, err := rsaPublicKey(jwk)
		if err != nil {
			return fmt.Errorf("%w: key %q: %v", ErrKeyFetch, jwk.KeyID, err)
		}
		keys[jwk.KeyID] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.mu.Unlock()

	c.logger.Debug("signing key set refreshed", "keys", len(keys))
	return nil
}

// rsaPublicKey builds an rsa.PublicKey from the JWK modulus and exponent.
func rsaPublicKey(jwk jsonWebKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 0 {
		return nil, fmt.Errorf("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
