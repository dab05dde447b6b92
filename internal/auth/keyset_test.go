// ABOUTME: Tests for JWKS fetching, caching and refresh coalescing
// ABOUTME: Covers cache hits, misses after refresh, fetch failures and single-flight

package auth

import (
	"context"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySetCache_PopulatesOnFirstUse(t *testing.T) {
	key := newTestKey(t)
	server := newJWKSServer(t, map[string]*rsa.PublicKey{"key-1": &key.PublicKey})

	cache := NewKeySetCache(server.URL, nil)

	got, err := cache.Key(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.N.Cmp(key.PublicKey.N))
	assert.EqualValues(t, 1, server.fetches.Load())
}

func TestKeySetCache_SecondLookupIsCacheHit(t *testing.T) {
	key := newTestKey(t)
	server := newJWKSServer(t, map[string]*rsa.PublicKey{"key-1": &key.PublicKey})

	cache := NewKeySetCache(server.URL, nil)

	_, err := cache.Key(context.Background(), "key-1")
	require.NoError(t, err)
	_, err = cache.Key(context.Background(), "key-1")
	require.NoError(t, err)

	assert.EqualValues(t, 1, server.fetches.Load(), "present key must not trigger a refetch")
}

func TestKeySetCache_UnknownKidAfterRefresh(t *testing.T) {
	key := newTestKey(t)
	server := newJWKSServer(t, map[string]*rsa.PublicKey{"key-1": &key.PublicKey})

	cache := NewKeySetCache(server.URL, nil)

	_, err := cache.Key(context.Background(), "retired-key")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	// The miss still performed exactly one refresh attempt.
	assert.EqualValues(t, 1, server.fetches.Load())
}

func TestKeySetCache_FetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := NewKeySetCache(server.URL, nil)

	_, err := cache.Key(context.Background(), "key-1")
	assert.ErrorIs(t, err, ErrKeyFetch)
}

func TestKeySetCache_FailureIsNotCachedAsEmpty(t *testing.T) {
	key := newTestKey(t)
	body := jwksFor(map[string]*rsa.PublicKey{"key-1": &key.PublicKey})

	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write(body)
	}))
	defer server.Close()

	cache := NewKeySetCache(server.URL, nil)

	_, err := cache.Key(context.Background(), "key-1")
	require.ErrorIs(t, err, ErrKeyFetch)

	// A later request retries the fetch and succeeds.
	failing.Store(false)
	_, err = cache.Key(context.Background(), "key-1")
	assert.NoError(t, err)
}

func TestKeySetCache_ConcurrentMissesSingleFetch(t *testing.T) {
	key := newTestKey(t)
	body := jwksFor(map[string]*rsa.PublicKey{"key-1": &key.PublicKey})

	var fetches atomic.Int64
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		<-release
		w.Write(body)
	}))
	defer server.Close()

	cache := NewKeySetCache(server.URL, &http.Client{Timeout: 5 * time.Second})

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Key(context.Background(), "key-1")
		}(i)
	}

	// Give all callers time to pile onto the in-flight fetch, then let it go.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.EqualValues(t, 1, fetches.Load(), "concurrent misses must coalesce into one fetch")
}

func TestKeySetCache_WholeSetReplacedOnRefresh(t *testing.T) {
	oldKey := newTestKey(t)
	newKey := newTestKey(t)

	var serveNew atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if serveNew.Load() {
			w.Write(jwksFor(map[string]*rsa.PublicKey{"key-2": &newKey.PublicKey}))
			return
		}
		w.Write(jwksFor(map[string]*rsa.PublicKey{"key-1": &oldKey.PublicKey}))
	}))
	defer server.Close()

	cache := NewKeySetCache(server.URL, nil)

	_, err := cache.Key(context.Background(), "key-1")
	require.NoError(t, err)

	// Rotation: the provider drops key-1 and publishes key-2. A miss on
	// key-2 refreshes; afterwards key-1 is gone (no stale keys retained).
	serveNew.Store(true)
	_, err = cache.Key(context.Background(), "key-2")
	require.NoError(t, err)

	_, err = cache.Key(context.Background(), "key-1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
