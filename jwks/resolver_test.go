package jwks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peacprotocol/tap-go/tap"
)

func testJWKSServer(t *testing.T, doc *Document) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, WellKnownPath, r.URL.Path)
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func TestResolverResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a known kid", func(t *testing.T) {
		doc, _ := testDocument(t, "k1")
		srv, _ := testJWKSServer(t, doc)

		r := NewResolver([]string{srv.URL}, WithHTTPClient(srv.Client()))

		verifier, err := r.Resolve(ctx, srv.URL, "k1")
		require.NoError(t, err)
		require.NotNil(t, verifier)
		assert.Equal(t, "k1", verifier.KeyID())
		assert.Equal(t, tap.AlgorithmEd25519, verifier.Algorithm())
	})

	t.Run("verifier reports its jwks source", func(t *testing.T) {
		doc, _ := testDocument(t, "k1")
		srv, _ := testJWKSServer(t, doc)

		r := NewResolver([]string{srv.URL}, WithHTTPClient(srv.Client()))

		verifier, err := r.Resolve(ctx, srv.URL, "k1")
		require.NoError(t, err)

		sourced, ok := verifier.(interface{ KeySource() string })
		require.True(t, ok)
		assert.Equal(t, EndpointFor(srv.URL), sourced.KeySource())
	})

	t.Run("issuer outside allowlist resolves to nothing", func(t *testing.T) {
		doc, _ := testDocument(t, "k1")
		srv, calls := testJWKSServer(t, doc)

		r := NewResolver([]string{"https://issuer.example"}, WithHTTPClient(srv.Client()))

		verifier, err := r.Resolve(ctx, srv.URL, "k1")
		require.NoError(t, err)
		assert.Nil(t, verifier)
		assert.Zero(t, calls.Load(), "no fetch for disallowed issuers")
	})

	t.Run("unknown kid resolves to nothing", func(t *testing.T) {
		doc, _ := testDocument(t, "k1")
		srv, _ := testJWKSServer(t, doc)

		r := NewResolver([]string{srv.URL}, WithHTTPClient(srv.Client()))

		verifier, err := r.Resolve(ctx, srv.URL, "missing")
		require.NoError(t, err)
		assert.Nil(t, verifier)
	})

	t.Run("non-url issuer resolves to nothing", func(t *testing.T) {
		r := NewResolver([]string{"https://issuer.example"})

		verifier, err := r.Resolve(ctx, "not a url", "k1")
		require.NoError(t, err)
		assert.Nil(t, verifier)
	})

	t.Run("endpoint failure surfaces as error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		r := NewResolver([]string{srv.URL}, WithHTTPClient(srv.Client()))

		_, err := r.Resolve(ctx, srv.URL, "k1")
		assert.Error(t, err)
	})
}

func TestResolverCaching(t *testing.T) {
	ctx := context.Background()

	doc, _ := testDocument(t, "k1")
	srv, calls := testJWKSServer(t, doc)

	r := NewResolver([]string{srv.URL}, WithHTTPClient(srv.Client()))

	for i := 0; i < 5; i++ {
		verifier, err := r.Resolve(ctx, srv.URL, "k1")
		require.NoError(t, err)
		require.NotNil(t, verifier)
	}

	assert.Equal(t, int64(1), calls.Load(), "key set fetched once within the TTL")
}
