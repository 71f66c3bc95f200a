package jwks

import (
	"context"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/peacprotocol/tap-go/tap"
)

// DefaultTTL is how long fetched key sets stay cached.
const DefaultTTL = 5 * time.Minute

// Resolver implements tap.KeyResolver against issuer JWKS endpoints. It is
// an explicitly constructed object passed by reference into the worker; no
// module-level cache state exists.
type Resolver struct {
	allowed map[string]struct{}
	client  *http.Client
	cache   *gocache.Cache
	group   singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) { r.client = client }
}

// WithTTL overrides the cache TTL.
func WithTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) { r.cache = gocache.New(ttl, 2*ttl) }
}

// NewResolver creates a Resolver that only fetches keys from the given
// issuer origins. Issuers outside the allowlist resolve to no key.
func NewResolver(issuerAllowlist []string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		allowed: make(map[string]struct{}, len(issuerAllowlist)),
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   gocache.New(DefaultTTL, 2*DefaultTTL),
	}

	for _, issuer := range issuerAllowlist {
		if origin := tap.OriginOf(issuer); origin != "" {
			r.allowed[origin] = struct{}{}
		}
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve implements tap.KeyResolver. A (nil, nil) return means the issuer
// is outside the allowlist or the key set has no matching kid.
func (r *Resolver) Resolve(ctx context.Context, issuer, keyID string) (tap.Verifier, error) {
	origin := tap.OriginOf(issuer)
	if origin == "" {
		return nil, nil
	}

	if _, ok := r.allowed[origin]; !ok {
		return nil, nil
	}

	keySet, err := r.keySetFor(ctx, origin)
	if err != nil {
		return nil, err
	}

	pub, ok := keySet.Get(keyID)
	if !ok {
		return nil, nil
	}

	verifier, err := tap.NewEd25519Verifier(keyID, pub)
	if err != nil {
		return nil, err
	}

	return &sourcedVerifier{Verifier: verifier, source: EndpointFor(origin)}, nil
}

// keySetFor returns the cached key set for an origin, fetching at most once
// concurrently per origin.
func (r *Resolver) keySetFor(ctx context.Context, origin string) (*KeySet, error) {
	if cached, ok := r.cache.Get(origin); ok {
		return cached.(*KeySet), nil
	}

	result, err, _ := r.group.Do(origin, func() (any, error) {
		if cached, ok := r.cache.Get(origin); ok {
			return cached, nil
		}

		doc, err := Fetch(ctx, r.client, EndpointFor(origin))
		if err != nil {
			return nil, err
		}

		keySet, err := doc.ToKeySet()
		if err != nil {
			return nil, err
		}

		r.cache.SetDefault(origin, keySet)

		return keySet, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*KeySet), nil
}

// sourcedVerifier reports the JWKS endpoint its key came from.
type sourcedVerifier struct {
	tap.Verifier
	source string
}

func (v *sourcedVerifier) KeySource() string { return v.source }
