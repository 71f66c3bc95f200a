// Package jwks resolves TAP signing keys from issuer JWKS endpoints.
//
// It is the external collaborator the verification core consumes through
// the tap.KeyResolver interface: the core itself never touches the network.
// Fetched documents are cached with a TTL and concurrent fetches for the
// same issuer are collapsed into one request.
package jwks

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WellKnownPath is the conventional JWKS location under an issuer origin.
const WellKnownPath = "/.well-known/jwks.json"

// maxDocumentSize bounds how much of a JWKS response is read.
const maxDocumentSize = 1 << 20

// Document is a JSON Web Key Set as served by an issuer.
type Document struct {
	Keys []Key `json:"keys"`
}

// Key is a single JWK. Only OKP/Ed25519 keys are meaningful to TAP.
type Key struct {
	KeyType string `json:"kty"`
	Curve   string `json:"crv"`
	KeyID   string `json:"kid"`
	X       string `json:"x"`
	Use     string `json:"use,omitempty"`
}

// KeySet holds the Ed25519 keys extracted from a Document, by kid.
type KeySet struct {
	keys map[string]ed25519.PublicKey
}

// Get returns the public key for a kid.
func (ks *KeySet) Get(kid string) (ed25519.PublicKey, bool) {
	key, ok := ks.keys[kid]
	return key, ok
}

// Len returns the number of usable keys in the set.
func (ks *KeySet) Len() int { return len(ks.keys) }

// ToKeySet extracts the Ed25519 keys from a Document. Keys of other types
// are skipped; a malformed x coordinate on an Ed25519 key is an error.
func (d *Document) ToKeySet() (*KeySet, error) {
	ks := &KeySet{keys: make(map[string]ed25519.PublicKey)}

	for _, key := range d.Keys {
		if key.KeyType != "OKP" || key.Curve != "Ed25519" {
			continue
		}

		raw, err := base64.RawURLEncoding.DecodeString(key.X)
		if err != nil {
			return nil, fmt.Errorf("jwks: key %q: invalid x coordinate: %w", key.KeyID, err)
		}

		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("jwks: key %q: x must be %d bytes", key.KeyID, ed25519.PublicKeySize)
		}

		ks.keys[key.KeyID] = ed25519.PublicKey(raw)
	}

	return ks, nil
}

// EndpointFor returns the JWKS URL for an issuer origin.
func EndpointFor(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + WellKnownPath
}

// Fetch retrieves and decodes a JWKS document.
func Fetch(ctx context.Context, client *http.Client, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("jwks: decode %s: %w", url, err)
	}

	return &doc, nil
}
