package tap

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// nonceSize is the number of random bytes used to generate a nonce.
const nonceSize = 16

// DefaultTTL is the validity window applied when SignConfig.TTL is zero.
// It stays well inside MaxWindow.
const DefaultTTL = 300 * time.Second

// defaultCoveredComponents are the components signed when
// SignConfig.CoveredComponents is empty.
var defaultCoveredComponents = []string{ComponentMethod, ComponentAuthority, ComponentPath}

// GenerateNonce returns a cryptographically random nonce string: 16 random
// bytes encoded as unpadded base64url (22 characters).
func GenerateNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SignConfig configures TAP-profile request signing.
type SignConfig struct {
	// Signer produces signatures. Required, must be Ed25519.
	Signer Signer

	// Label identifies the signature in Signature/Signature-Input headers.
	// Defaults to "sig1".
	Label string

	// CoveredComponents lists the component identifiers to include in the
	// signature base. Defaults to [@method, @authority, @path].
	CoveredComponents []string

	// Nonce is the anti-replay nonce. When empty, a random nonce is
	// generated; set NoNonce to omit the parameter entirely.
	Nonce string

	// NoNonce omits the nonce parameter. Verifiers with replay protection
	// configured will still accept such signatures, but they gain no
	// replay defense.
	NoNonce bool

	// Tag is the profile tag. Defaults to "web-bot-auth".
	Tag string

	// Created sets the signature creation time. When zero, time.Now() is
	// used.
	Created time.Time

	// TTL sets the validity window. Defaults to DefaultTTL; values beyond
	// MaxWindow are rejected since no verifier would accept them.
	TTL time.Duration

	// DigestAlgorithm, when set, causes SignRequest to compute and set a
	// Content-Digest header (RFC 9530) before signing. The
	// "content-digest" component is added to covered components if not
	// already present.
	DigestAlgorithm DigestAlgorithm
}

// SignRequest signs an HTTP request in-place by adding Signature and
// Signature-Input headers carrying a TAP-profile signature.
func SignRequest(r *http.Request, cfg SignConfig) error {
	if cfg.Signer == nil {
		return ErrNoSigner
	}

	if cfg.Signer.Algorithm() != RequiredAlgorithm {
		return fmt.Errorf("%w: tap requires %s", ErrInvalidKey, RequiredAlgorithm)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	if ttl > MaxWindow {
		return fmt.Errorf("tap: ttl %s exceeds maximum window %s", ttl, MaxWindow)
	}

	label := cfg.Label
	if label == "" {
		label = "sig1"
	}

	components := cfg.CoveredComponents
	if len(components) == 0 {
		components = defaultCoveredComponents
	}

	if cfg.DigestAlgorithm != "" {
		if err := SetContentDigest(r, cfg.DigestAlgorithm); err != nil {
			return err
		}

		if !slices.Contains(components, "content-digest") {
			components = append(components, "content-digest")
		}
	}

	nonce := cfg.Nonce
	if nonce == "" && !cfg.NoNonce {
		generated, err := GenerateNonce()
		if err != nil {
			return err
		}

		nonce = generated
	}

	tag := cfg.Tag
	if tag == "" {
		tag = "web-bot-auth"
	}

	created := cfg.Created
	if created.IsZero() {
		created = time.Now()
	}

	params := SignatureParams{
		Components: components,
		Created:    created,
		Expires:    created.Add(ttl),
		Nonce:      nonce,
		Alg:        cfg.Signer.Algorithm(),
		KeyID:      cfg.Signer.KeyID(),
		Tag:        tag,
	}

	paramsText := serializeSignatureParams(params)

	base, err := buildSignatureBase(FromHTTPRequest(r), components, paramsText)
	if err != nil {
		return err
	}

	sig, err := cfg.Signer.Sign(base)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(sig)

	// Append to existing headers (supports multiple signatures).
	appendDictMember(r, HeaderSignatureInput, label, paramsText)
	appendDictMember(r, HeaderSignature, label, ":"+encoded+":")

	return nil
}

// appendDictMember appends a key=value member to an RFC 8941 dictionary
// header. If the header already has content, the new member is appended
// with a comma separator.
func appendDictMember(r *http.Request, header, key, value string) {
	existing := r.Header.Get(header)
	entry := key + "=" + value

	if existing == "" {
		r.Header.Set(header, entry)
	} else {
		r.Header.Set(header, existing+", "+entry)
	}
}
