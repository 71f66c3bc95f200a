package tap

import "time"

// Engine is the fixed identifier stamped on every control entry produced by
// this verification engine.
const Engine = "peac-tap"

// Protocol is the protocol tag recorded on evidence.
const Protocol = "tap"

// Evidence captures what was verified about one request signature. It is
// immutable once produced; downstream policy reads it, never mutates it.
type Evidence struct {
	Protocol          string    `json:"protocol"`
	Tag               string    `json:"tag,omitempty"`
	KeyID             string    `json:"keyid"`
	Issuer            string    `json:"issuer"`
	Created           time.Time `json:"created"`
	Expires           time.Time `json:"expires"`
	Nonce             string    `json:"nonce,omitempty"`
	CoveredComponents []string  `json:"covered_components"`
	Signature         []byte    `json:"-"`
	Verified          bool      `json:"verified"`

	// KeySource records where the resolved key came from, as reported by
	// the resolver (e.g. a JWKS URL).
	KeySource string `json:"key_source,omitempty"`
}

// ControlEntry is the normalized verification outcome attached to a request
// on the allow path. Produced exactly once per verified request.
type ControlEntry struct {
	Engine   string   `json:"engine"`
	Result   string   `json:"result"`
	Evidence Evidence `json:"evidence"`
}

// Control entry results.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)
