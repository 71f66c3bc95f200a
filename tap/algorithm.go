package tap

// Algorithm identifies an HTTP message signature algorithm per RFC 9421
// Section 3.3. TAP accepts exactly one.
type Algorithm string

const (
	// AlgorithmEd25519 is Edwards-Curve DSA over curve 25519, the only
	// algorithm the TAP profile accepts.
	AlgorithmEd25519 Algorithm = "ed25519"
)

// RequiredAlgorithm is the single algorithm the profile admits. Signatures
// carrying any other alg are rejected regardless of cryptographic validity.
const RequiredAlgorithm = AlgorithmEd25519

// String returns the registry identifier of the algorithm.
func (a Algorithm) String() string {
	return string(a)
}

// Signer creates signatures over signature base strings.
type Signer interface {
	// Sign produces a signature over the given message bytes.
	Sign(message []byte) ([]byte, error)

	// Algorithm returns the algorithm identifier for this signer.
	Algorithm() Algorithm

	// KeyID returns the key identifier included in signature parameters.
	KeyID() string
}

// Verifier validates signatures over signature base strings. Implementations
// are returned by a KeyResolver and bound to a single resolved key.
type Verifier interface {
	// Verify checks that signature is valid for the given message bytes.
	Verify(message, signature []byte) error

	// Algorithm returns the algorithm identifier for this verifier.
	Algorithm() Algorithm

	// KeyID returns the key identifier for this verifier.
	KeyID() string
}
