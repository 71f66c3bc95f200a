// Package tap implements request verification for the Trusted Agent
// Protocol (TAP), a profile of HTTP Message Signatures (RFC 9421) used by
// autonomous agents to authenticate HTTP requests.
//
// The profile narrows RFC 9421 in four ways:
//
//   - ed25519 is the only accepted signature algorithm
//   - signatures must carry both created and expires, with a validity
//     window of at most 480 seconds
//   - the signature tag, when present, must belong to a known-tag set
//   - nonces feed replay protection (see the replay package)
//
// # Parsing
//
// ParseSignatureInput and ParseSignature turn the Signature-Input and
// Signature header values into labeled parameter sets and signature bytes.
// Both are purely syntactic; malformed input yields an empty result rather
// than an error. CombineSignature joins the two into a ParsedSignature.
//
// # Verification
//
// MapSignature is the high-level entry point: it parses the headers, runs
// the TAP constraint checks (validity window, algorithm, tag), resolves
// the signing key through an injected KeyResolver, verifies the signature
// over the reconstructed signature base, and emits a ControlEntry carrying
// Evidence on success. Expected failures are reported through the returned
// VerificationResult; MapSignature does not panic on malformed input.
//
// # Signing
//
// SignRequest and Transport produce TAP-profile signatures on outgoing
// requests for agent-side use:
//
//	signer, _ := tap.NewEd25519Signer("https://agent.example/keys#1", priv)
//	client := &http.Client{
//	    Transport: tap.NewTransport(nil, tap.SignConfig{Signer: signer}),
//	}
package tap
