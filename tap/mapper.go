package tap

import (
	"context"
	"time"
)

// MapOptions configures MapSignature.
type MapOptions struct {
	// Resolver looks up verification keys. Required.
	Resolver KeyResolver

	// Now supplies the verification time. Defaults to time.Now.
	Now func() time.Time

	// Skew is the clock skew tolerance. Defaults to ClockSkew.
	Skew time.Duration

	// AllowUnknownTags admits signatures whose tag is outside KnownTags.
	// Unsafe; defaults to false.
	AllowUnknownTags bool

	// Label selects which signature to verify. Empty means the first one.
	Label string
}

// VerificationResult is the normalized outcome of mapping one request
// through parse, constraint validation, and cryptographic verification.
type VerificationResult struct {
	// Valid reports whether the signature verified and passed all TAP
	// constraints.
	Valid bool

	// IsTAP reports whether signature headers were present at all. A
	// request without them is not a TAP request; mode dispatch in the
	// worker branches on this.
	IsTAP bool

	// Code and Message describe the failure when Valid is false.
	Code    Code
	Message string

	// ControlEntry carries the evidence on success.
	ControlEntry *ControlEntry
}

// MapSignature runs the full verification pipeline for one request:
// parse the signature headers, enforce the TAP constraints (validity
// window, algorithm, tag) before any cryptography, derive the issuer from
// the key id, resolve the key, verify the signature, and emit a
// ControlEntry. All expected failures are reported in the result; nothing
// is thrown.
func MapSignature(ctx context.Context, m *Message, opts MapOptions) *VerificationResult {
	inputHeader, sigHeader := "", ""
	if m.Headers != nil {
		inputHeader = m.Headers.Get(HeaderSignatureInput)
		sigHeader = m.Headers.Get(HeaderSignature)
	}

	if inputHeader == "" || sigHeader == "" {
		return &VerificationResult{Code: CodeSignatureMissing, Message: "signature headers not present"}
	}

	sig, err := CombineSignature(inputHeader, sigHeader, opts.Label)
	if err != nil {
		return &VerificationResult{IsTAP: true, Code: CodeSignatureMissing, Message: Redact(err.Error())}
	}

	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}

	// Policy checks run before any cryptography so malformed-policy
	// requests fail cheaply.
	if verr := ValidateWindow(sig.Params, now); verr != nil {
		return failure(verr)
	}

	if verr := ValidateAlgorithm(sig.Params); verr != nil {
		return failure(verr)
	}

	if verr := ValidateTag(sig.Params, opts.AllowUnknownTags); verr != nil {
		return failure(verr)
	}

	issuer := deriveIssuer(sig.Params.KeyID, m)

	outcome, err := VerifySignature(ctx, m, VerifyOptions{
		Resolver: opts.Resolver,
		Issuer:   issuer,
		Now:      opts.Now,
		Skew:     opts.Skew,
		Label:    sig.Label,
	})
	if err != nil {
		// Resolver I/O failure: the key may exist but could not be
		// obtained. Fail closed without claiming the key is absent.
		return &VerificationResult{IsTAP: true, Code: CodeKeyNotFound, Message: "key resolution failed"}
	}

	if !outcome.Valid {
		return &VerificationResult{IsTAP: true, Code: outcome.Code.Normalize(), Message: Redact(outcome.Message)}
	}

	entry := &ControlEntry{
		Engine: Engine,
		Result: ResultAllow,
		Evidence: Evidence{
			Protocol:          Protocol,
			Tag:               sig.Params.Tag,
			KeyID:             sig.Params.KeyID,
			Issuer:            issuer,
			Created:           sig.Params.Created,
			Expires:           sig.Params.Expires,
			Nonce:             sig.Params.Nonce,
			CoveredComponents: sig.Params.Components,
			Signature:         sig.Signature,
			Verified:          true,
			KeySource:         outcome.KeySource,
		},
	}

	return &VerificationResult{Valid: true, IsTAP: true, ControlEntry: entry}
}

func failure(err *Error) *VerificationResult {
	return &VerificationResult{IsTAP: true, Code: err.Code.Normalize(), Message: Redact(err.Message)}
}

// deriveIssuer determines the origin authority for a signing key. A key id
// that parses as an absolute URL names its issuer by origin; otherwise the
// request's own origin stands in.
func deriveIssuer(keyID string, m *Message) string {
	if origin := OriginOf(keyID); origin != "" {
		return origin
	}

	return m.Origin()
}
