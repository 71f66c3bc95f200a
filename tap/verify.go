package tap

import (
	"context"
	"time"
)

// KeyResolver resolves a verification key for an (issuer, keyid) pair. It is
// treated as external I/O: implementations typically back onto a JWKS cache
// keyed by issuer allowlist membership and may be slow or fail.
//
// A (nil, nil) return means the key does not exist; verification then fails
// with KEY_NOT_FOUND. A non-nil error means resolution itself failed.
type KeyResolver interface {
	Resolve(ctx context.Context, issuer, keyID string) (Verifier, error)
}

// KeyResolverFunc adapts a function to the KeyResolver interface.
type KeyResolverFunc func(ctx context.Context, issuer, keyID string) (Verifier, error)

// Resolve implements KeyResolver.
func (f KeyResolverFunc) Resolve(ctx context.Context, issuer, keyID string) (Verifier, error) {
	return f(ctx, issuer, keyID)
}

// IsExpired reports whether the signature is expired: true iff expires is
// defined and now is past it.
func IsExpired(params SignatureParams, now time.Time) bool {
	return !params.Expires.IsZero() && now.After(params.Expires)
}

// IsCreatedInFuture reports whether the signature claims a creation time
// further in the future than the allowed skew.
func IsCreatedInFuture(params SignatureParams, now time.Time, skew time.Duration) bool {
	return params.Created.After(now.Add(skew))
}

// VerifyOptions configures VerifySignature.
type VerifyOptions struct {
	// Resolver looks up the verification key. Required.
	Resolver KeyResolver

	// Issuer is the origin authority passed to the resolver, typically
	// derived from the key id.
	Issuer string

	// Now supplies the verification time. Defaults to time.Now.
	Now func() time.Time

	// Skew is the clock skew tolerance. Defaults to ClockSkew.
	Skew time.Duration

	// Label selects the signature to verify. Empty means the first one.
	Label string
}

// VerifyOutcome is the result of cryptographic signature verification.
// Exactly one of Valid or Code is meaningful: when Valid is false, Code
// names the failure.
type VerifyOutcome struct {
	Valid     bool
	Signature *ParsedSignature
	Code      Code
	Message   string

	// KeySource records the origin of the resolved key when the resolver
	// reports one.
	KeySource string
}

// KeySourcer is optionally implemented by resolved verifiers to report
// where their key material came from (e.g. a JWKS URL).
type KeySourcer interface {
	KeySource() string
}

// VerifySignature verifies the message's signature: it parses the signature
// headers, rejects unsupported algorithms and out-of-window timestamps,
// resolves the key, reconstructs the signature base from the covered
// components, and checks the signature bytes against it.
//
// Expected failures are reported in the outcome; the returned error is
// non-nil only for programming errors (nil resolver) or key-resolution I/O
// failures.
func VerifySignature(ctx context.Context, m *Message, opts VerifyOptions) (*VerifyOutcome, error) {
	if opts.Resolver == nil {
		return nil, ErrNoResolver
	}

	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}

	skew := opts.Skew
	if skew == 0 {
		skew = ClockSkew
	}

	inputHeader, sigHeader := "", ""
	if m.Headers != nil {
		inputHeader = m.Headers.Get(HeaderSignatureInput)
		sigHeader = m.Headers.Get(HeaderSignature)
	}

	sig, err := CombineSignature(inputHeader, sigHeader, opts.Label)
	if err != nil {
		return &VerifyOutcome{Code: CodeSignatureMissing, Message: err.Error()}, nil
	}

	if sig.Params.Alg != RequiredAlgorithm {
		return &VerifyOutcome{
			Signature: sig,
			Code:      CodeAlgorithmUnsupported,
			Message:   "unsupported signature algorithm " + string(sig.Params.Alg),
		}, nil
	}

	if IsExpired(sig.Params, now) {
		return &VerifyOutcome{Signature: sig, Code: CodeSignatureExpired, Message: "signature has expired"}, nil
	}

	if IsCreatedInFuture(sig.Params, now, skew) {
		return &VerifyOutcome{Signature: sig, Code: CodeSignatureFuture, Message: "signature created in the future"}, nil
	}

	verifier, err := opts.Resolver.Resolve(ctx, opts.Issuer, sig.Params.KeyID)
	if err != nil {
		return nil, err
	}

	if verifier == nil {
		return &VerifyOutcome{Signature: sig, Code: CodeKeyNotFound, Message: "no key for keyid " + sig.Params.KeyID}, nil
	}

	base, err := buildSignatureBase(m, sig.Params.Components, sig.Params.Raw)
	if err != nil {
		return &VerifyOutcome{Signature: sig, Code: CodeSignatureInvalid, Message: err.Error()}, nil
	}

	if err := verifier.Verify(base, sig.Signature); err != nil {
		return &VerifyOutcome{Signature: sig, Code: CodeSignatureInvalid, Message: "signature verification failed"}, nil
	}

	outcome := &VerifyOutcome{Valid: true, Signature: sig}
	if s, ok := verifier.(KeySourcer); ok {
		outcome.KeySource = s.KeySource()
	}

	return outcome, nil
}
