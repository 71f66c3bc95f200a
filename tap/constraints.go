package tap

import (
	"fmt"
	"time"
)

// Protocol invariants. These are fixed by the TAP profile, not
// configuration: relaxing them changes the security properties of the
// protocol.
const (
	// MaxWindow is the maximum allowed validity window (expires - created).
	MaxWindow = 480 * time.Second

	// ClockSkew is the tolerance applied when judging created timestamps
	// against the verifier's clock.
	ClockSkew = 30 * time.Second
)

// KnownTags is the closed set of signature tags the profile recognizes.
// Signatures carrying any other tag are rejected unless the caller opts
// into unknown tags explicitly.
var KnownTags = map[string]struct{}{
	"web-bot-auth": {},
	"tap":          {},
}

// ValidateWindow checks the signature's validity window: expires must be
// present, the window must not exceed MaxWindow, created must not be in the
// future beyond ClockSkew, and now must not be past expires.
func ValidateWindow(params SignatureParams, now time.Time) *Error {
	if params.Expires.IsZero() {
		return NewError(CodeTimeInvalid, "expires parameter is required")
	}

	window := params.Expires.Sub(params.Created)
	if window <= 0 {
		return NewError(CodeTimeInvalid, "expires must be after created")
	}

	if window > MaxWindow {
		return NewError(CodeWindowTooLarge,
			fmt.Sprintf("validity window %ds exceeds maximum %ds", int(window.Seconds()), int(MaxWindow.Seconds())))
	}

	if params.Created.After(now.Add(ClockSkew)) {
		return NewError(CodeTimeInvalid, "created is in the future")
	}

	if now.After(params.Expires) {
		return NewError(CodeTimeInvalid, "signature has expired")
	}

	return nil
}

// ValidateAlgorithm checks that the declared algorithm is the single
// algorithm the profile requires. Anything else is rejected regardless of
// cryptographic validity.
func ValidateAlgorithm(params SignatureParams) *Error {
	if params.Alg != RequiredAlgorithm {
		return NewError(CodeAlgorithmInvalid,
			fmt.Sprintf("algorithm %q is not accepted, require %q", params.Alg, RequiredAlgorithm))
	}

	return nil
}

// ValidateTag checks the signature tag against the known-tag set. A missing
// tag is tolerated; an unknown one is rejected unless allowUnknown is set.
func ValidateTag(params SignatureParams, allowUnknown bool) *Error {
	if params.Tag == "" || allowUnknown {
		return nil
	}

	if _, ok := KnownTags[params.Tag]; !ok {
		return NewError(CodeTagUnknown, fmt.Sprintf("unknown signature tag %q", params.Tag))
	}

	return nil
}
