package tap

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Code identifies a TAP verification failure. The set is closed: every code
// maps to exactly one HTTP status via HTTPStatus, and the worker refuses to
// emit anything outside this set.
type Code string

const (
	CodeSignatureMissing         Code = "SIGNATURE_MISSING"
	CodeSignatureInvalid         Code = "SIGNATURE_INVALID"
	CodeTimeInvalid              Code = "TIME_INVALID"
	CodeKeyNotFound              Code = "KEY_NOT_FOUND"
	CodeReplayProtectionRequired Code = "REPLAY_PROTECTION_REQUIRED"
	CodeTagUnknown               Code = "TAG_UNKNOWN"
	CodeAlgorithmInvalid         Code = "ALGORITHM_INVALID"
	CodeWindowTooLarge           Code = "WINDOW_TOO_LARGE"
	CodeReceiptMissing           Code = "RECEIPT_MISSING"
	CodeIssuerNotAllowed         Code = "ISSUER_NOT_ALLOWED"
	CodeNonceReplay              Code = "NONCE_REPLAY"
	CodeConfigAllowlistRequired  Code = "CONFIG_ISSUER_ALLOWLIST_REQUIRED"
	CodeInternal                 Code = "INTERNAL_ERROR"
)

// Verifier-level codes. These are finer-grained than the wire set above and
// are normalized by Code.Normalize before any response is produced.
const (
	CodeAlgorithmUnsupported Code = "SIGNATURE_ALGORITHM_UNSUPPORTED"
	CodeSignatureExpired     Code = "SIGNATURE_EXPIRED"
	CodeSignatureFuture      Code = "SIGNATURE_FUTURE"
)

// Normalize folds verifier-level codes into the closed wire set.
func (c Code) Normalize() Code {
	switch c {
	case CodeAlgorithmUnsupported:
		return CodeAlgorithmInvalid
	case CodeSignatureExpired, CodeSignatureFuture:
		return CodeTimeInvalid
	default:
		return c
	}
}

// HTTPStatus returns the fixed HTTP status for the code. The mapping is part
// of the protocol and identical across all deployment targets.
func (c Code) HTTPStatus() int {
	switch c.Normalize() {
	case CodeSignatureMissing, CodeSignatureInvalid, CodeTimeInvalid,
		CodeKeyNotFound, CodeReplayProtectionRequired:
		return http.StatusUnauthorized
	case CodeTagUnknown, CodeAlgorithmInvalid, CodeWindowTooLarge:
		return http.StatusBadRequest
	case CodeReceiptMissing:
		return http.StatusPaymentRequired
	case CodeIssuerNotAllowed:
		return http.StatusForbidden
	case CodeNonceReplay:
		return http.StatusConflict
	case CodeConfigAllowlistRequired, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed TAP policy or structural failure. It carries a stable
// machine-readable Code; Message is human-readable and safe to log but is
// redacted before being placed in a response body.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError creates a typed TAP error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a typed TAP error wrapping a cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// AsError extracts a *Error from an error chain. Unknown errors are reported
// as INTERNAL_ERROR so that unexpected failures stay fail-closed.
func AsError(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}

	return WrapError(CodeInternal, "unexpected error", err)
}

// Structural sentinel errors used inside the package.
var (
	// ErrParamsMissing is returned when a parameter set lacks keyid, alg,
	// or created, or when either signature header is empty.
	ErrParamsMissing = errors.New("tap: required signature parameter missing")

	// ErrNoResolver is returned when verification is attempted without a
	// key resolver.
	ErrNoResolver = errors.New("tap: key resolver must not be nil")

	// ErrInvalidKey is returned when key material is invalid.
	ErrInvalidKey = errors.New("tap: invalid key material")

	// ErrNoSigner is returned when SignConfig has no Signer configured.
	ErrNoSigner = errors.New("tap: signer must not be nil")

	// ErrDigestMismatch is returned when Content-Digest verification fails.
	ErrDigestMismatch = errors.New("tap: content digest mismatch")

	// ErrUnknownComponent is returned when a covered component cannot be
	// resolved against the request.
	ErrUnknownComponent = errors.New("tap: unknown component identifier")
)

// base64Run matches byte-sequence values (:base64:) and long base64 runs so
// that raw signature or key material never reaches a response body.
var base64Run = regexp.MustCompile(`:[A-Za-z0-9+/=_-]{8,}:|[A-Za-z0-9+/=_-]{32,}`)

// Redact removes signature and key material from a detail string before it
// is placed in any user-visible payload.
func Redact(detail string) string {
	if detail == "" {
		return ""
	}

	return strings.TrimSpace(base64Run.ReplaceAllString(detail, "[redacted]"))
}
