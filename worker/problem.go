package worker

import (
	"strings"

	"github.com/peacprotocol/tap-go/tap"
)

// problemTypeBase is the base URI problem types are derived from.
const problemTypeBase = "https://peacprotocol.org/problems/"

// Problem is an RFC 9457 problem details payload. Detail is redacted of
// signature and key material before the payload is built.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code"`
}

// problemTitles gives each code a stable human-readable title.
var problemTitles = map[tap.Code]string{
	tap.CodeSignatureMissing:         "Signature required",
	tap.CodeSignatureInvalid:         "Signature verification failed",
	tap.CodeTimeInvalid:              "Signature validity window violated",
	tap.CodeKeyNotFound:              "Signing key not found",
	tap.CodeReplayProtectionRequired: "Replay protection required",
	tap.CodeTagUnknown:               "Unknown signature tag",
	tap.CodeAlgorithmInvalid:         "Unsupported signature algorithm",
	tap.CodeWindowTooLarge:           "Validity window too large",
	tap.CodeReceiptMissing:           "Payment receipt required",
	tap.CodeIssuerNotAllowed:         "Issuer not allowed",
	tap.CodeNonceReplay:              "Nonce replay detected",
	tap.CodeConfigAllowlistRequired:  "Issuer allowlist not configured",
	tap.CodeInternal:                 "Internal verification error",
}

// NewProblem builds the problem payload for a code. The type URI is derived
// deterministically from the code; detail is redacted.
func NewProblem(code tap.Code, detail, instance string) *Problem {
	code = code.Normalize()

	title, ok := problemTitles[code]
	if !ok {
		title = "Verification failed"
	}

	return &Problem{
		Type:     problemTypeBase + kebab(code),
		Title:    title,
		Status:   code.HTTPStatus(),
		Detail:   tap.Redact(detail),
		Instance: instance,
		Code:     string(code),
	}
}

func kebab(code tap.Code) string {
	return strings.ReplaceAll(strings.ToLower(string(code)), "_", "-")
}
