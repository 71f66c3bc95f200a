package tap

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureParams holds the parameters carried in one Signature-Input
// dictionary member.
type SignatureParams struct {
	// Components is the ordered covered-component list. Non-empty for any
	// well-formed entry.
	Components []string

	// Created is the signature creation time. Required by the profile.
	Created time.Time

	// Expires is the signature expiry. Zero when absent; the TAP
	// constraint validator requires it.
	Expires time.Time

	// Nonce is the optional anti-replay nonce.
	Nonce string

	// Alg is the declared signature algorithm.
	Alg Algorithm

	// KeyID identifies the signing key, typically an absolute URL whose
	// origin names the issuer.
	KeyID string

	// Tag is the optional profile tag narrowing the signature's purpose.
	Tag string

	// Raw is the verbatim member value, kept so the signature base can be
	// reconstructed byte-exact even when parameters arrived in an order
	// the serializer would not produce.
	Raw string
}

// SignatureInput is one labeled entry of the Signature-Input header.
type SignatureInput struct {
	Label  string
	Params SignatureParams
}

// SignatureValue is one labeled entry of the Signature header, base64
// decoded.
type SignatureValue struct {
	Label string
	Bytes []byte
}

// ParsedSignature is one labeled signature joined with its parameters,
// ready for verification.
type ParsedSignature struct {
	Label     string
	Params    SignatureParams
	Signature []byte
}

// ParseSignatureInput parses a Signature-Input header value into labeled
// parameter sets, preserving the order of comma-separated entries.
// Malformed entries are skipped; malformed or empty input yields an empty
// slice, never an error.
func ParseSignatureInput(header string) []SignatureInput {
	var inputs []SignatureInput

	for _, entry := range splitQuoteAware(header, ',') {
		label, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}

		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)

		params, err := parseSignatureParams(value)
		if err != nil {
			continue
		}

		inputs = append(inputs, SignatureInput{Label: label, Params: params})
	}

	return inputs
}

// ParseSignature parses a Signature header value into labeled decoded
// signature bytes, preserving entry order. Entries that are not
// byte-sequence encoded (:base64:) or carry invalid base64 are skipped.
func ParseSignature(header string) []SignatureValue {
	var values []SignatureValue

	for _, entry := range splitQuoteAware(header, ',') {
		label, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}

		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)

		if len(value) < 2 || value[0] != ':' || value[len(value)-1] != ':' {
			continue
		}

		decoded, err := base64.StdEncoding.DecodeString(value[1 : len(value)-1])
		if err != nil {
			continue
		}

		values = append(values, SignatureValue{Label: label, Bytes: decoded})
	}

	return values
}

// CombineSignature joins the two signature headers into one ParsedSignature.
// When label is empty, the first Signature-Input entry is selected. It fails
// with ErrParamsMissing when either header is empty, when no entry matches,
// or when keyid, alg, or created is absent.
func CombineSignature(inputHeader, sigHeader, label string) (*ParsedSignature, error) {
	if inputHeader == "" || sigHeader == "" {
		return nil, fmt.Errorf("%w: signature headers absent", ErrParamsMissing)
	}

	var input *SignatureInput
	for _, in := range ParseSignatureInput(inputHeader) {
		if label == "" || in.Label == label {
			input = &in
			break
		}
	}

	if input == nil {
		return nil, fmt.Errorf("%w: no parsable signature input", ErrParamsMissing)
	}

	if input.Params.KeyID == "" {
		return nil, fmt.Errorf("%w: keyid", ErrParamsMissing)
	}

	if input.Params.Alg == "" {
		return nil, fmt.Errorf("%w: alg", ErrParamsMissing)
	}

	if input.Params.Created.IsZero() {
		return nil, fmt.Errorf("%w: created", ErrParamsMissing)
	}

	for _, sig := range ParseSignature(sigHeader) {
		if sig.Label == input.Label {
			return &ParsedSignature{
				Label:     input.Label,
				Params:    input.Params,
				Signature: sig.Bytes,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: signature bytes for label %q", ErrParamsMissing, input.Label)
}

// parseSignatureParams parses one Signature-Input member value: an inner
// list of quoted component identifiers followed by ;key=value parameters.
//
// Expected shape: ("@method" "@authority" "@path");created=...;keyid="..."
func parseSignatureParams(raw string) (SignatureParams, error) {
	params := SignatureParams{Raw: raw}

	openParen := strings.IndexByte(raw, '(')
	closeParen := strings.IndexByte(raw, ')')

	if openParen != 0 || closeParen <= openParen {
		return params, fmt.Errorf("%w: invalid signature params format", ErrParamsMissing)
	}

	params.Components = parseInnerList(raw[openParen+1 : closeParen])
	if len(params.Components) == 0 {
		return params, fmt.Errorf("%w: empty component list", ErrParamsMissing)
	}

	for _, part := range splitParams(raw[closeParen+1:]) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}

		switch key {
		case "created":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil || ts < 0 {
				return params, fmt.Errorf("%w: invalid created timestamp", ErrParamsMissing)
			}
			params.Created = time.Unix(ts, 0)

		case "expires":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil || ts < 0 {
				return params, fmt.Errorf("%w: invalid expires timestamp", ErrParamsMissing)
			}
			params.Expires = time.Unix(ts, 0)

		case "nonce":
			params.Nonce = unquote(value)

		case "alg":
			params.Alg = Algorithm(unquote(value))

		case "keyid":
			params.KeyID = unquote(value)

		case "tag":
			params.Tag = unquote(value)
		}
	}

	return params, nil
}

// parseInnerList parses a space-separated list of quoted strings inside
// parentheses.
func parseInnerList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var items []string
	for len(s) > 0 {
		s = strings.TrimLeft(s, " ")
		if len(s) == 0 {
			break
		}

		if s[0] == '"' {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				// Malformed, take the rest.
				items = append(items, s[1:])
				break
			}

			items = append(items, s[1:end+1])
			s = s[end+2:]
		} else {
			end := strings.IndexByte(s, ' ')
			if end < 0 {
				items = append(items, s)
				break
			}

			items = append(items, s[:end])
			s = s[end+1:]
		}
	}

	return items
}

// splitQuoteAware splits s on delim while respecting "..." quoted regions.
// Backslash-escaped quotes (\") inside quoted strings are handled. Each
// resulting part is trimmed of whitespace and empty parts are skipped.
func splitQuoteAware(s string, delim byte) []string {
	var result []string
	var part strings.Builder
	inQuote := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inQuote {
			if ch == '\\' && i+1 < len(s) {
				part.WriteByte(ch)
				i++
				part.WriteByte(s[i])
				continue
			}

			if ch == '"' {
				inQuote = false
			}

			part.WriteByte(ch)
			continue
		}

		if ch == '"' {
			inQuote = true
			part.WriteByte(ch)
			continue
		}

		if ch == delim {
			p := strings.TrimSpace(part.String())
			if p != "" {
				result = append(result, p)
			}

			part.Reset()
			continue
		}

		part.WriteByte(ch)
	}

	if p := strings.TrimSpace(part.String()); p != "" {
		result = append(result, p)
	}

	return result
}

// splitParams splits ";key=value" parameter pairs.
func splitParams(s string) []string {
	s = strings.TrimLeft(s, " ")
	if s == "" {
		return nil
	}

	return splitQuoteAware(s, ';')
}

// quoteString produces an RFC 8941 quoted-string. Only backslash and
// double-quote are escaped (Section 3.3.3); no other escape sequences are
// permitted.
func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' || ch == '"' {
			b.WriteByte('\\')
		}

		b.WriteByte(ch)
	}

	b.WriteByte('"')

	return b.String()
}

// unquote removes surrounding double quotes and unescapes RFC 8941 escape
// sequences (\\ → \ and \" → ").
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			b.WriteByte(s[i])

			continue
		}

		b.WriteByte(s[i])
	}

	return b.String()
}
