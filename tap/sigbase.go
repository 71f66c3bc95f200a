package tap

import (
	"fmt"
	"strconv"
	"strings"
)

// Signature header names per RFC 9421 Section 4.
const (
	HeaderSignatureInput = "Signature-Input"
	HeaderSignature      = "Signature"
)

// Derived component identifiers per RFC 9421 Section 2.2.
const (
	ComponentMethod        = "@method"
	ComponentAuthority     = "@authority"
	ComponentPath          = "@path"
	ComponentQuery         = "@query"
	ComponentTargetURI     = "@target-uri"
	ComponentScheme        = "@scheme"
	ComponentRequestTarget = "@request-target"
)

// buildSignatureBase reconstructs the signature base per RFC 9421 Section
// 2.5. Each covered component produces a line "<component-id>": <value>\n
// and the final line is "@signature-params": <paramsText>, where paramsText
// is the verbatim Signature-Input member value.
func buildSignatureBase(m *Message, components []string, paramsText string) ([]byte, error) {
	var base strings.Builder

	for _, id := range components {
		val, err := componentValue(id, m)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&base, "%q: %s\n", id, val)
	}

	fmt.Fprintf(&base, "\"@signature-params\": %s", paramsText)

	return []byte(base.String()), nil
}

// serializeSignatureParams produces the inner-list representation of the
// signature parameters per RFC 9421 Section 2.3 and RFC 8941 Section 3.1.1.
// Used on the signing side; verification keeps the received text verbatim.
//
// Format: (<component-ids>);<key>=<value>;...
func serializeSignatureParams(params SignatureParams) string {
	var b strings.Builder

	b.WriteByte('(')
	for i, id := range params.Components {
		if i > 0 {
			b.WriteByte(' ')
		}

		b.WriteString(strconv.Quote(id))
	}
	b.WriteByte(')')

	if !params.Created.IsZero() {
		fmt.Fprintf(&b, ";created=%d", params.Created.Unix())
	}

	if !params.Expires.IsZero() {
		fmt.Fprintf(&b, ";expires=%d", params.Expires.Unix())
	}

	if params.Nonce != "" {
		b.WriteString(";nonce=")
		b.WriteString(quoteString(params.Nonce))
	}

	b.WriteString(";alg=")
	b.WriteString(quoteString(params.Alg.String()))
	b.WriteString(";keyid=")
	b.WriteString(quoteString(params.KeyID))

	if params.Tag != "" {
		b.WriteString(";tag=")
		b.WriteString(quoteString(params.Tag))
	}

	return b.String()
}

// componentValue extracts the value of a covered component from a Message
// per RFC 9421 Section 2. Derived components start with "@"; anything else
// is a header field, lowercased, with multi-value headers joined by ", ".
func componentValue(id string, m *Message) (string, error) {
	if strings.HasPrefix(id, "@") {
		return derivedComponentValue(id, m)
	}

	return headerComponentValue(id, m)
}

func derivedComponentValue(id string, m *Message) (string, error) {
	switch id {
	case ComponentMethod:
		return m.Method, nil

	case ComponentAuthority:
		return authority(m), nil

	case ComponentPath:
		return pathOf(m), nil

	case ComponentQuery:
		q := ""
		if m.URL != nil {
			q = m.URL.RawQuery
		}

		return "?" + q, nil

	case ComponentTargetURI:
		return targetURI(m), nil

	case ComponentScheme:
		return schemeOf(m), nil

	case ComponentRequestTarget:
		return requestTarget(m), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
}

func headerComponentValue(id string, m *Message) (string, error) {
	if m.Headers != nil {
		if values := m.Headers.Values(id); len(values) > 0 {
			return strings.Join(values, ", "), nil
		}
	}

	// net/http keeps the Host header on the request, not in the map.
	if strings.EqualFold(id, "host") && m.Host != "" {
		return m.Host, nil
	}

	return "", fmt.Errorf("%w: header %q not present", ErrUnknownComponent, id)
}

// authority returns the authority component (host[:port]) of the message.
func authority(m *Message) string {
	if m.Host != "" {
		return strings.ToLower(m.Host)
	}

	if m.URL != nil && m.URL.Host != "" {
		return strings.ToLower(m.URL.Host)
	}

	return ""
}

func schemeOf(m *Message) string {
	if m.URL != nil && m.URL.Scheme != "" {
		return strings.ToLower(m.URL.Scheme)
	}

	return "https"
}

func pathOf(m *Message) string {
	if m.URL == nil || m.URL.Path == "" {
		return "/"
	}

	return m.URL.Path
}

func targetURI(m *Message) string {
	uri := schemeOf(m) + "://" + authority(m) + pathOf(m)
	if m.URL != nil && m.URL.RawQuery != "" {
		uri += "?" + m.URL.RawQuery
	}

	return uri
}

func requestTarget(m *Message) string {
	target := pathOf(m)
	if m.URL != nil && m.URL.RawQuery != "" {
		target += "?" + m.URL.RawQuery
	}

	return target
}
