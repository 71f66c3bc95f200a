package tap

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Headers is the minimal read-only header surface verification needs. It is
// deliberately narrow so that deployment targets without net/http (edge
// isolates, framework-specific request types) can adapt their own header
// representation.
type Headers interface {
	// Get returns the first value for the named header, or "".
	Get(name string) string

	// Values returns all values for the named header in order.
	Values(name string) []string
}

// headerMap adapts http.Header to the Headers interface.
type headerMap http.Header

func (h headerMap) Get(name string) string      { return http.Header(h).Get(name) }
func (h headerMap) Values(name string) []string { return http.Header(h).Values(name) }

// Message is the runtime-neutral view of an inbound request. The core never
// depends on a concrete request type; adapters build a Message per
// deployment target.
type Message struct {
	// Method is the HTTP method, uppercase.
	Method string

	// URL is the full target URL of the request.
	URL *url.URL

	// Host is the authority when not carried in URL (net/http keeps it on
	// the request).
	Host string

	// Headers is the request header set.
	Headers Headers

	// Body is the request body, when available. Used only for
	// Content-Digest verification; may be nil.
	Body []byte
}

// FromHTTPRequest adapts a net/http request into a Message. The body is not
// read; pass it explicitly when Content-Digest verification is wanted.
func FromHTTPRequest(r *http.Request) *Message {
	return &Message{
		Method:  r.Method,
		URL:     r.URL,
		Host:    r.Host,
		Headers: headerMap(r.Header),
	}
}

// Origin returns the request's origin (scheme://host) or "" when it cannot
// be determined.
func (m *Message) Origin() string {
	if m.URL != nil && m.URL.Scheme != "" && m.URL.Host != "" {
		return normalizeOrigin(m.URL.Scheme, m.URL.Host)
	}

	host := m.Host
	if host == "" && m.Headers != nil {
		host = m.Headers.Get("Host")
	}

	if host == "" {
		return ""
	}

	return normalizeOrigin("https", host)
}

// normalizeOrigin lowercases the scheme and host and converts unicode hosts
// to punycode so that allowlist comparison is byte-exact.
func normalizeOrigin(scheme, host string) string {
	scheme = strings.ToLower(scheme)
	host = strings.ToLower(host)

	hostname := host
	port := ""
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		hostname, port = host[:i], host[i:]
	}

	if ascii, err := idna.Lookup.ToASCII(hostname); err == nil {
		hostname = ascii
	}

	// Strip default ports so equal origins compare equal.
	if (scheme == "https" && port == ":443") || (scheme == "http" && port == ":80") {
		port = ""
	}

	return scheme + "://" + hostname + port
}

// OriginOf returns the normalized origin of an absolute URL string, or ""
// when the string is not an absolute URL.
func OriginOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ""
	}

	return normalizeOrigin(u.Scheme, u.Host)
}
