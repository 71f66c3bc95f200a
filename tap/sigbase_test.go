package tap

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSignatureBase(t *testing.T) {
	t.Run("basic request with method authority path", func(t *testing.T) {
		req := httptest.NewRequest("POST", "https://example.com/api/items", nil)
		req.Host = "example.com"
		m := FromHTTPRequest(req)

		params := SignatureParams{
			Components: []string{"@method", "@authority", "@path"},
			Created:    time.Unix(1618884473, 0),
			Alg:        AlgorithmEd25519,
			KeyID:      "test-key-ed25519",
		}

		paramsText := serializeSignatureParams(params)

		base, err := buildSignatureBase(m, params.Components, paramsText)
		require.NoError(t, err)

		expected := "\"@method\": POST\n" +
			"\"@authority\": example.com\n" +
			"\"@path\": /api/items\n" +
			"\"@signature-params\": " + paramsText

		assert.Equal(t, expected, string(base))
		assert.Contains(t, paramsText, "(\"@method\" \"@authority\" \"@path\")")
		assert.Contains(t, paramsText, "created=1618884473")
		assert.Contains(t, paramsText, "keyid=\"test-key-ed25519\"")
		assert.Contains(t, paramsText, "alg=\"ed25519\"")
	})

	t.Run("with header components", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://example.com/", nil)
		req.Host = "example.com"
		req.Header.Set("Content-Type", "application/json")
		m := FromHTTPRequest(req)

		base, err := buildSignatureBase(m, []string{"@method", "content-type"}, "()")
		require.NoError(t, err)

		assert.Contains(t, string(base), "\"content-type\": application/json\n")
	})

	t.Run("multi-value header joined", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://example.com/", nil)
		req.Header.Add("X-Multi", "one")
		req.Header.Add("X-Multi", "two")
		m := FromHTTPRequest(req)

		base, err := buildSignatureBase(m, []string{"x-multi"}, "()")
		require.NoError(t, err)

		assert.Contains(t, string(base), "\"x-multi\": one, two\n")
	})

	t.Run("missing header fails", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://example.com/", nil)
		m := FromHTTPRequest(req)

		_, err := buildSignatureBase(m, []string{"x-absent"}, "()")
		assert.ErrorIs(t, err, ErrUnknownComponent)
	})

	t.Run("unknown derived component fails", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://example.com/", nil)
		m := FromHTTPRequest(req)

		_, err := buildSignatureBase(m, []string{"@bogus"}, "()")
		assert.ErrorIs(t, err, ErrUnknownComponent)
	})

	t.Run("base reconstructed from raw params matches signed base", func(t *testing.T) {
		// A verifier must rebuild the exact bytes the signer hashed even
		// when the parameter order differs from what the serializer
		// produces.
		rawParams := `("@method");keyid="k";alg="ed25519";created=100`

		req := httptest.NewRequest("GET", "https://example.com/", nil)
		m := FromHTTPRequest(req)

		base, err := buildSignatureBase(m, []string{"@method"}, rawParams)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(string(base), "\"@signature-params\": "+rawParams))
	})
}

func TestDerivedComponents(t *testing.T) {
	req := httptest.NewRequest("GET", "https://example.com/a/b?x=1", nil)
	req.Host = "example.com"
	m := FromHTTPRequest(req)

	tests := []struct {
		component string
		want      string
	}{
		{ComponentMethod, "GET"},
		{ComponentAuthority, "example.com"},
		{ComponentPath, "/a/b"},
		{ComponentQuery, "?x=1"},
		{ComponentScheme, "https"},
		{ComponentTargetURI, "https://example.com/a/b?x=1"},
		{ComponentRequestTarget, "/a/b?x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			got, err := componentValue(tt.component, m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty query still produces question mark", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://example.com/a", nil)
		got, err := componentValue(ComponentQuery, FromHTTPRequest(req))
		require.NoError(t, err)
		assert.Equal(t, "?", got)
	})

	t.Run("host header falls back to request host", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://example.com/", nil)
		req.Host = "example.com"
		got, err := componentValue("host", FromHTTPRequest(req))
		require.NoError(t, err)
		assert.Equal(t, "example.com", got)
	})
}

func TestQuoteUnquote(t *testing.T) {
	cases := []string{
		"plain",
		`with"quote`,
		`with\backslash`,
		"",
	}

	for _, s := range cases {
		assert.Equal(t, s, unquote(quoteString(s)), "roundtrip %q", s)
	}
}
