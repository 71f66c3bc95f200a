package worker

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peacprotocol/tap-go/tap"
)

func TestNewProblem(t *testing.T) {
	t.Run("type uri derived from code", func(t *testing.T) {
		p := NewProblem(tap.CodeNonceReplay, "nonce already used", "/protected")
		assert.Equal(t, "https://peacprotocol.org/problems/nonce-replay", p.Type)
		assert.Equal(t, "NONCE_REPLAY", p.Code)
		assert.Equal(t, http.StatusConflict, p.Status)
		assert.Equal(t, "/protected", p.Instance)
	})

	t.Run("every code has a title", func(t *testing.T) {
		codes := []tap.Code{
			tap.CodeSignatureMissing, tap.CodeSignatureInvalid, tap.CodeTimeInvalid,
			tap.CodeKeyNotFound, tap.CodeReplayProtectionRequired, tap.CodeTagUnknown,
			tap.CodeAlgorithmInvalid, tap.CodeWindowTooLarge, tap.CodeReceiptMissing,
			tap.CodeIssuerNotAllowed, tap.CodeNonceReplay,
			tap.CodeConfigAllowlistRequired, tap.CodeInternal,
		}

		for _, code := range codes {
			p := NewProblem(code, "", "")
			assert.NotEmpty(t, p.Title, string(code))
			assert.NotEqual(t, "Verification failed", p.Title, string(code))
		}
	})

	t.Run("verifier-level codes normalize first", func(t *testing.T) {
		p := NewProblem(tap.CodeSignatureExpired, "too old", "")
		assert.Equal(t, "TIME_INVALID", p.Code)
		assert.Equal(t, "https://peacprotocol.org/problems/time-invalid", p.Type)
	})

	t.Run("detail is redacted", func(t *testing.T) {
		p := NewProblem(tap.CodeSignatureInvalid, "bad bytes :c2lnbmF0dXJlYnl0ZXM=: seen", "")
		assert.NotContains(t, p.Detail, "c2lnbmF0dXJlYnl0ZXM")
		assert.Contains(t, p.Detail, "[redacted]")
	})

	t.Run("json shape", func(t *testing.T) {
		p := NewProblem(tap.CodeIssuerNotAllowed, "issuer https://evil.example rejected", "/api/data")

		raw, err := json.Marshal(p)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))

		assert.Equal(t, "https://peacprotocol.org/problems/issuer-not-allowed", decoded["type"])
		assert.Equal(t, float64(http.StatusForbidden), decoded["status"])
		assert.Equal(t, "ISSUER_NOT_ALLOWED", decoded["code"])
	})

	t.Run("empty detail and instance omitted", func(t *testing.T) {
		raw, err := json.Marshal(NewProblem(tap.CodeSignatureMissing, "", ""))
		require.NoError(t, err)
		assert.NotContains(t, string(raw), `"detail"`)
		assert.NotContains(t, string(raw), `"instance"`)
	})
}
