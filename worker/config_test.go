package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Run("zero value is valid", func(t *testing.T) {
		cfg := Config{}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("known modes accepted", func(t *testing.T) {
		for _, mode := range []string{"", ModeTAPOnly, ModeReceiptOrTAP} {
			cfg := Config{Mode: mode}
			assert.NoError(t, cfg.Validate(), mode)
		}
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		cfg := Config{Mode: "receipt_only"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("allowlist entries must be absolute URLs", func(t *testing.T) {
		cfg := Config{IssuerAllowlist: []string{"issuer.example"}}
		assert.Error(t, cfg.Validate())

		cfg = Config{IssuerAllowlist: []string{"https://issuer.example"}}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty allowlist is not a validation error", func(t *testing.T) {
		// Enforced per request instead, so bypassed paths keep working.
		cfg := Config{IssuerAllowlist: nil}
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigMode(t *testing.T) {
	assert.Equal(t, ModeTAPOnly, (&Config{}).mode())
	assert.Equal(t, ModeReceiptOrTAP, (&Config{Mode: ModeReceiptOrTAP}).mode())
}

func TestConfigAllowedOrigins(t *testing.T) {
	cfg := Config{IssuerAllowlist: []string{
		"https://issuer.example",
		"HTTPS://OTHER.EXAMPLE:443/path",
		"not-a-url",
	}}

	origins := cfg.allowedOrigins()
	assert.Contains(t, origins, "https://issuer.example")
	assert.Contains(t, origins, "https://other.example")
	assert.NotContains(t, origins, "not-a-url")
}

func TestLoad(t *testing.T) {
	t.Run("file and defaults", func(t *testing.T) {
		dir := t.TempDir()
		contents := []byte("issuer_allowlist:\n  - https://issuer.example\nbypass_paths:\n  - /healthz\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tap.yaml"), contents, 0o600))

		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() { os.Chdir(wd) })

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ModeTAPOnly, cfg.mode())
		assert.Equal(t, []string{"https://issuer.example"}, cfg.IssuerAllowlist)
		assert.Equal(t, []string{"/healthz"}, cfg.BypassPaths)
		assert.False(t, cfg.UnsafeAllowAnyIssuer)
	})

	t.Run("environment overrides", func(t *testing.T) {
		dir := t.TempDir()
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() { os.Chdir(wd) })

		t.Setenv("TAP_MODE", ModeReceiptOrTAP)
		t.Setenv("TAP_UNSAFE_ALLOW_ANY_ISSUER", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ModeReceiptOrTAP, cfg.Mode)
		assert.True(t, cfg.UnsafeAllowAnyIssuer)
	})

	t.Run("invalid mode in file rejected", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tap.yaml"), []byte("mode: maybe\n"), 0o600))

		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() { os.Chdir(wd) })

		_, err = Load()
		assert.Error(t, err)
	})
}
