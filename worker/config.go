package worker

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/peacprotocol/tap-go/tap"
)

// Verification modes.
const (
	// ModeTAPOnly requires a TAP signature on every non-bypassed request.
	ModeTAPOnly = "tap_only"

	// ModeReceiptOrTAP challenges unsigned requests for a payment receipt
	// (402) instead of rejecting them outright.
	ModeReceiptOrTAP = "receipt_or_tap"
)

// Config is the worker's configuration surface. Every unsafe override
// defaults to false; the zero value of everything else fails closed.
type Config struct {
	// Mode selects how unsigned requests are answered. Defaults to
	// ModeTAPOnly.
	Mode string `mapstructure:"mode"`

	// IssuerAllowlist lists the issuer origins whose keys are trusted.
	// Required unless UnsafeAllowAnyIssuer is set.
	IssuerAllowlist []string `mapstructure:"issuer_allowlist"`

	// BypassPaths lists glob patterns for paths that skip verification
	// entirely.
	BypassPaths []string `mapstructure:"bypass_paths"`

	// ReplaySalt feeds replay-store key derivation.
	ReplaySalt string `mapstructure:"replay_salt"`

	// UnsafeAllowAnyIssuer disables the issuer allowlist check.
	UnsafeAllowAnyIssuer bool `mapstructure:"unsafe_allow_any_issuer"`

	// UnsafeAllowUnknownTags admits signatures with unknown tags.
	UnsafeAllowUnknownTags bool `mapstructure:"unsafe_allow_unknown_tags"`

	// UnsafeNoReplayProtection lets requests through without a replay
	// store, attaching a warning instead of rejecting.
	UnsafeNoReplayProtection bool `mapstructure:"unsafe_no_replay_protection"`
}

// Load reads configuration from tap.yaml (working directory or /etc/tap/)
// and TAP_-prefixed environment variables, with safe defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("mode", ModeTAPOnly)
	v.SetDefault("unsafe_allow_any_issuer", false)
	v.SetDefault("unsafe_allow_unknown_tags", false)
	v.SetDefault("unsafe_no_replay_protection", false)

	v.SetConfigName("tap")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/tap/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("TAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("worker: unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks structural validity. An empty allowlist is not a load
// error: the worker answers it per-request with a 500 so that bypassed
// paths keep working on a misconfigured deployment.
func (c *Config) Validate() error {
	switch c.Mode {
	case "", ModeTAPOnly, ModeReceiptOrTAP:
	default:
		return fmt.Errorf("worker: unknown mode %q", c.Mode)
	}

	for _, issuer := range c.IssuerAllowlist {
		if tap.OriginOf(issuer) == "" {
			return fmt.Errorf("worker: issuer allowlist entry %q is not an absolute URL", issuer)
		}
	}

	return nil
}

// mode returns the effective verification mode.
func (c *Config) mode() string {
	if c.Mode == "" {
		return ModeTAPOnly
	}

	return c.Mode
}

// allowedOrigins returns the normalized origin set of the allowlist.
func (c *Config) allowedOrigins() map[string]struct{} {
	origins := make(map[string]struct{}, len(c.IssuerAllowlist))
	for _, issuer := range c.IssuerAllowlist {
		if origin := tap.OriginOf(issuer); origin != "" {
			origins[origin] = struct{}{}
		}
	}

	return origins
}
