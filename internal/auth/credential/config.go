package credential

import (
	"bytes"
	"os"
	"time"
)

// Purpose selects which secret signs a credential and what the verifier
// expects to find in the purpose claim.
type Purpose string

const (
	// PurposeAccess marks short-lived credentials for ordinary requests.
	PurposeAccess Purpose = "access"
	// PurposeRefresh marks long-lived credentials used only to mint a new pair.
	PurposeRefresh Purpose = "refresh"
)

const minSecretBytes = 32

// Config defines the signing configuration for both credential purposes.
//
// Secrets are process-wide immutable state: constructed once at startup and
// passed explicitly to the Issuer/Verifier, never read ambiently, so tests
// can inject distinct secrets per case.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// AccessSecret and RefreshSecret must differ; access TTL is short to
	// bound leakage blast radius, refresh TTL long to avoid forcing
	// frequent re-authentication.
	AccessSecret  []byte
	RefreshSecret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// ClockSkew is the allowed time skew during verification.
	ClockSkew time.Duration
}

// DefaultConfig returns defaults suitable for development.
// Secrets are intentionally absent and must be provided.
func DefaultConfig() Config {
	return Config{
		Issuer:     "vidtube",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 240 * time.Hour,
		ClockSkew:  30 * time.Second,
	}
}

// Validate reports ErrConfig for unusable configurations.
func (c Config) Validate() error {
	if c.Issuer == "" {
		return ErrConfig
	}
	if len(c.AccessSecret) < minSecretBytes || len(c.RefreshSecret) < minSecretBytes {
		return ErrConfig
	}
	if bytes.Equal(c.AccessSecret, c.RefreshSecret) {
		return ErrConfig
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.ClockSkew < 0 {
		return ErrConfig
	}
	if c.AccessTTL >= c.RefreshTTL {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads credential configuration from environment variables.
//
// Required:
//   - VIDTUBE_ACCESS_TOKEN_SECRET  (>= 32 bytes)
//   - VIDTUBE_REFRESH_TOKEN_SECRET (>= 32 bytes, distinct from access)
//
// Optional (durations must be valid Go duration strings):
//   - VIDTUBE_AUTH_ISSUER
//   - VIDTUBE_AUTH_ACCESS_TTL
//   - VIDTUBE_AUTH_REFRESH_TTL
//   - VIDTUBE_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("VIDTUBE_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("VIDTUBE_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("VIDTUBE_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("VIDTUBE_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessSecret = []byte(os.Getenv("VIDTUBE_ACCESS_TOKEN_SECRET"))
	cfg.RefreshSecret = []byte(os.Getenv("VIDTUBE_REFRESH_TOKEN_SECRET"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) secretFor(p Purpose) []byte {
	if p == PurposeRefresh {
		return c.RefreshSecret
	}
	return c.AccessSecret
}

func (c Config) ttlFor(p Purpose) time.Duration {
	if p == PurposeRefresh {
		return c.RefreshTTL
	}
	return c.AccessTTL
}
