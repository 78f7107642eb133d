package app

import (
	"errors"

	"vidtube/internal/security/token"
)

// ValidateSecurityConfig enforces the deployment security policy at startup.
// Fail-fast: silently falling back to weaker digests in production is not an
// option, so the same module that performs the hashing is the one validated.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// Minimum 32 bytes for an HMAC-SHA256 secret, measured as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: VIDTUBE_REQUIRE_TOKEN_HMAC=true but VIDTUBE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: VIDTUBE_REQUIRE_TOKEN_HMAC=true but VIDTUBE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: VIDTUBE_REQUIRE_TOKEN_HMAC=true but credential hasher is not in HMAC mode")
	}

	return nil
}
