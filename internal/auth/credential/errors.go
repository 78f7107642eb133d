package credential

import "errors"

var (
	// ErrCredentialInvalid is returned for signature, purpose, issuer or
	// claim failures.
	ErrCredentialInvalid = errors.New("invalid credential")

	// ErrCredentialExpired is returned when the credential's expiry has
	// passed (beyond clock-skew leeway).
	ErrCredentialExpired = errors.New("credential expired")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid credential config")
)
