package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates signed credentials against the secret registered for a
// purpose. It is side-effect free and never consults session state.
type Verifier struct {
	cfg Config
}

// NewVerifier validates cfg and returns a Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify checks signature, issuer, expiry and purpose, and returns the
// decoded claims. Failures map to ErrCredentialExpired for expiry and
// ErrCredentialInvalid for everything else, so callers cannot tell a forged
// signature from a wrong-purpose replay.
func (v *Verifier) Verify(signed string, p Purpose, now time.Time) (Claims, error) {
	if signed == "" {
		return Claims{}, ErrCredentialInvalid
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claims := Claims{}
	_, err := jwt.ParseWithClaims(signed, &claims,
		func(t *jwt.Token) (any, error) {
			return v.cfg.secretFor(p), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrCredentialExpired
		}
		return Claims{}, ErrCredentialInvalid
	}

	// Purpose isolation belt-and-braces: distinct secrets already reject
	// cross-purpose replay, the claim check guards against secret reuse.
	if claims.Purpose != p {
		return Claims{}, ErrCredentialInvalid
	}
	if claims.Subject == "" {
		return Claims{}, ErrCredentialInvalid
	}

	return claims, nil
}
