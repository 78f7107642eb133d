package credential

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vidtube/internal/identity"
)

// Claims is the decoded payload of a vidtube credential.
type Claims struct {
	// Username, Email and FullName are embedded in access credentials only,
	// as a convenience for handlers; refresh credentials carry the bare
	// subject id to minimize payload.
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`

	Purpose Purpose `json:"purpose"`

	jwt.RegisteredClaims
}

// Issuer mints signed credentials. It is a pure function of its inputs,
// the clock, and the configured secrets; it has no side effects.
type Issuer struct {
	cfg Config
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Issuer{cfg: cfg}, nil
}

// IssueAccess returns a signed access credential for u and its expiry.
func (i *Issuer) IssueAccess(u identity.User, now time.Time) (string, time.Time, error) {
	return i.issue(PurposeAccess, u, now)
}

// IssueRefresh returns a signed refresh credential for u and its expiry.
func (i *Issuer) IssueRefresh(u identity.User, now time.Time) (string, time.Time, error) {
	return i.issue(PurposeRefresh, u, now)
}

func (i *Issuer) issue(p Purpose, u identity.User, now time.Time) (string, time.Time, error) {
	if u.ID == "" {
		return "", time.Time{}, ErrCredentialInvalid
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	exp := now.Add(i.cfg.ttlFor(p))

	// The jti keeps credentials unique even when two are minted for the same
	// subject within the one-second resolution of the time claims.
	claims := Claims{
		Purpose: p,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.cfg.Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if p == PurposeAccess {
		claims.Username = u.Username
		claims.Email = u.Email
		claims.FullName = u.FullName
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.secretFor(p))
	if err != nil {
		// Signing can only fail on broken configuration; callers treat this
		// as fatal, not per-request recoverable.
		return "", time.Time{}, fmt.Errorf("credential: sign %s: %w", p, err)
	}
	return signed, exp, nil
}
