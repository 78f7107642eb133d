package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vidtube/internal/auth/credential"
	"vidtube/internal/identity"
	"vidtube/internal/security/token"
)

// Service implements the session lifecycle: login, access verification,
// refresh rotation with reuse detection, and logout.
type Service struct {
	issuer   *credential.Issuer
	verifier *credential.Verifier
	dir      Directory
	store    Store
	pass     PasswordVerifier

	log     *slog.Logger
	metrics *Metrics
}

// Issued is the result of a login or a refresh rotation.
type Issued struct {
	AccessCredential  string
	AccessExpiresAt   time.Time
	RefreshCredential string
	RefreshExpiresAt  time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics attaches lifecycle counters. Nil metrics are a no-op.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs a Service from the credential configuration and its
// collaborators.
func NewService(cfg credential.Config, dir Directory, store Store, pass PasswordVerifier, opts ...Option) (*Service, error) {
	issuer, err := credential.NewIssuer(cfg)
	if err != nil {
		return nil, err
	}
	verifier, err := credential.NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	s := &Service{
		issuer:   issuer,
		verifier: verifier,
		dir:      dir,
		store:    store,
		pass:     pass,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login authenticates identifier (username or email, case-insensitive) and
// password, issues a fresh credential pair, and records the refresh digest as
// the user's single active session. Any previous session is replaced.
//
// An identifier matching no identity returns ErrNotFound; a wrong password
// returns ErrInvalidCredentials. The HTTP layer presents both uniformly.
func (s *Service) Login(ctx context.Context, identifier, password string, now time.Time) (identity.User, Issued, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return identity.User{}, Issued{}, ErrNotFound
	}
	if password == "" {
		return identity.User{}, Issued{}, ErrInvalidCredentials
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ua, err := s.dir.GetByIdentifier(ctx, identifier)
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			s.metrics.login("not_found")
			s.log.InfoContext(ctx, "auth.login.fail", "reason", "unknown_identifier")
			return identity.User{}, Issued{}, ErrNotFound
		}
		return identity.User{}, Issued{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := s.pass.Verify(password, ua.PasswordHash)
	if err != nil {
		return identity.User{}, Issued{}, fmt.Errorf("session: verify password: %w", err)
	}
	if !ok {
		s.metrics.login("invalid")
		s.log.InfoContext(ctx, "auth.login.fail", "user_id", ua.User.ID, "reason", "bad_password")
		return identity.User{}, Issued{}, ErrInvalidCredentials
	}

	issued, err := s.issuePair(ctx, ua.User, now)
	if err != nil {
		return identity.User{}, Issued{}, err
	}

	s.metrics.login("ok")
	s.log.InfoContext(ctx, "auth.login.ok", "user_id", ua.User.ID, "username", ua.User.Username)
	return ua.User, issued, nil
}

// VerifyAccess checks an access credential and returns its claims.
// An absent credential returns ErrUnauthenticated; a presented one that fails
// signature, purpose, or expiry checks returns ErrCredentialInvalid. It is
// pure computation; revocation only affects refresh.
func (s *Service) VerifyAccess(signed string, now time.Time) (credential.Claims, error) {
	if signed == "" {
		return credential.Claims{}, ErrUnauthenticated
	}
	claims, err := s.verifier.Verify(signed, credential.PurposeAccess, now)
	if err != nil {
		return credential.Claims{}, ErrCredentialInvalid
	}
	return claims, nil
}

// Refresh rotates a credential pair. The presented refresh credential must be
// cryptographically valid and byte-identical to the one on record for its
// subject; on success the record is atomically advanced to the new pair, so a
// given refresh credential can be redeemed at most once.
//
// An absent credential returns ErrUnauthenticated. A mismatch or a lost
// rotation race returns ErrCredentialReused. An absent record (logged out) or
// a failed verification returns ErrCredentialInvalid.
func (s *Service) Refresh(ctx context.Context, refreshCredential string, now time.Time) (identity.User, Issued, error) {
	if refreshCredential == "" {
		return identity.User{}, Issued{}, ErrUnauthenticated
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claims, err := s.verifier.Verify(refreshCredential, credential.PurposeRefresh, now)
	if err != nil {
		s.metrics.refresh("invalid")
		return identity.User{}, Issued{}, ErrCredentialInvalid
	}
	userID := claims.Subject

	u, err := s.dir.GetByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			s.metrics.refresh("invalid")
			return identity.User{}, Issued{}, ErrCredentialInvalid
		}
		return identity.User{}, Issued{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	stored, ok, err := s.store.GetRefreshDigest(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			s.metrics.refresh("invalid")
			return identity.User{}, Issued{}, ErrCredentialInvalid
		}
		return identity.User{}, Issued{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		// Logged out: nothing on record to match.
		s.metrics.refresh("invalid")
		return identity.User{}, Issued{}, ErrCredentialInvalid
	}

	presented := token.HashCredentialHex(refreshCredential)
	if !token.DigestEqual(stored, presented) {
		s.metrics.refresh("reused")
		s.metrics.reuseDetected()
		s.log.WarnContext(ctx, "auth.refresh.reuse", "user_id", userID)
		return identity.User{}, Issued{}, ErrCredentialReused
	}

	access, accessExp, err := s.issuer.IssueAccess(u, now)
	if err != nil {
		return identity.User{}, Issued{}, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(u, now)
	if err != nil {
		return identity.User{}, Issued{}, err
	}

	// The conditional swap serializes concurrent rotations: of two requests
	// presenting the same credential, exactly one advances the record.
	swapped, err := s.store.SwapRefreshDigest(ctx, userID, presented, token.HashCredentialHex(refresh))
	if err != nil {
		if identity.IsNotFound(err) {
			s.metrics.refresh("invalid")
			return identity.User{}, Issued{}, ErrCredentialInvalid
		}
		return identity.User{}, Issued{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !swapped {
		s.metrics.refresh("reused")
		s.metrics.reuseDetected()
		s.log.WarnContext(ctx, "auth.refresh.reuse", "user_id", userID, "reason", "lost_rotation_race")
		return identity.User{}, Issued{}, ErrCredentialReused
	}

	s.metrics.refresh("ok")
	s.log.InfoContext(ctx, "auth.refresh.ok", "user_id", userID)
	return u, Issued{
		AccessCredential:  access,
		AccessExpiresAt:   accessExp,
		RefreshCredential: refresh,
		RefreshExpiresAt:  refreshExp,
	}, nil
}

// Logout revokes the user's session by clearing the stored refresh digest.
// Logging out an already logged-out user succeeds.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNotFound
	}
	if err := s.store.ClearRefreshDigest(ctx, userID); err != nil {
		if identity.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.metrics.logout()
	s.log.InfoContext(ctx, "auth.logout.ok", "user_id", userID)
	return nil
}

func (s *Service) issuePair(ctx context.Context, u identity.User, now time.Time) (Issued, error) {
	access, accessExp, err := s.issuer.IssueAccess(u, now)
	if err != nil {
		return Issued{}, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(u, now)
	if err != nil {
		return Issued{}, err
	}

	if err := s.store.SetRefreshDigest(ctx, u.ID, token.HashCredentialHex(refresh)); err != nil {
		if identity.IsNotFound(err) {
			return Issued{}, ErrNotFound
		}
		return Issued{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return Issued{
		AccessCredential:  access,
		AccessExpiresAt:   accessExp,
		RefreshCredential: refresh,
		RefreshExpiresAt:  refreshExp,
	}, nil
}
