package session

import (
	"context"

	"vidtube/internal/identity"
)

// Directory resolves identities for login and refresh.
// identity.PostgresStore and identity.MemoryStore both satisfy it.
type Directory interface {
	GetByIdentifier(ctx context.Context, identifier string) (identity.UserAuth, error)
	GetByID(ctx context.Context, id string) (identity.User, error)
}

// Store holds the per-user refresh digest, the server-side half of the dual
// validity check.
//
//   - SetRefreshDigest overwrites unconditionally: a new login replaces any
//     previous session.
//   - SwapRefreshDigest writes only when the stored value still equals old,
//     so exactly one of two concurrent rotations can win.
//   - ClearRefreshDigest revokes; clearing an absent value is a no-op.
type Store interface {
	GetRefreshDigest(ctx context.Context, userID string) (digest string, ok bool, err error)
	SetRefreshDigest(ctx context.Context, userID string, digest string) error
	ClearRefreshDigest(ctx context.Context, userID string) error
	SwapRefreshDigest(ctx context.Context, userID, oldDigest, newDigest string) (bool, error)
}

// PasswordVerifier checks a plaintext password against a stored digest.
// identity.PasswordHasher satisfies it.
type PasswordVerifier interface {
	Verify(plain, encoded string) (bool, error)
}
