package identity

import "context"

// Store is the identity persistence boundary.
//
// The refresh-digest methods expose the single per-user session-state value
// that the auth layer rotates and revokes:
//
//   - SetRefreshDigest overwrites unconditionally (login: a new session
//     invalidates any previous one).
//   - ClearRefreshDigest revokes; clearing an absent value is not an error.
//   - SwapRefreshDigest writes only if the stored value still equals old —
//     the conditional update that serializes concurrent refresh rotation.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetAuthByID(ctx context.Context, id string) (UserAuth, error)

	// GetByIdentifier resolves a login identifier that may be a username or
	// an email, case-insensitively.
	GetByIdentifier(ctx context.Context, identifier string) (UserAuth, error)

	UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (User, error)
	UpdatePasswordHash(ctx context.Context, id string, newHash string) error

	GetRefreshDigest(ctx context.Context, userID string) (digest string, ok bool, err error)
	SetRefreshDigest(ctx context.Context, userID string, digest string) error
	ClearRefreshDigest(ctx context.Context, userID string) error
	SwapRefreshDigest(ctx context.Context, userID, oldDigest, newDigest string) (bool, error)
}
