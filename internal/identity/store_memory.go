package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and db-less development
// mode. All operations are serialized by a single mutex, which makes the
// refresh-digest compare-and-swap trivially atomic.
type MemoryStore struct {
	mu     sync.Mutex
	hasher PasswordHasher

	users      map[string]*memUser // by id
	byUsername map[string]string   // username_norm -> id
	byEmail    map[string]string   // email_norm -> id
}

type memUser struct {
	user          User
	passwordHash  string
	refreshDigest string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(hasher PasswordHasher) *MemoryStore {
	return &MemoryStore{
		hasher:     hasher,
		users:      make(map[string]*memUser),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// CreateUser registers a new user, enforcing username/email uniqueness.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	if fullName == "" || username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "full name, username, email and password are required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	pwHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:            id,
		Username:      username,
		UsernameNorm:  NormalizeUsername(username),
		Email:         email,
		EmailNorm:     NormalizeEmail(email),
		FullName:      fullName,
		AvatarURL:     strings.TrimSpace(in.AvatarURL),
		CoverImageURL: strings.TrimSpace(in.CoverImageURL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[u.UsernameNorm]; exists {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	if _, exists := s.byEmail[u.EmailNorm]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	s.users[u.ID] = &memUser{user: u, passwordHash: pwHash}
	s.byUsername[u.UsernameNorm] = u.ID
	s.byEmail[u.EmailNorm] = u.ID

	return u, nil
}

// GetByID loads a sanitized user by id.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return mu.user, nil
}

// GetAuthByID loads a user with its password digest.
func (s *MemoryStore) GetAuthByID(ctx context.Context, id string) (UserAuth, error) {
	const op = "identity.GetAuthByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[id]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	return UserAuth{User: mu.user, PasswordHash: mu.passwordHash}, nil
}

// GetByIdentifier resolves a username-or-email login identifier.
func (s *MemoryStore) GetByIdentifier(ctx context.Context, identifier string) (UserAuth, error) {
	const op = "identity.GetByIdentifier"

	norm := NormalizeUsername(identifier)
	if norm == "" {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "identifier is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[norm]
	if !ok {
		id, ok = s.byEmail[norm]
	}
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}

	mu := s.users[id]
	return UserAuth{User: mu.user, PasswordHash: mu.passwordHash}, nil
}

// UpdateAccount applies profile changes and returns the updated user.
func (s *MemoryStore) UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (User, error) {
	const op = "identity.UpdateAccount"

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	if v := strings.TrimSpace(in.FullName); v != "" {
		mu.user.FullName = v
	}
	if v := strings.TrimSpace(in.Email); v != "" {
		norm := NormalizeEmail(v)
		if other, exists := s.byEmail[norm]; exists && other != id {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		delete(s.byEmail, mu.user.EmailNorm)
		mu.user.Email = v
		mu.user.EmailNorm = norm
		s.byEmail[norm] = id
	}
	if v := strings.TrimSpace(in.AvatarURL); v != "" {
		mu.user.AvatarURL = v
	}
	if v := strings.TrimSpace(in.CoverImageURL); v != "" {
		mu.user.CoverImageURL = v
	}
	mu.user.UpdatedAt = now

	return mu.user, nil
}

// UpdatePasswordHash replaces the stored password digest.
func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, id string, newHash string) error {
	const op = "identity.UpdatePasswordHash"

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	mu.passwordHash = newHash
	mu.user.UpdatedAt = time.Now().UTC()
	return nil
}

// GetRefreshDigest returns the stored refresh-credential digest, if any.
func (s *MemoryStore) GetRefreshDigest(ctx context.Context, userID string) (string, bool, error) {
	const op = "identity.GetRefreshDigest"

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[userID]
	if !ok {
		return "", false, NotFoundError{Op: op, Resource: "user"}
	}
	if mu.refreshDigest == "" {
		return "", false, nil
	}
	return mu.refreshDigest, true, nil
}

// SetRefreshDigest unconditionally overwrites the stored digest.
func (s *MemoryStore) SetRefreshDigest(ctx context.Context, userID string, digest string) error {
	const op = "identity.SetRefreshDigest"

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[userID]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	mu.refreshDigest = digest
	return nil
}

// ClearRefreshDigest revokes the stored digest. Idempotent.
func (s *MemoryStore) ClearRefreshDigest(ctx context.Context, userID string) error {
	const op = "identity.ClearRefreshDigest"

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[userID]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	mu.refreshDigest = ""
	return nil
}

// SwapRefreshDigest writes newDigest only if the stored value equals oldDigest.
func (s *MemoryStore) SwapRefreshDigest(ctx context.Context, userID, oldDigest, newDigest string) (bool, error) {
	const op = "identity.SwapRefreshDigest"

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[userID]
	if !ok {
		return false, NotFoundError{Op: op, Resource: "user"}
	}
	if mu.refreshDigest != oldDigest {
		return false, nil
	}
	mu.refreshDigest = newDigest
	return true, nil
}
