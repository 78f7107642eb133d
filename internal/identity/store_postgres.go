package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// Schema (managed outside this repo):
//
//	<schema>.users (
//	    id                 text primary key,
//	    username           text not null,
//	    username_norm      text not null unique,
//	    email              text not null,
//	    email_norm         text not null unique,
//	    full_name          text not null,
//	    avatar_url         text not null default '',
//	    cover_image_url    text not null default '',
//	    password_hash      text not null,
//	    refresh_token_hash text,
//	    created_at         timestamptz not null,
//	    updated_at         timestamptz not null
//	)
//
// Notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - SwapRefreshDigest is the conditional update that serializes refresh
//     rotation; it never reads-then-writes.
//   - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
	hasher PasswordHasher
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "vidtube").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// WithPasswordHasher overrides the env-derived password hasher.
func WithPasswordHasher(h PasswordHasher) PostgresOption {
	return func(s *PostgresStore) error {
		s.hasher = h
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	hasher, err := NewPasswordHasherFromEnv()
	if err != nil {
		return nil, err
	}

	st := &PostgresStore{
		pool:   pool,
		schema: "vidtube",
		hasher: hasher,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) usersTable() string {
	return s.schema + ".users"
}

const userColumns = `
	id, username, username_norm, email, email_norm,
	full_name, avatar_url, cover_image_url, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.UsernameNorm,
		&u.Email,
		&u.EmailNorm,
		&u.FullName,
		&u.AvatarURL,
		&u.CoverImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// CreateUser registers a new user. Uniqueness is enforced on the normalized
// username and email; violations surface as ConflictError.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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
		return User{}, fmt.Errorf("%s: ulid: %w", op, err)
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.usersTable()+` (
			id, username, username_norm, email, email_norm,
			full_name, avatar_url, cover_image_url,
			password_hash, refresh_token_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, $10, $10)
	`, u.ID, u.Username, u.UsernameNorm, u.Email, u.EmailNorm,
		u.FullName, u.AvatarURL, u.CoverImageURL, pwHash, now)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// GetByID loads a sanitized user by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetByID"

	row := s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM `+s.usersTable()+`
		WHERE id = $1
	`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetAuthByID loads a user with its password digest.
func (s *PostgresStore) GetAuthByID(ctx context.Context, id string) (UserAuth, error) {
	const op = "identity.GetAuthByID"

	return s.getAuth(ctx, op, `WHERE id = $1`, id)
}

// GetByIdentifier resolves a username-or-email login identifier.
func (s *PostgresStore) GetByIdentifier(ctx context.Context, identifier string) (UserAuth, error) {
	const op = "identity.GetByIdentifier"

	norm := NormalizeUsername(identifier)
	if norm == "" {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "identifier is required"}
	}

	return s.getAuth(ctx, op, `WHERE username_norm = $1 OR email_norm = $1`, norm)
}

func (s *PostgresStore) getAuth(ctx context.Context, op, where string, arg any) (UserAuth, error) {
	var ua UserAuth
	err := s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`, password_hash
		FROM `+s.usersTable()+`
		`+where, arg).Scan(
		&ua.User.ID,
		&ua.User.Username,
		&ua.User.UsernameNorm,
		&ua.User.Email,
		&ua.User.EmailNorm,
		&ua.User.FullName,
		&ua.User.AvatarURL,
		&ua.User.CoverImageURL,
		&ua.User.CreatedAt,
		&ua.User.UpdatedAt,
		&ua.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	return ua, nil
}

// UpdateAccount applies profile changes and returns the updated user.
func (s *PostgresStore) UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (User, error) {
	const op = "identity.UpdateAccount"

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	email := strings.TrimSpace(in.Email)
	var emailNorm string
	if email != "" {
		emailNorm = NormalizeEmail(email)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE `+s.usersTable()+`
		SET
			full_name       = COALESCE(NULLIF($2, ''), full_name),
			email           = COALESCE(NULLIF($3, ''), email),
			email_norm      = COALESCE(NULLIF($4, ''), email_norm),
			avatar_url      = COALESCE(NULLIF($5, ''), avatar_url),
			cover_image_url = COALESCE(NULLIF($6, ''), cover_image_url),
			updated_at      = $7
		WHERE id = $1
		RETURNING`+userColumns+`
	`, id, strings.TrimSpace(in.FullName), email, emailNorm,
		strings.TrimSpace(in.AvatarURL), strings.TrimSpace(in.CoverImageURL), now)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored password digest.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id string, newHash string) error {
	const op = "identity.UpdatePasswordHash"

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.usersTable()+`
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, newHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// GetRefreshDigest returns the stored refresh-credential digest, if any.
func (s *PostgresStore) GetRefreshDigest(ctx context.Context, userID string) (string, bool, error) {
	const op = "identity.GetRefreshDigest"

	var digest *string
	err := s.pool.QueryRow(ctx, `
		SELECT refresh_token_hash
		FROM `+s.usersTable()+`
		WHERE id = $1
	`, userID).Scan(&digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if digest == nil || *digest == "" {
		return "", false, nil
	}
	return *digest, true, nil
}

// SetRefreshDigest unconditionally overwrites the stored digest (login).
func (s *PostgresStore) SetRefreshDigest(ctx context.Context, userID string, digest string) error {
	const op = "identity.SetRefreshDigest"

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.usersTable()+`
		SET refresh_token_hash = $2, updated_at = $3
		WHERE id = $1
	`, userID, digest, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// ClearRefreshDigest revokes the stored digest (logout). Idempotent.
func (s *PostgresStore) ClearRefreshDigest(ctx context.Context, userID string) error {
	const op = "identity.ClearRefreshDigest"

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.usersTable()+`
		SET refresh_token_hash = NULL, updated_at = $2
		WHERE id = $1
	`, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// SwapRefreshDigest writes newDigest only if the stored value still equals
// oldDigest. A single conditional UPDATE: the losing side of a concurrent
// rotation observes false and must not retry blindly.
func (s *PostgresStore) SwapRefreshDigest(ctx context.Context, userID, oldDigest, newDigest string) (bool, error) {
	const op = "identity.SwapRefreshDigest"

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.usersTable()+`
		SET refresh_token_hash = $3, updated_at = $4
		WHERE id = $1 AND refresh_token_hash = $2
	`, userID, oldDigest, newDigest, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

// uniqueViolationField maps a Postgres unique violation to a logical field name.
func uniqueViolationField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return "username", true
	case strings.Contains(pgErr.ConstraintName, "email"):
		return "email", true
	default:
		return "", true
	}
}
