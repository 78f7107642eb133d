package identity

import "time"

// User is vidtube's canonical security principal, sanitized by construction:
// it never carries the password digest or the refresh-credential digest.
type User struct {
	ID           string
	Username     string
	UsernameNorm string
	Email        string
	EmailNorm    string

	FullName      string
	AvatarURL     string
	CoverImageURL string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth pairs a sanitized User with its password digest for login and
// change-password checks. It must never be serialized to a client.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a registration request. All of FullName,
// Username, Email and Password are required; the store hashes the password.
type CreateUserInput struct {
	FullName      string
	Username      string
	Email         string
	Password      string
	AvatarURL     string
	CoverImageURL string
	Now           time.Time
}

// UpdateAccountInput carries the mutable profile fields.
// Empty fields are left unchanged.
type UpdateAccountInput struct {
	FullName      string
	Email         string
	AvatarURL     string
	CoverImageURL string
	Now           time.Time
}
