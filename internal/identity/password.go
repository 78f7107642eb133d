package identity

import "vidtube/internal/security/password"

// PasswordHasher is the opaque hashing capability handed to stores and the
// session coordinator: hash(plain) -> digest, verify(plain, digest) -> bool.
// It wraps security/password so that policy and Argon2id cost stay in one
// place and tests can inject a cheap configuration.
type PasswordHasher struct {
	cfg password.Config
}

// NewPasswordHasher builds a hasher from an explicit configuration.
func NewPasswordHasher(cfg password.Config) PasswordHasher {
	return PasswordHasher{cfg: cfg}
}

// NewPasswordHasherFromEnv builds a hasher from env-driven configuration.
func NewPasswordHasherFromEnv() (PasswordHasher, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return PasswordHasher{}, err
	}
	return PasswordHasher{cfg: cfg}, nil
}

// Hash returns a PHC-style Argon2id digest of plain.
func (h PasswordHasher) Hash(plain string) (string, error) {
	return h.cfg.Hash(plain)
}

// Verify checks plain against a PHC Argon2id digest.
func (h PasswordHasher) Verify(plain, encoded string) (bool, error) {
	return h.cfg.Verify(encoded, plain)
}
