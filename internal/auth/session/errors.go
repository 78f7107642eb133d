package session

import "errors"

var (
	// ErrUnauthenticated is returned when no credential is presented at all.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials is returned when a login password does not check
	// out for an existing identity.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrCredentialInvalid is returned when a presented credential fails
	// verification or no session is on record for its subject.
	ErrCredentialInvalid = errors.New("invalid credential")

	// ErrCredentialReused is returned when a refresh credential that is no
	// longer the current one is presented again. Callers should treat it as
	// a security event.
	ErrCredentialReused = errors.New("refresh credential reused")

	// ErrNotFound is returned when the referenced user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrStoreUnavailable wraps persistence failures that are neither
	// validation nor security outcomes.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
