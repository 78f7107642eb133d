// Package session coordinates vidtube's credential lifecycle: login issues an
// access/refresh pair and records the refresh digest as the user's single
// active session, refresh rotates the pair with reuse detection, logout
// revokes by clearing the stored digest.
//
// A refresh credential is honored only when it is both cryptographically
// valid and byte-identical to the one the server currently has on record;
// equality is checked against digests, never the plaintext credential.
package session
