// Package token provides credential digesting primitives for vidtube.
//
// The server never persists a refresh credential in plaintext: the identity
// record stores a 64-char hex digest, and presented credentials are digested
// before comparison. Digest equality is equivalent to byte equality of the
// underlying credential.
//
// Modes:
//   - Default dev/back-compat: SHA-256(credential) when no HMAC key is set.
//   - Production: HMAC-SHA256(credential, key) when VIDTUBE_TOKEN_HMAC_KEY is set.
//     If RequireTokenHMAC policy is enabled, startup fails without a key of at
//     least 32 bytes.
package token
