// Package password provides Argon2id password hashing for vidtube.
//
// It is the single source of truth for:
//   - Argon2id parameters (defaults + env overrides)
//   - password policy (length bounds, optional weak-pattern rejection)
//   - strict PHC decoding with anti-DoS bounds during Verify
package password
