// Package credential issues and verifies vidtube's signed bearer credentials.
//
// Two purposes exist: short-lived access credentials and long-lived refresh
// credentials. Each purpose is signed with its own HS256 secret, so a
// credential of one purpose can never be replayed as the other. Verification
// is pure computation; whether a refresh credential is still the current one
// for its identity is the session coordinator's concern.
package credential
