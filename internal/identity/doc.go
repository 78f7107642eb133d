// Package identity implements vidtube's user-record foundation.
//
// It owns the canonical User model, identifier normalization, password
// digest storage, and the single per-user refresh-credential digest that the
// session coordinator rotates and revokes. Persistence is PostgreSQL in
// production and an in-memory store for tests and db-less development.
package identity
