// Package warden is a credential and session authority: Argon2id password
// hashing, signed session tokens with expiry and revocation, and static
// role-based access control over a pluggable account store.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// warden is the public surface. It exposes [Engine], [Builder], [Config] and value types
// ([Identity], [AccountView], [TokenView]). Each component lives in its own package:
// password hashing in password, account persistence in accounts, token signing in token,
// revocation bookkeeping in revocation and the policy table in rbac. Login throttling and
// audit dispatch live under internal/.
//
// Every operation that acts for a caller takes the caller's verified [Identity] as an
// argument. Nothing is read from ambient request state except the optional client IP set
// by [WithClientIP].
//
// # What this package must NOT do
//
//   - Route HTTP requests or define wire schemas; see middleware for a thin net/http guard.
//   - Log or audit passwords, password hashes, signing keys or raw tokens.
//   - Import any sub-package that re-imports warden (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path: one signature check plus one revocation lookup. Login
// costs exactly one password verification whether or not the account exists.
package warden
