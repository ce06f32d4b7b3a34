// Package accounts is the credential store: it owns Account records and
// exposes only the operations the engine needs.
//
// # Guarantees
//
//   - Name and email are unique. Concurrent creates with the same name cannot
//     both succeed: unique indexes back an in-transaction existence check.
//   - Role, status and delete operations reject actor == target with
//     [ErrSelfModification] before any I/O.
//   - A transient persistence failure is retried once (go-retry, constant
//     backoff) and then surfaced wrapped in [ErrUnavailable]. Domain errors
//     and context cancellation are never retried.
//
// [Open] selects gorm.io/driver/postgres for postgres:// DSNs and the pure-Go
// github.com/glebarez/sqlite driver otherwise.
//
// # What this package must NOT do
//
//   - Hash or verify passwords. Callers hand in an encoded hash.
//   - Make authorization decisions beyond the self-action guard.
//   - Serialize PasswordHash; the field is tagged json:"-".
package accounts
