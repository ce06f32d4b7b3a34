// Package password implements password policy checks and Argon2id hashing.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<digest>
//
// Every call to [Argon2.Hash] draws a fresh salt. [Argon2.Verify] compares
// digests with crypto/subtle, so its running time does not depend on how many
// leading bytes of a wrong candidate happen to match. [Argon2.NeedsUpgrade]
// reports hashes produced with weaker parameters so callers can re-hash.
//
// # Policy
//
// [Policy] enforces minimum length and the letter/digit/symbol classes. A
// failing plaintext is rejected with [ErrWeakPassword] before any hashing.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other warden package.
//   - Log plaintext passwords or encoded hashes.
package password
