// Package revocation tracks session tokens invalidated before their natural
// expiry.
//
// Two kinds of entry exist. A token entry revokes one token id. A subject
// entry (cutoff) revokes every token of one account issued at or before a
// point in time; logout-everywhere, account deletion and account disablement
// use it because a stateless token store cannot enumerate issued ids.
// Issued-at is compared at second precision, the precision of the iat claim.
//
// Every entry carries the natural expiry of what it references. Once that
// has passed the entry is redundant, since expiry alone rejects the token,
// and [Registry.Sweep] may drop it. [Sweeper] does so on a timer.
//
// # Implementations
//
//   - [Memory]: RWMutex-guarded maps; lost on restart.
//   - [Redis]: one key per entry with native EXPIREAT plus a sorted-set
//     index; survives restart.
//   - [GORM]: revoked_tokens and revoked_subjects tables; survives restart.
//
// # What this package must NOT do
//
//   - Store raw tokens. Only ids and subjects are kept.
//   - Decide token validity beyond membership; signature and expiry checks
//     belong to package token.
package revocation
