// Package rate implements the Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - wl: : failed logins per account name (SHA-256 of the name)
//   - wli:: failed logins per client IP (SHA-256 of the address)
//
// # What this package must NOT do
//
//   - Look up accounts. Limits apply identically to unknown names.
//   - Be imported outside the warden module.
package rate
