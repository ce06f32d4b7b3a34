// Package internal contains helper utilities that are private to warden:
// secure random token identifiers and key hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - rate: Redis-backed fixed-window login throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public warden API.
//   - Be imported by any package outside the warden module.
package internal
