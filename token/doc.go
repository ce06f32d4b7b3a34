// Package token issues and verifies signed, time-bounded session tokens.
//
// Tokens are compact JWS (JWT) values carrying the subject, the role at
// issuance, issued-at, expires-at and a 128-bit random token id (jti). Every
// token names its signing key in the kid header; verification resolves the
// key through a [KeyLookup], so keys of retired ids can be supplied next to
// the active one.
//
// # Verification order
//
//  1. Parse, algorithm and kid check, signature check.
//  2. Issuer, audience, issued-at and expiry validation against the
//     injected clock.
//  3. Revocation lookup ([Authority.Verify] only). A registry failure
//     rejects the token with [ErrRevocationUnavailable].
//
// # What this package must NOT do
//
//   - Read account state. Roles are snapshots taken at issuance.
//   - Keep mutable key state. The [KeySet] is fixed at construction.
//   - Log or return raw tokens in errors.
package token
