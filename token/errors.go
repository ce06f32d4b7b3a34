package token

import "errors"

var (
	// ErrMalformedToken covers every parse and signature failure: bad
	// encoding, wrong algorithm, unknown kid, bad signature, wrong
	// issuer/audience and missing or invalid claims.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken is returned when the clock has reached expires-at.
	ErrExpiredToken = errors.New("token expired")
	// ErrRevokedToken is returned when the registry reports the token id, or
	// a subject cutoff covering its issued-at, as revoked.
	ErrRevokedToken = errors.New("token revoked")
	// ErrRevocationUnavailable is returned when the registry could not be
	// consulted. Verification fails closed.
	ErrRevocationUnavailable = errors.New("revocation registry unavailable")
	// ErrInvalidTTL is returned by Issue for a lifetime under one second or
	// above the configured maximum.
	ErrInvalidTTL = errors.New("invalid token ttl")
	// ErrInvalidSubject is returned by Issue for an empty subject or an
	// invalid role.
	ErrInvalidSubject = errors.New("invalid token subject")
)
