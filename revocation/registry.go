package revocation

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrInvalidEntry is returned for an empty token id or subject.
var ErrInvalidEntry = errors.New("invalid revocation entry")

// Registry tracks tokens invalidated before their natural expiry.
//
// Entries are weak references: a token id or a subject, never a raw token.
// Every implementation is safe for concurrent use, including Sweep running
// alongside lookups.
type Registry interface {
	// Revoke marks tokenID revoked until expiresAt. Revoking twice is not an
	// error.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	// IsRevoked reports whether tokenID has a live revocation entry.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// RevokeSubject revokes every token for subject issued at or before
	// cutoff. An existing entry keeps the later cutoff and the later expiry.
	RevokeSubject(ctx context.Context, subject string, cutoff, expiresAt time.Time) error
	// Revoked is the combined lookup performed on every verification.
	Revoked(ctx context.Context, tokenID, subject string, issuedAt time.Time) (bool, error)
	// Sweep removes entries whose expiry is at or before now and reports how
	// many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Entry is a single token revocation.
type Entry struct {
	TokenID   string
	RevokedAt time.Time
	ExpiresAt time.Time
}

// coveredByCutoff compares at second precision, the precision of the iat
// claim. A token issued in the same second as the cutoff is revoked.
func coveredByCutoff(issuedAt time.Time, cutoffUnix int64) bool {
	return issuedAt.Unix() <= cutoffUnix
}

func validID(v string) bool {
	return strings.TrimSpace(v) != ""
}
