package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// TokenID is a 128-bit random identifier carried in the jti claim.
type TokenID [16]byte

// NewTokenID draws a fresh identifier from crypto/rand.
func NewTokenID() (TokenID, error) {
	var id TokenID
	_, err := rand.Read(id[:])
	return id, err
}

func (id TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// ParseTokenID decodes the string form produced by TokenID.String.
func ParseTokenID(s string) (TokenID, error) {
	var id TokenID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid token id size")
	}

	copy(id[:], raw)
	return id, nil
}
