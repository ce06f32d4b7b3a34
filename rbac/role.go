package rbac

import (
	"errors"
	"strings"
)

// Role is the single authorization attribute carried by an account and
// snapshotted into every session token.
type Role string

const (
	// RoleMember is assigned to every newly registered account.
	RoleMember Role = "member"
	// RoleAdmin may perform the admin-only actions.
	RoleAdmin Role = "admin"
)

// ErrInvalidRole is returned by ParseRole for anything other than the two
// known roles.
var ErrInvalidRole = errors.New("invalid role")

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// ParseRole maps user input onto a Role. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}
