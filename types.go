package warden

import (
	"time"

	"github.com/MrEthical07/warden/accounts"
	"github.com/MrEthical07/warden/rbac"
)

// Role and Action are re-exported for callers that only import warden.
type (
	Role   = rbac.Role
	Action = rbac.Action
)

const (
	RoleMember = rbac.RoleMember
	RoleAdmin  = rbac.RoleAdmin
)

const (
	ActionListAccounts  = rbac.ActionListAccounts
	ActionChangeRole    = rbac.ActionChangeRole
	ActionDeleteAccount = rbac.ActionDeleteAccount
	ActionChangeStatus  = rbac.ActionChangeStatus
	ActionViewSelf      = rbac.ActionViewSelf
	ActionLogout        = rbac.ActionLogout
	ActionLogoutAll     = rbac.ActionLogoutAll
)

// AccountView is the public projection of an account. It never carries the
// password hash.
type AccountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenView is returned by Login.
type TokenView struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// Identity is a verified caller. It is produced by Authenticate and passed
// explicitly to every operation that acts on behalf of someone. Role is the
// role embedded in the token at issuance.
type Identity struct {
	AccountID string
	Role      Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RegisterRequest is the input to Register. New accounts are members.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func viewOf(a accounts.Account) AccountView {
	return AccountView{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
