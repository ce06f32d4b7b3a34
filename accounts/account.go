package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MrEthical07/warden/rbac"
)

var (
	// ErrDuplicateAccount is returned when the name or email is taken.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
	// ErrSelfModification is returned when an actor targets their own
	// account with a role, status or delete operation.
	ErrSelfModification = errors.New("cannot modify own account")
	// ErrInvalidAccount is returned for malformed input.
	ErrInvalidAccount = errors.New("invalid account")
	// ErrUnavailable wraps a persistence failure that survived the retry.
	ErrUnavailable = errors.New("account store unavailable")
)

const (
	maxNameLength  = 64
	maxEmailLength = 254
)

// Account is a stored user record.
type Account struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_accounts_name" json:"name"`
	Email        string    `gorm:"type:varchar(254);not null;uniqueIndex:idx_accounts_email" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         rbac.Role `gorm:"type:varchar(16);not null" json:"role"`
	Active       bool      `gorm:"not null" json:"active"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// NewAccount is the input to Store.Create. Accounts are created active.
type NewAccount struct {
	Name         string
	Email        string
	PasswordHash string
	Role         rbac.Role
}

// Store owns Account records. Every role, status and delete mutation
// rejects actorID == targetID with ErrSelfModification before touching
// storage.
type Store interface {
	Create(ctx context.Context, in NewAccount) (Account, error)
	FindByName(ctx context.Context, name string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	UpdateRole(ctx context.Context, actorID, targetID string, role rbac.Role) (Account, error)
	SetActive(ctx context.Context, actorID, targetID string, active bool) (Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, actorID, targetID string) error
}

// NormalizeName trims surrounding whitespace.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// NormalizeEmail trims and lower-cases email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in NewAccount) validate() (NewAccount, error) {
	in.Name = NormalizeName(in.Name)
	in.Email = NormalizeEmail(in.Email)

	if in.Name == "" || utf8.RuneCountInString(in.Name) > maxNameLength {
		return in, errors.Join(ErrInvalidAccount, errors.New("name must be 1-64 characters"))
	}
	for _, r := range in.Name {
		if unicode.IsControl(r) {
			return in, errors.Join(ErrInvalidAccount, errors.New("name contains control characters"))
		}
	}
	if len(in.Email) > maxEmailLength {
		return in, errors.Join(ErrInvalidAccount, errors.New("email too long"))
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return in, errors.Join(ErrInvalidAccount, errors.New("email is not a bare address"))
	}
	if in.PasswordHash == "" {
		return in, errors.Join(ErrInvalidAccount, errors.New("password hash is empty"))
	}
	if !in.Role.Valid() {
		return in, errors.Join(ErrInvalidAccount, rbac.ErrInvalidRole)
	}
	return in, nil
}

// GuardSelf rejects an empty id with ErrInvalidAccount and actorID ==
// targetID with ErrSelfModification.
func GuardSelf(actorID, targetID string) error {
	actorID = strings.TrimSpace(actorID)
	targetID = strings.TrimSpace(targetID)
	if actorID == "" || targetID == "" {
		return ErrInvalidAccount
	}
	if actorID == targetID {
		return ErrSelfModification
	}
	return nil
}
