package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/MrEthical07/warden/rbac"
)

const defaultRetryDelay = 50 * time.Millisecond

// StoreConfig tunes a GormStore.
type StoreConfig struct {
	// RetryDelay is the pause before the single retry of a transient
	// failure.
	RetryDelay time.Duration
}

// GormStore is a Store backed by gorm.io/gorm. Each mutation runs inside
// one transaction; uniqueness is enforced by unique indexes and checked again
// inside the creating transaction.
type GormStore struct {
	db         *gorm.DB
	retryDelay time.Duration
}

// NewGormStore returns a store using db. The accounts table must exist; see
// Open.
func NewGormStore(db *gorm.DB, cfg StoreConfig) *GormStore {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &GormStore{db: db, retryDelay: cfg.RetryDelay}
}

func (s *GormStore) Create(ctx context.Context, in NewAccount) (Account, error) {
	in, err := in.validate()
	if err != nil {
		return Account{}, err
	}

	acct := Account{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Active:       true,
	}

	err = s.do(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&Account{}).
				Where("name = ? OR email = ?", acct.Name, acct.Email).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateAccount
			}
			if err := tx.Create(&acct).Error; err != nil {
				if isDuplicate(err) {
					return ErrDuplicateAccount
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		return Account{}, err
	}
	return acct, nil
}

func (s *GormStore) FindByName(ctx context.Context, name string) (Account, error) {
	name = NormalizeName(name)
	if name == "" {
		return Account{}, ErrNotFound
	}

	var acct Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = findOne(s.db.WithContext(ctx), "name = ?", name)
		return err
	})
	return acct, err
}

func (s *GormStore) FindByID(ctx context.Context, id string) (Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, ErrNotFound
	}

	var acct Account
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = findOne(s.db.WithContext(ctx), "id = ?", id)
		return err
	})
	return acct, err
}

func (s *GormStore) List(ctx context.Context) ([]Account, error) {
	var out []Account
	err := s.do(ctx, func(ctx context.Context) error {
		out = out[:0]
		return s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) UpdateRole(ctx context.Context, actorID, targetID string, role rbac.Role) (Account, error) {
	if err := GuardSelf(actorID, targetID); err != nil {
		return Account{}, err
	}
	if !role.Valid() {
		return Account{}, errors.Join(ErrInvalidAccount, rbac.ErrInvalidRole)
	}

	return s.update(ctx, strings.TrimSpace(targetID), "role", role)
}

func (s *GormStore) SetActive(ctx context.Context, actorID, targetID string, active bool) (Account, error) {
	if err := GuardSelf(actorID, targetID); err != nil {
		return Account{}, err
	}

	return s.update(ctx, strings.TrimSpace(targetID), "active", active)
}

// UpdatePasswordHash replaces the stored hash, typically after a login
// verified the password against an outdated work factor.
func (s *GormStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if strings.TrimSpace(id) == "" || hash == "" {
		return ErrInvalidAccount
	}
	_, err := s.update(ctx, strings.TrimSpace(id), "password_hash", hash)
	return err
}

func (s *GormStore) Delete(ctx context.Context, actorID, targetID string) error {
	if err := GuardSelf(actorID, targetID); err != nil {
		return err
	}

	targetID = strings.TrimSpace(targetID)
	return s.do(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Where("id = ?", targetID).Delete(&Account{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
			return nil
		})
	})
}

func (s *GormStore) update(ctx context.Context, id, column string, value any) (Account, error) {
	var acct Account
	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			acct, err = findOne(tx, "id = ?", id)
			if err != nil {
				return err
			}
			if err := tx.Model(&acct).Update(column, value).Error; err != nil {
				return err
			}
			acct, err = findOne(tx, "id = ?", id)
			return err
		})
	})
	if err != nil {
		return Account{}, err
	}
	return acct, nil
}

func findOne(db *gorm.DB, query string, args ...any) (Account, error) {
	var rows []Account
	if err := db.Where(query, args...).Limit(1).Find(&rows).Error; err != nil {
		return Account{}, err
	}
	if len(rows) == 0 {
		return Account{}, ErrNotFound
	}
	return rows[0], nil
}

// do runs op and retries it once on a transient failure. Domain errors and
// context errors are returned as-is; anything else that fails twice is
// wrapped in ErrUnavailable.
func (s *GormStore) do(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(s.retryDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil || permanent(ctx, err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil || permanent(ctx, err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func permanent(ctx context.Context, err error) bool {
	switch {
	case errors.Is(err, ErrDuplicateAccount),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrSelfModification),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return ctx.Err() != nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
