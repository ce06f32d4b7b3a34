package revocation

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RevokedToken is a persisted token revocation. Rows are hard-deleted by
// Sweep once ExpiresAt (unix seconds) has passed.
type RevokedToken struct {
	ID        uint      `gorm:"primarykey"`
	TokenID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_revoked_tokens_token_id"`
	RevokedAt time.Time `gorm:"not null"`
	ExpiresAt int64     `gorm:"not null;index:idx_revoked_tokens_expires"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// RevokedSubject is a persisted subject cutoff.
type RevokedSubject struct {
	Subject   string `gorm:"type:varchar(255);primaryKey"`
	Cutoff    int64  `gorm:"not null"`
	ExpiresAt int64  `gorm:"not null;index:idx_revoked_subjects_expires"`
}

func (RevokedSubject) TableName() string {
	return "revoked_subjects"
}

// Models lists the tables owned by the GORM registry, for AutoMigrate.
func Models() []any {
	return []any{&RevokedToken{}, &RevokedSubject{}}
}

// GORM is a Registry persisted through gorm.io/gorm. Entries survive a
// restart of the process.
type GORM struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGORM returns a registry using db. The tables must already exist; see
// Models.
func NewGORM(db *gorm.DB) *GORM {
	return &GORM{db: db, now: time.Now}
}

func (g *GORM) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if !validID(tokenID) {
		return ErrInvalidEntry
	}

	row := RevokedToken{
		TokenID:   tokenID,
		RevokedAt: g.now().UTC(),
		ExpiresAt: expiresAt.Unix(),
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_id"}}, DoNothing: true}).Create(&row)
		if res.Error != nil || res.RowsAffected > 0 {
			return res.Error
		}
		return tx.Model(&RevokedToken{}).
			Where("token_id = ? AND expires_at < ?", tokenID, row.ExpiresAt).
			Update("expires_at", row.ExpiresAt).Error
	})
}

func (g *GORM) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	if err := g.db.WithContext(ctx).Model(&RevokedToken{}).
		Where("token_id = ?", tokenID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *GORM) RevokeSubject(ctx context.Context, subject string, cutoff, expiresAt time.Time) error {
	if !validID(subject) {
		return ErrInvalidEntry
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := RevokedSubject{Subject: subject, Cutoff: cutoff.Unix(), ExpiresAt: expiresAt.Unix()}
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "subject"}}, DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		// Each update only ever moves its column forward, so concurrent
		// writers converge on the latest cutoff and expiry.
		if err := tx.Model(&RevokedSubject{}).
			Where("subject = ? AND cutoff < ?", subject, row.Cutoff).
			Update("cutoff", row.Cutoff).Error; err != nil {
			return err
		}
		return tx.Model(&RevokedSubject{}).
			Where("subject = ? AND expires_at < ?", subject, row.ExpiresAt).
			Update("expires_at", row.ExpiresAt).Error
	})
}

func (g *GORM) Revoked(ctx context.Context, tokenID, subject string, issuedAt time.Time) (bool, error) {
	revoked, err := g.IsRevoked(ctx, tokenID)
	if err != nil || revoked {
		return revoked, err
	}

	var rows []RevokedSubject
	if err := g.db.WithContext(ctx).Where("subject = ?", subject).Limit(1).Find(&rows).Error; err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	return coveredByCutoff(issuedAt, rows[0].Cutoff), nil
}

func (g *GORM) Sweep(ctx context.Context, now time.Time) (int, error) {
	var removed int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("expires_at <= ?", now.Unix()).Delete(&RevokedToken{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		res = tx.Where("expires_at <= ?", now.Unix()).Delete(&RevokedSubject{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}
