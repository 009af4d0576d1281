package repository

import (
	"context"
	"time"

	"planora/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefreshTokenRepository provides DB access for refresh-token records.
// The table holds at most one row per user (unique index on user_id); all
// writes are single statements so concurrent rotations never observe a
// half-completed state.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Upsert installs a fresh token record for the user, superseding any prior
// one in the same statement.
func (r *RefreshTokenRepository) Upsert(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"token_hash": tokenHash,
			"expires_at": expiresAt,
			"updated_at": now,
		}),
	}).Create(&domain.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}).Error
}

func (r *RefreshTokenRepository) GetByUserID(ctx context.Context, userID int64) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RotateIfMatch swaps the stored hash only if it still equals oldHash.
// Compare-and-swap semantics: of two concurrent rotations with the same
// bearer, exactly one sees a true result.
func (r *RefreshTokenRepository) RotateIfMatch(ctx context.Context, userID int64, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND token_hash = ?", userID, oldHash).
		Updates(map[string]any{
			"token_hash": newHash,
			"expires_at": expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.RefreshToken{}).Error
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
