package repository

import (
	"context"
	"time"

	"planora/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Upsert re-binds the token to the user if it was registered before
// (a device changing accounts keeps a single row).
func (r *DeviceTokenRepository) Upsert(ctx context.Context, userID int64, token, platform string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token"}},
		DoUpdates: clause.Assignments(map[string]any{
			"user_id":    userID,
			"platform":   platform,
			"updated_at": now,
		}),
	}).Create(&domain.DeviceToken{
		UserID:   userID,
		Token:    token,
		Platform: platform,
	}).Error
}

func (r *DeviceTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&domain.DeviceToken{}).Error
}

func (r *DeviceTokenRepository) ListByUserIDs(ctx context.Context, userIDs []int64) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&tokens).Error
	return tokens, err
}
