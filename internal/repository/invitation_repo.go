package repository

import (
	"context"
	"time"

	"planora/internal/domain"

	"gorm.io/gorm"
)

type InvitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	inv.Email = normalizeEmail(inv.Email)
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *InvitationRepository) GetByEmail(ctx context.Context, email string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", normalizeEmail(email)).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Refresh regenerates the link for an existing invitation: new token, new
// expiry, back to pending with any pending code voided.
func (r *InvitationRepository) Refresh(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"token":             token,
			"expires_at":        expiresAt,
			"invitation_status": domain.InvitationPending,
			"code":              nil,
			"code_expires_at":   nil,
		}).Error
}

// SetCode overwrites any prior code for the invitation; collisions between
// invitations are acceptable since codes are only checked per token.
func (r *InvitationRepository) SetCode(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"code":            code,
			"code_expires_at": expiresAt,
		}).Error
}

// VerifyCode is a single conditional update keyed on (token, code, unexpired
// code, unexpired invitation); this closes the verify-then-expire race.
// Returns false when no matching row transitioned.
func (r *InvitationRepository) VerifyCode(ctx context.Context, token, code string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("token = ? AND code = ? AND code_expires_at >= ? AND expires_at >= ? AND invitation_status = ?",
			token, code, now, now, domain.InvitationPending).
		Updates(map[string]any{
			"invitation_status": domain.InvitationCodeVerified,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AcceptAndCreateUser transitions the invitation to accepted and creates the
// user in one transaction. The status transition is a conditional update so
// the code_verified guard holds without optimistic-locking assumptions.
func (r *InvitationRepository) AcceptAndCreateUser(ctx context.Context, invitationID int64, user *domain.User) error {
	user.Email = normalizeEmail(user.Email)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Invitation{}).
			Where("id = ? AND invitation_status = ?", invitationID, domain.InvitationCodeVerified).
			Updates(map[string]any{
				"invitation_status": domain.InvitationAccepted,
				"code":              nil,
				"code_expires_at":   nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInvitationNotVerifiable
		}
		if err := tx.Create(user).Error; err != nil {
			if isUniqueViolation(err) {
				return gorm.ErrDuplicatedKey
			}
			return err
		}
		return nil
	})
}

func (r *InvitationRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.Invitation{}, id).Error
}

func (r *InvitationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? AND invitation_status <> ?", time.Now().UTC(), domain.InvitationAccepted).
		Delete(&domain.Invitation{})
	return res.RowsAffected, res.Error
}
