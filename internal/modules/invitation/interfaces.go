package invitation

import (
	"context"
	"time"

	"planora/internal/domain"
)

// InvitationStore is the persistence surface of the invitation state machine.
type InvitationStore interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	GetByEmail(ctx context.Context, email string) (*domain.Invitation, error)
	GetByToken(ctx context.Context, token string) (*domain.Invitation, error)
	Refresh(ctx context.Context, id int64, token string, expiresAt time.Time) error
	SetCode(ctx context.Context, id int64, code string, expiresAt time.Time) error
	VerifyCode(ctx context.Context, token, code string, now time.Time) (bool, error)
	AcceptAndCreateUser(ctx context.Context, invitationID int64, user *domain.User) error
	Delete(ctx context.Context, id int64) error
}

// UserChecker is the only user lookup the invitation flow needs.
type UserChecker interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Mailer delivers verification codes; an external collaborator.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}
