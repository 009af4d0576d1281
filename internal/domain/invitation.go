package domain

import (
	"errors"
	"time"
)

// ErrInvitationNotVerifiable is reported by the store when an accepted-state
// transition is attempted on an invitation that is not code_verified.
var ErrInvitationNotVerifiable = errors.New("invitation is not code_verified")

type InvitationStatus string

const (
	InvitationPending      InvitationStatus = "pending"
	InvitationCodeVerified InvitationStatus = "code_verified"
	InvitationAccepted     InvitationStatus = "accepted"
)

// Invitation is an admin-issued onboarding handshake binding an email to a
// one-time registration flow: pending -> code_verified -> accepted.
// Expired pending invitations are deleted lazily on the next access attempt.
type Invitation struct {
	ID     int64            `json:"id" gorm:"primaryKey"`
	Email  string           `json:"email" gorm:"uniqueIndex;not null"`
	Token  string           `json:"-" gorm:"uniqueIndex;not null"`
	Status InvitationStatus `json:"status" gorm:"column:invitation_status;size:16;not null;default:pending"`

	Code          *string    `json:"-" gorm:"size:6"`
	CodeExpiresAt *time.Time `json:"-"`

	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Invitation) TableName() string { return "invitations" }

func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsTerminal reports whether the invitation can make no further transitions.
func (i *Invitation) IsTerminal() bool {
	return i.Status == InvitationAccepted
}
