package session

import (
	"time"

	"planora/internal/domain"
)

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserInfo struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Role              string `json:"role"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

type TokenPairResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserInfo     *UserInfo `json:"user_info,omitempty"`
}

func NewUserInfo(u *domain.User) *UserInfo {
	return &UserInfo{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Role:              string(u.Role),
		PreferredLanguage: u.PreferredLanguage,
	}
}
