package session

import (
	"context"
	"time"

	"planora/internal/domain"
	"planora/internal/pkg/jwt"
)

// UserReader exposes only the user lookups the session service needs.
type UserReader interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// RefreshTokenStore holds at most one refresh token record per user.
type RefreshTokenStore interface {
	Upsert(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetByUserID(ctx context.Context, userID int64) (*domain.RefreshToken, error)
	RotateIfMatch(ctx context.Context, userID int64, oldHash, newHash string, expiresAt time.Time) (bool, error)
	DeleteByUserID(ctx context.Context, userID int64) error
}

// TokenCodec is the signing and hashing surface of internal/pkg/jwt.
type TokenCodec interface {
	GenerateAccessToken(userID int64, role string, ttl time.Duration) (string, error)
	GenerateRefreshToken(userID int64, ttl time.Duration) (string, error)
	ValidateRefreshToken(tokenStr string) (*jwt.Claims, error)
	HashToken(raw string) string
}
