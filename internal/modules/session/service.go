package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"planora/internal/domain"
	"planora/internal/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service drives the per-user session state machine:
// NoSession -> Active -> NoSession, with Active refreshable in place.
type Service struct {
	users      UserReader
	tokens     RefreshTokenStore
	codec      TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type Result struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func NewService(users UserReader, tokens RefreshTokenStore, codec TokenCodec, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.StartSession(ctx, user)
}

// StartSession issues a fresh token pair for an authenticated user. The
// refresh record is a single upsert keyed by user_id, so any prior session
// is superseded atomically: at most one live refresh token per user.
func (s *Service) StartSession(ctx context.Context, user *domain.User) (*Result, error) {
	now := time.Now()

	accessToken, err := s.codec.GenerateAccessToken(user.ID, string(user.Role), s.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshRaw, err := s.codec.GenerateRefreshToken(user.ID, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Upsert(ctx, user.ID, s.codec.HashToken(refreshRaw), now.Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &Result{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshRaw,
		ExpiresAt:    now.Add(s.accessTTL),
	}, nil
}

// Rotate exchanges the presented refresh token for a new pair. A refresh
// token is single-use: presenting one that no longer matches the stored hash
// is treated as theft and force-closes the session. The swap itself is a
// compare-and-swap on the stored hash, so of two concurrent rotations with
// the same bearer exactly one succeeds and the loser takes the theft path.
func (s *Service) Rotate(ctx context.Context, refreshRaw string) (*RefreshResult, error) {
	claims, err := s.codec.ValidateRefreshToken(refreshRaw)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrStaleRefreshToken
	}

	now := time.Now()
	userID := claims.UserID

	record, err := s.tokens.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	if record.IsExpired(now) {
		// lazily evict; the cleanup binary handles the bulk
		_ = s.tokens.DeleteByUserID(ctx, userID)
		return nil, ErrSessionExpired
	}

	presentedHash := s.codec.HashToken(refreshRaw)
	if presentedHash != record.TokenHash {
		if err := s.tokens.DeleteByUserID(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrStaleRefreshToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.codec.GenerateAccessToken(user.ID, string(user.Role), s.accessTTL)
	if err != nil {
		return nil, err
	}
	newRaw, err := s.codec.GenerateRefreshToken(userID, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	swapped, err := s.tokens.RotateIfMatch(ctx, userID, presentedHash, s.codec.HashToken(newRaw), now.Add(s.refreshTTL))
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Lost a concurrent rotation with the same bearer. Strict policy:
		// indistinguishable from replay, so force logout here too.
		if err := s.tokens.DeleteByUserID(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrStaleRefreshToken
	}

	return &RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: newRaw,
		ExpiresAt:    now.Add(s.accessTTL),
	}, nil
}

// Invalidate closes the user's session: explicit logout and the replay path.
func (s *Service) Invalidate(ctx context.Context, userID int64) error {
	return s.tokens.DeleteByUserID(ctx, userID)
}
