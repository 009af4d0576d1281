package jwt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpired      = errors.New("token expired")
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrWrongType    = errors.New("wrong token type")
)

const refreshTokenType = "refresh"

type Service struct {
	secret []byte
	pepper string
}

type Claims struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwtlib.RegisteredClaims
}

func New(secret, pepper string) *Service {
	return &Service{
		secret: []byte(secret),
		pepper: pepper,
	}
}

// GenerateAccessToken issues a short-lived signed token carrying identity
// and role claims.
func (s *Service) GenerateAccessToken(userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// GenerateRefreshToken issues a long-lived signed token with a random jti.
// The raw string is what the client presents on rotation; the server keeps
// only HashToken(raw).
func (s *Service) GenerateRefreshToken(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		TokenType: refreshTokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken verifies signature and expiry of an access token.
func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType == refreshTokenType {
		return nil, ErrWrongType
	}
	return claims, nil
}

// ValidateRefreshToken verifies a refresh bearer and rejects access tokens
// presented in its place.
func (s *Service) ValidateRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != refreshTokenType {
		return nil, ErrWrongType
	}
	return claims, nil
}

func (s *Service) parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwtlib.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformed
		}
	}
	if !token.Valid {
		return nil, ErrMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrMalformed
	}
	return claims, nil
}

// DecodeUnverified reads claims without checking the signature. Only for
// client-display purposes (e.g. showing expiry); never trust for authorization.
func (s *Service) DecodeUnverified(tokenStr string) (*Claims, error) {
	var claims Claims
	_, _, err := jwtlib.NewParser().ParseUnverified(tokenStr, &claims)
	if err != nil {
		return nil, ErrMalformed
	}
	return &claims, nil
}

// GenerateOpaqueSecret returns a URL-safe random string with 256 bits of
// entropy, used as invitation-token material.
func GenerateOpaqueSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken produces the peppered SHA-256 digest under which refresh tokens
// are stored. Deterministic on purpose: rotation is a single conditional
// update keyed on the stored hash.
func (s *Service) HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw + s.pepper))
	return hex.EncodeToString(sum[:])
}
