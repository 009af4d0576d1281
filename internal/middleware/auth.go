package middleware

import (
	"errors"
	"net/http"
	"strings"

	"planora/internal/pkg/jwt"
	"planora/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// JWTAuth validates the Bearer access token and puts user_id/role into the
// request context.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid Authorization header")
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(tokenStr)
		if err != nil {
			code := "INVALID_TOKEN"
			if errors.Is(err, jwt.ErrExpired) {
				code = "TOKEN_EXPIRED"
			}
			response.Error(c, http.StatusUnauthorized, code, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// BearerToken extracts the raw Bearer credential without validating it.
// Used by the refresh endpoint, where the bearer is the refresh token.
func BearerToken(c *gin.Context) (string, bool) {
	return bearerToken(c)
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	if tokenStr == "" {
		return "", false
	}
	return tokenStr, true
}
