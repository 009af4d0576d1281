package session

import (
	"errors"
	"net/http"

	"planora/internal/middleware"
	"planora/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler manages the HTTP surface of the session lifecycle.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup, rateLimit gin.HandlerFunc) {
	v1.POST("/users/sign-in", rateLimit, h.SignIn)
	v1.POST("/token/refresh", h.Refresh)
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.DELETE("/token/refresh/invalidate", h.Invalidate)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.service.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
			return
		}
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to sign in")
		return
	}

	response.Success(c, http.StatusOK, TokenPairResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
		UserInfo:     NewUserInfo(result.User),
	})
}

// Refresh rotates the session. The Bearer credential here is the previous
// refresh token, not the access token.
func (h *Handler) Refresh(c *gin.Context) {
	refreshRaw, ok := middleware.BearerToken(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing refresh token bearer")
		return
	}

	result, err := h.service.Rotate(c.Request.Context(), refreshRaw)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionExpired):
			response.Error(c, http.StatusUnauthorized, "SESSION_EXPIRED", "Session expired, sign in again")
		case errors.Is(err, ErrStaleRefreshToken):
			response.Error(c, http.StatusUnauthorized, "STALE_REFRESH_TOKEN", "Refresh token is no longer valid")
		default:
			response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to refresh session")
		}
		return
	}

	response.Success(c, http.StatusOK, TokenPairResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
	})
}

func (h *Handler) Invalidate(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	if err := h.service.Invalidate(c.Request.Context(), userID); err != nil {
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to invalidate session")
		return
	}

	c.Status(http.StatusNoContent)
}
