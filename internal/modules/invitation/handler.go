package invitation

import (
	"context"
	"errors"
	"net/http"

	"planora/internal/domain"
	"planora/internal/modules/session"
	"planora/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionStarter issues a token pair for the freshly registered user.
type SessionStarter interface {
	StartSession(ctx context.Context, user *domain.User) (*session.Result, error)
}

type Handler struct {
	service       *Service
	sessions      SessionStarter
	inviteBaseURL string
}

func NewHandler(service *Service, sessions SessionStarter, inviteBaseURL string) *Handler {
	return &Handler{
		service:       service,
		sessions:      sessions,
		inviteBaseURL: inviteBaseURL,
	}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup, rateLimit gin.HandlerFunc) {
	invGroup := v1.Group("/invitations")
	{
		invGroup.GET("/validate-token", h.ValidateToken)
		invGroup.POST("/validate-verification-code", rateLimit, h.ValidateVerificationCode)
		invGroup.POST("/resend-verification-code", h.ResendVerificationCode)
	}
	v1.POST("/users/sign-up", h.SignUp)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/invitations/generate", h.Generate)
}

func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	inv, err := h.service.GenerateOrRefresh(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrAlreadyAccepted) {
			response.Error(c, http.StatusConflict, "ALREADY_ACCEPTED", "Invitation was already accepted")
			return
		}
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to generate invitation")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"invitation_link": h.inviteBaseURL + "?token=" + inv.Token,
		"expires_at":      inv.ExpiresAt,
	})
}

// ValidateToken handles the invitee opening the link: it validates the token
// and triggers code delivery, or reports that verification already happened.
func (h *Handler) ValidateToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "token query parameter is required")
		return
	}

	result, err := h.service.RequestCode(c.Request.Context(), token)
	if err != nil {
		h.writeCodeFlowError(c, err)
		return
	}

	if result.AlreadyVerified {
		response.Success(c, http.StatusOK, gin.H{"redirect": true, "status": result.Status})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true, "status": result.Status})
}

func (h *Handler) ValidateVerificationCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.service.VerifyCode(c.Request.Context(), req.Token, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCode):
			response.Error(c, http.StatusUnauthorized, "INVALID_CODE", "Verification code is invalid or expired")
		case errors.Is(err, ErrUnauthorized):
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invitation token is invalid or expired")
		default:
			response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to verify code")
		}
		return
	}

	if result.AlreadyVerified {
		response.Success(c, http.StatusOK, gin.H{"redirect": true})
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"id":    result.InvitationID,
		"email": result.Email,
	})
}

func (h *Handler) ResendVerificationCode(c *gin.Context) {
	var req ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.service.ResendCode(c.Request.Context(), req.Token)
	if err != nil {
		h.writeCodeFlowError(c, err)
		return
	}

	if result.AlreadyVerified {
		response.Success(c, http.StatusOK, gin.H{"redirect": true})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true})
}

func (h *Handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Password != req.ConfirmPassword {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Passwords do not match",
			gin.H{"confirm_password": "must match password"})
		return
	}

	user, err := h.service.CompleteRegistration(c.Request.Context(), req.Token, RegistrationRequest{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Password:          req.Password,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized):
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invitation token is invalid or expired")
		case errors.Is(err, ErrNotVerified):
			response.Error(c, http.StatusBadRequest, "NOT_VERIFIED", "Verification code must be confirmed first")
		case errors.Is(err, ErrAlreadyRegistered), errors.Is(err, ErrAlreadyAccepted):
			response.Error(c, http.StatusBadRequest, "ALREADY_REGISTERED", "A user already exists for this invitation")
		default:
			response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to complete registration")
		}
		return
	}

	result, err := h.sessions.StartSession(c.Request.Context(), user)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Registered but failed to start session")
		return
	}

	response.Success(c, http.StatusCreated, session.TokenPairResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
		UserInfo:     session.NewUserInfo(result.User),
	})
}

func (h *Handler) writeCodeFlowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invitation token is invalid or expired")
	case errors.Is(err, ErrAlreadyAccepted):
		response.Error(c, http.StatusConflict, "ALREADY_ACCEPTED", "Invitation was already accepted")
	default:
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to process invitation")
	}
}
