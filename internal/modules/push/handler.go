package push

import (
	"errors"
	"net/http"

	"planora/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler exposes device-token management to signed-in users and batch
// dispatch to admins.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.POST("/notifications/device-token", h.RegisterDevice)
	protected.DELETE("/notifications/device-token", h.UnregisterDevice)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/notifications/send", h.Send)
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	userID := c.GetInt64("user_id")
	if err := h.service.RegisterDevice(c.Request.Context(), userID, req.Token, req.Platform); err != nil {
		if errors.Is(err, ErrInvalidDeviceToken) {
			response.Error(c, http.StatusBadRequest, "INVALID_DEVICE_TOKEN", "Device token is malformed")
			return
		}
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to register device token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"registered": true})
}

func (h *Handler) UnregisterDevice(c *gin.Context) {
	var req UnregisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if err := h.service.UnregisterDevice(c.Request.Context(), req.Token); err != nil {
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to remove device token")
		return
	}

	c.Status(http.StatusNoContent)
}

// Send resolves the target users' devices and dispatches in the background;
// the caller gets an immediate acknowledgement with the addressed device
// count. Provider outcomes land in the receipt table, not in this response.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	count, err := h.service.NotifyUsersAsync(c.Request.Context(), req.UserIDs, req.Title, req.Body, req.Data)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Failed to queue notifications")
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"queued": count})
}
