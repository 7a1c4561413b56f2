package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/service"
)

// PrivacyHandler implements data-protection endpoints
type PrivacyHandler struct {
	service *service.PrivacyService
	logger  *zap.Logger
}

// NewPrivacyHandler creates a new PrivacyHandler
func NewPrivacyHandler(service *service.PrivacyService, logger *zap.Logger) *PrivacyHandler {
	return &PrivacyHandler{
		service: service,
		logger:  logger,
	}
}

// DeleteUserData handles user data deletion requests (right to be forgotten)
// DELETE /api/v1/users/:userId/data
func (h *PrivacyHandler) DeleteUserData(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	ipAddress := c.ClientIP()
	userAgent := c.Request.UserAgent()

	h.logger.Info("processing user data deletion request",
		zap.String("user_id", userID),
		zap.String("ip", ipAddress),
	)

	if err := h.service.DeleteUserData(c.Request.Context(), userID, ipAddress, userAgent); err != nil {
		h.logger.Error("failed to delete user data",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User data deleted successfully",
		"user_id": userID,
	})
}

// ExportUserData handles user data export requests (right to data portability)
// GET /api/v1/users/:userId/export
func (h *PrivacyHandler) ExportUserData(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	jsonData, err := h.service.ExportUserData(c.Request.Context(), userID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.logger.Error("failed to export user data",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		respondServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("ayurnxt_export_%s_%s.json", userID, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/json", jsonData)

	h.logger.Info("user data exported",
		zap.String("user_id", userID),
		zap.Int("size_bytes", len(jsonData)),
	)
}
