package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/service"
)

// ComplianceHandler exposes compliance analytics endpoints
type ComplianceHandler struct {
	service *service.ComplianceService
	logger  *zap.Logger
}

// NewComplianceHandler creates a new ComplianceHandler
func NewComplianceHandler(service *service.ComplianceService, logger *zap.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		service: service,
		logger:  logger,
	}
}

// GetOverview returns the full compliance review payload
func (h *ComplianceHandler) GetOverview(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	overview, err := h.service.GetOverview(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// GetMetrics returns only the aggregate metrics
func (h *ComplianceHandler) GetMetrics(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	metrics, err := h.service.GetMetrics(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GetHistory returns the session history, optionally filtered by ?since=RFC3339
func (h *ComplianceHandler) GetHistory(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "since must be RFC3339", stringPtr(err.Error()))
			return
		}
		since = &parsed
	}

	sessions, err := h.service.GetHistory(c.Request.Context(), userID, since)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// ExportHistory streams the session history as a CSV download
func (h *ComplianceHandler) ExportHistory(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	data, err := h.service.ExportHistoryCSV(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("therapy-history-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}
