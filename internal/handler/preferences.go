package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/repository"
	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// PreferencesHandler reads and writes per-user preferences
type PreferencesHandler struct {
	repo   *repository.SessionRepository
	logger *zap.Logger
}

// NewPreferencesHandler creates a new PreferencesHandler
func NewPreferencesHandler(repo *repository.SessionRepository, logger *zap.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		repo:   repo,
		logger: logger,
	}
}

// GetPreferences returns stored preferences, defaults when none saved
func (h *PreferencesHandler) GetPreferences(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	prefs, err := h.repo.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// PutPreferences replaces the stored preferences
func (h *PreferencesHandler) PutPreferences(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	var prefs model.UserPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	if err := h.repo.SetPreferences(c.Request.Context(), userID, prefs); err != nil {
		respondServiceError(c, err)
		return
	}

	h.logger.Info("preferences updated", zap.String("user_id", userID))
	c.JSON(http.StatusOK, prefs)
}
