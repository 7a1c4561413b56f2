package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/protocol"
	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// ProtocolHandler serves the static protocol catalog
type ProtocolHandler struct {
	catalog *protocol.Catalog
	logger  *zap.Logger
}

// NewProtocolHandler creates a new ProtocolHandler
func NewProtocolHandler(catalog *protocol.Catalog, logger *zap.Logger) *ProtocolHandler {
	return &ProtocolHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// GetModes lists every therapy mode with its timing and safety notes
func (h *ProtocolHandler) GetModes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modes":      h.catalog.Modes(),
		"body_areas": protocol.BodyAreas,
	})
}

// GetConditions lists every condition category profile
func (h *ProtocolHandler) GetConditions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"conditions": h.catalog.Conditions(),
	})
}

// GetCondition returns one condition profile
func (h *ProtocolHandler) GetCondition(c *gin.Context) {
	category := model.ConditionCategory(c.Param("category"))

	profile, err := h.catalog.ConditionProfile(category)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Unknown condition category", stringPtr(err.Error()))
		return
	}
	c.JSON(http.StatusOK, profile)
}
