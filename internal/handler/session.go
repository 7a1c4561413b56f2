package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/audit"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/service"
	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// SessionHandler exposes the therapy workflow endpoints
type SessionHandler struct {
	orchestrator *service.SessionOrchestrator
	auditLogger  *audit.Logger
	logger       *zap.Logger
}

// NewSessionHandler creates a new SessionHandler. auditLogger may be nil;
// lifecycle events are then only written to the application log.
func NewSessionHandler(orchestrator *service.SessionOrchestrator, auditLogger *audit.Logger, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		orchestrator: orchestrator,
		auditLogger:  auditLogger,
		logger:       logger,
	}
}

func (h *SessionHandler) auditSessionEvent(c *gin.Context, op audit.OperationType, userID, sessionID string) {
	if h.auditLogger == nil {
		return
	}
	if err := h.auditLogger.LogSessionEvent(c.Request.Context(), op, userID, sessionID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		h.logger.Warn("failed to write session audit entry",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("operation", string(op)),
		)
	}
}

// BeginScanRequest starts the workflow
type BeginScanRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CompleteScanRequest records the scanned plaster id
type CompleteScanRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	PlasterID string `json:"plaster_id"`
}

// ConfigureSessionRequest carries the setup form
type ConfigureSessionRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	BodyArea   string `json:"body_area" binding:"required"`
	Condition  string `json:"condition" binding:"required"`
	Mode       string `json:"mode" binding:"required"`
	PainBefore *int   `json:"pain_before" binding:"required"`
}

// SensationCheckRequest answers the mid-session sensation prompt
type SensationCheckRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Level  string `json:"level" binding:"required"`
}

// PainLoggingRequest records the post-session pain score
type PainLoggingRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	PainAfter *int   `json:"pain_after"`
	Notes     string `json:"notes"`
}

// UserRequest identifies the user for bodyless workflow actions
type UserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// PostScanBegin starts a new workflow run
func (h *SessionHandler) PostScanBegin(c *gin.Context) {
	var req BeginScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.BeginScan(c.Request.Context(), req.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// PostScanComplete records the scanned (or generated) plaster id
func (h *SessionHandler) PostScanComplete(c *gin.Context) {
	var req CompleteScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.CompleteScan(c.Request.Context(), req.UserID, req.PlasterID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.logger.Info("plaster scan completed",
		zap.String("user_id", req.UserID),
		zap.String("plaster_id", status.PlasterID),
	)
	c.JSON(http.StatusOK, status)
}

// PostSetup configures the session
func (h *SessionHandler) PostSetup(c *gin.Context) {
	var req ConfigureSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.ConfigureSession(
		c.Request.Context(),
		req.UserID,
		req.BodyArea,
		model.ConditionCategory(req.Condition),
		model.TherapyMode(req.Mode),
		*req.PainBefore,
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// PostStart begins the live session countdown
func (h *SessionHandler) PostStart(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.StartSession(c.Request.Context(), req.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.logger.Info("live session started",
		zap.String("user_id", req.UserID),
		zap.String("plaster_id", status.PlasterID),
	)
	h.auditSessionEvent(c, audit.OperationSessionStarted, req.UserID, status.PlasterID)
	c.JSON(http.StatusOK, status)
}

// PostTick polls the timer; clients call this on their poll cadence
func (h *SessionHandler) PostTick(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.Tick(c.Request.Context(), req.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// PostSensation answers the sensation check
func (h *SessionHandler) PostSensation(c *gin.Context) {
	var req SensationCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.AnswerSensationCheck(c.Request.Context(), req.UserID, model.SensationLevel(req.Level))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// PostAcknowledgeEnd moves from the session end screen to pain logging
func (h *SessionHandler) PostAcknowledgeEnd(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.ProceedToPainLogging(c.Request.Context(), req.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// PostPainLog completes pain logging and saves the session record
func (h *SessionHandler) PostPainLog(c *gin.Context) {
	var req PainLoggingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	session, err := h.orchestrator.CompletePainLogging(c.Request.Context(), req.UserID, req.PainAfter, req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.logger.Info("session logged",
		zap.String("user_id", req.UserID),
		zap.String("session_id", session.ID),
		zap.String("status", string(session.Status)),
	)
	op := audit.OperationSessionCompleted
	if session.Status == model.SessionTerminatedEarly {
		op = audit.OperationSessionTerminated
	}
	h.auditSessionEvent(c, op, req.UserID, session.ID)
	c.JSON(http.StatusOK, session)
}

// PostNewSession loops back into a fresh scan after the compliance review
func (h *SessionHandler) PostNewSession(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.StartNewSession(c.Request.Context(), req.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// PostIdle returns the workflow to idle
func (h *SessionHandler) PostIdle(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	status, err := h.orchestrator.ReturnToIdle(c.Request.Context(), req.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetStatus returns the current workflow state without side effects
func (h *SessionHandler) GetStatus(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	status, err := h.orchestrator.Status(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
