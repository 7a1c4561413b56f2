package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/service"
)

// ReportHandler implements report API endpoints
type ReportHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger,
	}
}

// GenerateReportRequest asks for a compliance report over a date range
type GenerateReportRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	UserName  string `json:"user_name"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// PostGenerate generates a compliance report
func (h *ReportHandler) PostGenerate(c *gin.Context) {
	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", stringPtr(err.Error()))
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "start_date must be YYYY-MM-DD", stringPtr(err.Error()))
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "end_date must be YYYY-MM-DD", stringPtr(err.Error()))
		return
	}
	if startDate.After(endDate) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Start date must be before or equal to end date", nil)
		return
	}
	// Include the whole end day.
	endDate = endDate.Add(24*time.Hour - time.Nanosecond)

	userName := req.UserName
	if userName == "" {
		userName = "User"
	}

	reportID, err := h.service.GenerateReport(c.Request.Context(), req.UserID, userName, startDate, endDate)
	if err != nil {
		h.logger.Error("failed to generate report",
			zap.Error(err),
			zap.String("user_id", req.UserID),
		)
		respondServiceError(c, err)
		return
	}

	h.logger.Info("report generated",
		zap.String("report_id", reportID),
		zap.String("user_id", req.UserID),
	)

	c.JSON(http.StatusOK, gin.H{
		"report_id": reportID,
		"message":   "Report generated successfully",
	})
}

// GetReports lists a user's report records
func (h *ReportHandler) GetReports(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	reports, err := h.service.GetReportsByUserID(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

// GetDownload downloads a report PDF
func (h *ReportHandler) GetDownload(c *gin.Context) {
	userID := c.Param("userId")
	reportID := c.Param("reportId")
	if userID == "" || reportID == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user id and report id are required", nil)
		return
	}

	pdfBytes, err := h.service.GetReport(c.Request.Context(), userID, reportID)
	if err != nil {
		h.logger.Error("failed to get report",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Report not found", stringPtr(err.Error()))
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=therapy_report_%s.pdf", reportID))
	c.Header("Content-Length", fmt.Sprintf("%d", len(pdfBytes)))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)

	h.logger.Info("report downloaded",
		zap.String("report_id", reportID),
		zap.Int("size_bytes", len(pdfBytes)),
	)
}
